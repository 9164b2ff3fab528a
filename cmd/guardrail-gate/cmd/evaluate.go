package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/aegiswall/guardrail/internal/adapter/outbound/memory"
	"github.com/aegiswall/guardrail/internal/config"
	"github.com/aegiswall/guardrail/internal/domain/constraint"
	"github.com/aegiswall/guardrail/internal/domain/loader"
	"github.com/aegiswall/guardrail/internal/domain/validator"
	"github.com/aegiswall/guardrail/internal/telemetry"
)

var (
	evalTool     string
	evalArgsJSON string
	evalRulesDir string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run one tool call through the engine and print its explanation",
	Long: `Evaluate builds the validator pipeline from the configured rules
directory and rate limit settings, runs a single synthetic tool call
through it, and prints the resulting decision and explanation trace.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalTool, "tool", "", "tool name to evaluate (required)")
	evaluateCmd.Flags().StringVar(&evalArgsJSON, "args", "{}", "JSON object of tool call arguments")
	evaluateCmd.Flags().StringVar(&evalRulesDir, "rules-dir", "", "rules directory to load (default: config rules_dir)")
	_ = evaluateCmd.MarkFlagRequired("tool")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dir := evalRulesDir
	if dir == "" {
		dir = cfg.RulesDir
	}

	var toolArgs map[string]any
	if err := json.Unmarshal([]byte(evalArgsJSON), &toolArgs); err != nil {
		return fmt.Errorf("parse --args as JSON object: %w", err)
	}

	l := loader.New(loaderOptsFromConfig(cfg)...)
	if err := l.LoadFromDirectory(dir); err != nil {
		return fmt.Errorf("load rules from %s: %w", dir, err)
	}

	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	metrics.RulesLoaded.Set(float64(len(l.Rules().AllRules)))

	eng := validator.NewEngine(cfg.DefaultDecision == "allow")
	eng.AddValidator(l.Validator(100, constraint.Options{}))

	if cfg.RateLimit.MaxCalls > 0 {
		limiter := memory.NewSlidingWindowRateLimiter()
		limits := memory.ToolRateLimits{
			evalTool: {
				MaxCalls: cfg.RateLimit.MaxCalls,
				Window:   time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
			},
		}
		eng.AddValidator(memory.NewRateLimitValidator(limiter, limits, 10))
	}

	verbosity := validator.VerbositySimple
	switch cfg.Explanation.Verbosity {
	case "none":
		verbosity = validator.VerbosityNone
	case "verbose":
		verbosity = validator.VerbosityVerbose
	}

	ctx, span := telemetry.StartValidationSpan(context.Background(), evalTool)
	start := time.Now()
	result, err := eng.ValidateCall(ctx, validator.ValidationContext{
		ToolName:  evalTool,
		Arguments: toolArgs,
		CallID:    uuid.NewString(),
		Timestamp: time.Now(),
	}, validator.ExplanationConfig{
		Verbosity:   verbosity,
		RedactPaths: cfg.Explanation.RedactPaths,
	})
	metrics.ValidationDuration.WithLabelValues(evalTool).Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.RecordDecision(span, "error", err.Error())
		return fmt.Errorf("evaluate call: %w", err)
	}
	metrics.ValidationsTotal.WithLabelValues(evalTool, string(result.Decision)).Inc()
	telemetry.RecordDecision(span, string(result.Decision), result.Reason)

	decision := result.Decision
	if cfg.Mode == "log" && decision == validator.DecisionDeny {
		decision = validator.DecisionAllow
	}

	fmt.Printf("decision: %s\n", decision)
	if result.Reason != "" {
		fmt.Printf("reason:   %s\n", result.Reason)
	}
	if result.Explanation != nil {
		explJSON, err := json.MarshalIndent(result.Explanation, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal explanation: %w", err)
		}
		fmt.Println(string(explJSON))
	}
	return nil
}
