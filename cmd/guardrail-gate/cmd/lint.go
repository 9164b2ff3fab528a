package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aegiswall/guardrail/internal/config"
	"github.com/aegiswall/guardrail/internal/domain/loader"
	"github.com/aegiswall/guardrail/internal/domain/signing"
)

var lintRulesDir string

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Load a rules directory and report what would be loaded",
	Long: `Lint walks a rules directory the same way the runtime does at
startup — parsing plain YAML rule sets, verifying signed bundles per the
configured signing policy — and reports a summary without running any
tool call through the engine.`,
	RunE: runLint,
}

func init() {
	lintCmd.Flags().StringVar(&lintRulesDir, "rules-dir", "", "rules directory to lint (default: config rules_dir)")
	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dir := lintRulesDir
	if dir == "" {
		dir = cfg.RulesDir
	}

	l := loader.New(loaderOptsFromConfig(cfg)...)
	if err := l.LoadFromDirectory(dir); err != nil {
		return fmt.Errorf("lint %s: %w", dir, err)
	}

	loaded := l.Rules()
	fmt.Printf("rules dir:      %s\n", dir)
	fmt.Printf("sources:        %d\n", len(loaded.Sources))
	fmt.Printf("rule sets:      %d\n", len(loaded.RuleSets))
	fmt.Printf("total rules:    %d\n", len(loaded.AllRules))
	fmt.Printf("global rules:   %d\n", len(loaded.GlobalRules))
	fmt.Printf("tool-scoped for %d distinct tool(s)\n", len(loaded.ByTool))
	for _, src := range loaded.Sources {
		fmt.Printf("  - %s\n", src)
	}
	return nil
}

// loaderOptsFromConfig translates GuardrailConfig.Signing into the
// loader's signing-mode options, leaving signing "absent" (skip signed
// bundles with a warning) when it isn't enabled in config at all.
func loaderOptsFromConfig(cfg *config.GuardrailConfig) []loader.Option {
	if !cfg.Signing.Enabled && len(cfg.Signing.PublicKeys) == 0 {
		return nil
	}
	trusted := signing.TrustedKeys{}
	for keyID, pubKeyDER := range cfg.Signing.PublicKeys {
		pub, err := signing.ParsePublicKey(pubKeyDER)
		if err != nil {
			continue
		}
		trusted[keyID] = pub
	}
	signingCfg := signing.SigningConfig{
		Enabled:       cfg.Signing.Enabled,
		Required:      cfg.Signing.Required,
		AllowRotation: cfg.Signing.AllowRotation,
		PinnedVersion: cfg.Signing.PinnedVersion,
		PinnedHash:    cfg.Signing.PinnedHash,
	}
	return []loader.Option{loader.WithSigningConfig(signingCfg, trusted)}
}
