package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for guardrail.yaml/.yml in
// standard locations. The search requires an explicit YAML extension to
// avoid matching a same-named binary, which Viper's built-in SetConfigName
// would otherwise match.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("guardrail")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GUARDRAIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".guardrail"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "guardrail"))
		}
	} else {
		paths = append(paths, "/etc/guardrail")
	}
	return findConfigFileInPaths(paths)
}

func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "guardrail"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds the config keys callers most often override via
// environment variable, e.g. GUARDRAIL_MODE or GUARDRAIL_RESILIENCE_FAIL_MODE.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("mode")
	_ = viper.BindEnv("default_decision")
	_ = viper.BindEnv("rules_dir")
	_ = viper.BindEnv("explanation.verbosity")
	_ = viper.BindEnv("signing.enabled")
	_ = viper.BindEnv("signing.required")
	_ = viper.BindEnv("resilience.fail_mode")
	_ = viper.BindEnv("resilience.deadline_ms")
	_ = viper.BindEnv("rate_limit.max_calls")
	_ = viper.BindEnv("rate_limit.window_seconds")
	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the GuardrailConfig, validated.
func LoadConfig() (*GuardrailConfig, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg GuardrailConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.SetDevDefaults()
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or empty string if none was found (env-vars-only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
