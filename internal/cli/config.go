package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/validate"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage claimcheck configuration",
	Long: `Manage claimcheck configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (CLAIMCHECK_*, e.g. CLAIMCHECK_QUOTA_MAX_WORKERS)
3. Config file (~/.claimcheck/config.yaml)
4. Defaults

API keys are only read from the environment (or a .env file).`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the merged configuration (defaults, config file, env vars) and which credentials were found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out, "  Current Configuration")
		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out)

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Fprintln(out, string(yamlData))

		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out)
		printCredentials(out, cfg, os.LookupEnv)
		fmt.Fprintln(out)

		if err := validate.Config(cfg); err != nil {
			fmt.Fprintf(out, "⚠ %v\n\n", err)
		}
		return nil
	},
}

// printCredentials reports which key variables are set without showing them
func printCredentials(w io.Writer, cfg *model.Config, lookup func(string) (string, bool)) {
	keyEnv := resolveKeyEnv(cfg)

	fmt.Fprintln(w, "Credentials:")
	if !llm.NeedsKey(cfg.LLM.Provider) {
		fmt.Fprintf(w, "  LLM (%s):  no key needed\n", cfg.LLM.Provider)
	} else {
		var found []string
		for i := 1; i <= llm.MaxKeys; i++ {
			name := keyEnv
			if i > 1 {
				name = fmt.Sprintf("%s_%d", keyEnv, i)
			}
			if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
				found = append(found, name)
			}
		}
		if len(found) == 0 {
			fmt.Fprintf(w, "  LLM (%s):  ✗ %s not set\n", cfg.LLM.Provider, keyEnv)
		} else {
			fmt.Fprintf(w, "  LLM (%s):  ✓ %d key(s): %s\n", cfg.LLM.Provider, len(found), strings.Join(found, ", "))
		}
	}

	if v, ok := lookup("SERPER_API_KEY"); ok && strings.TrimSpace(v) != "" {
		fmt.Fprintln(w, "  Search:        ✓ SERPER_API_KEY")
	} else {
		fmt.Fprintln(w, "  Search:        ✗ SERPER_API_KEY not set (claims will have no evidence)")
	}
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.claimcheck/config.yaml with every available option.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}
		configPath := filepath.Join(home, ".claimcheck", "config.yaml")
		if cfgFile != "" {
			configPath = cfgFile
		}

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'claimcheck config show' to view it, or delete it first to recreate", configPath)
		}

		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created default configuration: %s\n", configPath)
		fmt.Fprintf(out, "\nTo view the configuration:\n")
		fmt.Fprintf(out, "  claimcheck config show\n")
		fmt.Fprintf(out, "\nTo customize, edit the file with your preferred editor:\n")
		fmt.Fprintf(out, "  $EDITOR %s\n", configPath)
		fmt.Fprintf(out, "\n")
		return nil
	},
}

// writeDefaultConfig writes the defaults as commented YAML to path
func writeDefaultConfig(path string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", closeErr)
		}
	}()

	printf := func(format string, a ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(f, format, a...)
	}

	printf("# claimcheck configuration file\n")
	printf("#\n")
	printf("# Configuration hierarchy (highest to lowest priority):\n")
	printf("#   1. CLI flags\n")
	printf("#   2. Environment variables (CLAIMCHECK_*)\n")
	printf("#   3. This config file\n")
	printf("#   4. Built-in defaults\n")
	printf("#\n")
	printf("# quota applies to each API key separately: requests_per_window per\n")
	printf("# window, and requests_per_day reset at midnight in quota.timezone.\n\n")
	printf("%s", yamlData)

	printf("\n# API keys are read from the environment (or ./.env), never from this file:\n")
	printf("#   export GEMINI_API_KEY=...      # first key\n")
	printf("#   export GEMINI_API_KEY_2=...    # up to GEMINI_API_KEY_%d\n", llm.MaxKeys)
	printf("#   export OPENAI_API_KEY=sk-...   # llm.provider: openai\n")
	printf("#   export ANTHROPIC_API_KEY=...   # llm.provider: anthropic\n")
	printf("#   export SERPER_API_KEY=...      # web evidence search\n")

	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
