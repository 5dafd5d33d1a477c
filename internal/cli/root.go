package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/validate"
)

// Version is set at build time with -ldflags "-X ...cli.Version=..."
var Version = "0.3.0"

const envPrefix = "CLAIMCHECK"

var (
	cfgFile     string
	verbose     bool
	metricsAddr string
)

// keys without a default value that still need to be visible to env lookup
var optionalKeys = []string{
	"llm.base_url",
	"http.http_proxy",
	"http.https_proxy",
	"http.no_proxy",
	"output.metrics_addr",
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "claimcheck",
	Short: "claimcheck - claim-level fact checking with web evidence",
	Long: `claimcheck splits a document into atomic factual claims, decides which
ones are worth checking, searches the web for evidence and asks a language
model whether each piece of evidence supports or refutes the claim.

Every model call is spread over the configured API keys and kept inside
their per-minute and per-day quotas.

claimcheck reports how well claims are supported by the evidence it found.
It is not an oracle.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "claimcheck v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.claimcheck/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("output.metrics_addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file, .env and ENV variables
func initConfig() {
	setupLogging(verbose)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("reading .env failed", "error", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".claimcheck"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// CLAIMCHECK_QUOTA_MAX_WORKERS overrides quota.max_workers
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := registerDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		slog.Warn("registering config defaults failed", "error", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			slog.Warn("reading config file failed", "error", err)
		}
		return
	}
	slog.Debug("using config file", "path", viper.ConfigFileUsed())
}

func setupLogging(debug bool) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// registerDefaults makes every config key known to viper so that env
// variables reach Unmarshal even when the config file does not set them.
func registerDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	setDefaults(v, "", tree)
	for _, key := range optionalKeys {
		v.SetDefault(key, "")
	}
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := prefix + k
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key+".", sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// loadConfig merges defaults, config file, environment and global flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if verbose {
		cfg.Output.Verbose = true
	}
	if metricsAddr != "" {
		cfg.Output.MetricsAddr = metricsAddr
	}
	return cfg, nil
}

// finishConfig resolves credentials and validates cfg once command flags
// have been applied.
func finishConfig(cfg *model.Config) error {
	keyEnv := resolveKeyEnv(cfg)
	cfg.LLM.KeyEnv = keyEnv
	cfg.LLM.APIKeys = llm.KeysFromEnv(keyEnv)
	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = strings.TrimSpace(os.Getenv("SERPER_API_KEY"))
	}

	if err := validate.Config(cfg); err != nil {
		return err
	}
	if llm.NeedsKey(cfg.LLM.Provider) && len(cfg.LLM.APIKeys) == 0 {
		return fmt.Errorf("%s environment variable not set (also checked %s_2 .. %s_%d)", keyEnv, keyEnv, keyEnv, llm.MaxKeys)
	}
	return nil
}

// resolveKeyEnv returns the key variable for the configured provider. The
// gemini default is replaced when another provider is selected.
func resolveKeyEnv(cfg *model.Config) string {
	keyEnv := cfg.LLM.KeyEnv
	if keyEnv == "" || (cfg.LLM.Provider != "gemini" && keyEnv == llm.DefaultKeyEnv("gemini")) {
		keyEnv = llm.DefaultKeyEnv(cfg.LLM.Provider)
	}
	return keyEnv
}

// serveMetrics exposes reg on addr until the process exits
func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
}
