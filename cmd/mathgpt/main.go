package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/mathgpt/internal/config"
	"github.com/zhouzirui/mathgpt/internal/logging"
)

var (
	verbose      bool
	endpoint     string
	timeout      time.Duration
	storeBackend string
	storePath    string
	userName     string
	logFile      string
	glamourStyle string

	clientCfg config.ClientConfig
	logger    *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mathgpt",
	Short: "MathGPT - a terminal math assistant",
	Long: `MathGPT talks to the math assistant service and keeps your conversation
and topics on disk between runs.

Run without arguments to start the interactive chat.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; the environment may already be set.
		_ = godotenv.Load()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		clientCfg = applyFlags(cmd, cfg.Client)

		path := logFile
		if path == "" {
			path = filepath.Join(filepath.Dir(clientCfg.StorePath), "mathgpt.log")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		logger, err = logging.NewFile(path, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runChat,
}

// applyFlags lets explicitly set flags win over the environment.
func applyFlags(cmd *cobra.Command, cfg config.ClientConfig) config.ClientConfig {
	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint = endpoint
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("store") {
		cfg.Store = storeBackend
	}
	if flags.Changed("store-path") {
		cfg.StorePath = storePath
	}
	if flags.Changed("user") {
		cfg.DisplayName = userName
	}
	return cfg
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "Assistant chat URL (or set MATHGPT_ENDPOINT)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "", "Storage backend: memory, bolt or pebble")
	rootCmd.PersistentFlags().StringVar(&storePath, "store-path", "", "Storage file or directory")
	rootCmd.PersistentFlags().StringVarP(&userName, "user", "u", "", "Display name used in the greeting")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file (default: next to the store)")
	rootCmd.PersistentFlags().StringVar(&glamourStyle, "style", "", "Glamour style (auto when empty)")

	historyCmd.Flags().Bool("json", false, "Print rendered blocks as JSON")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(logoutCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
