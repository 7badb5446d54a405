package cmd

import (
	"bufio"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmcleod/ironseal/encryption"
	"github.com/jmcleod/ironseal/internal/config"
	"github.com/jmcleod/ironseal/internal/logging"
)

var (
	configDir string
	logLevel  string

	cfg    *config.Config
	logger *slog.Logger
	input  *bufio.Reader
)

var rootCmd = &cobra.Command{
	Use:   "ironseal",
	Short: "IronSeal keeps task content end-to-end encrypted",
	Long: `End-to-end encryption for task titles and descriptions.
The master key never leaves this device; a 24-word recovery phrase restores it on another one.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadRuntime,
}

// Execute runs the root command. Cobra has already printed any error.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding the key file and local data (env IRONSEAL_CONFIG_DIR)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (env IRONSEAL_LOG_LEVEL)")
}

func loadRuntime(cmd *cobra.Command, _ []string) error {
	cfg = config.Load()
	if configDir != "" {
		cfg.SetConfigDir(configDir)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger = logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	input = bufio.NewReader(cmd.InOrStdin())
	return nil
}

func newService() (*encryption.Service, error) {
	store, err := cfg.KeyStorage()
	if err != nil {
		return nil, err
	}
	return encryption.New(store, encryption.WithLogger(logger)), nil
}
