package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"research/config"
	"research/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	appLog  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "research",
	Short: "Research - answer questions from fresh web sources with citations",
	Long: `Research searches the web for a query, reads the top results, ranks the
passages that best match it and writes a short answer citing its sources.

Example usage:
  research ask -q "what is quantum entanglement"   # One-shot answer
  research serve                                   # HTTP API on :8000
  research mcp                                     # MCP tools over stdio
  research init                                    # Write research.yaml`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if err := config.LoadEnv(rootDir); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		appLog, err = logger.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appLog != nil {
			_ = appLog.Sync()
		}
	},
}

// Execute runs the root command. ctx is cancelled on shutdown signals.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./research.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "working directory for config, .env and data files (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

func GetLogger() *zap.Logger {
	return logger.OrNop(appLog)
}
