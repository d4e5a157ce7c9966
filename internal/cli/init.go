package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"research/config"
)

var (
	initFormat string
	initForce  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write the default configuration to research.yaml (or research.toml) in the
working directory. API keys are read from the environment or a .env file and
are never written to the configuration.

Examples:
  research init
  research init --format toml`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initFormat, "format", "yaml", "file format: yaml or toml")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
}

func runInit(cmd *cobra.Command, args []string) error {
	var name string
	switch initFormat {
	case "yaml", "yml":
		name = "research.yaml"
	case "toml":
		name = "research.toml"
	default:
		return fmt.Errorf("unknown format: %s", initFormat)
	}

	path := filepath.Join(GetRootDir(), name)
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
