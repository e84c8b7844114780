package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pactline/internal/config"
)

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.pactline/config.yaml)")
}

var rootCmd = &cobra.Command{
	Use:          "pactline",
	Short:        "Policy-governed contract negotiation for data spaces",
	Long:         "Negotiates usage contracts between two connectors: locked, negotiable and injected terms,\nversioned counter-proposals, a one-way signing gate and metered access.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// stdout returns the command's output writer. Tests call run functions
// with a nil command.
func stdout(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stdout
	}
	return cmd.OutOrStdout()
}

func stderr(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stderr
	}
	return cmd.ErrOrStderr()
}
