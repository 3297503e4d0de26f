package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "animus",
	Short: "Context assembly and continuity engine for conversational personas",
	Long:  "Animus assembles bounded context for persona turns and keeps the decaying cross-session state (trust, memory, entropy, narrative) that feeds it.",
}

var configPath string

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml (default ~/.animus/config.toml)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
