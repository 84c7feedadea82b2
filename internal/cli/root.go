// Package cli wires the pinrelay commands: the admin server and client provisioning.
package cli

import (
	"context"

	"pinrelay/internal/backends"
	"pinrelay/internal/config"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	settings config.Settings

	// openBackends is swapped in tests to share one in-memory registry across commands.
	openBackends = backends.Open
)

var rootCmd = &cobra.Command{
	Use:           "pinrelay",
	Short:         "Admin PIN reset service for registered bot clients",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		config.LoadDotEnv()
		s, err := config.FromEnv()
		if err != nil {
			return err
		}
		if err := config.ConfigureLogging(s); err != nil {
			return err
		}
		settings = s
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("pinrelay version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
