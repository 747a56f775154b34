// Command mailauth runs the email/password auth API.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var envFile string

// NewRootCmd creates the root command. Running it without a subcommand serves
// the API.
func NewRootCmd() *cobra.Command {
	serve := NewServeCmd()

	cmd := &cobra.Command{
		Use:   "mailauth",
		Short: "Email/password authentication API with OTP verification",
		Long: `mailauth serves registration, login and logout over a signed cookie,
plus one-time codes sent by email for account verification and password reset.`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path of an optional .env file")
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(serve)
	return cmd
}

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
