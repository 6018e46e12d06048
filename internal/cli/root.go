// Package cli implements the civic command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	appLog "civiccircle/internal/log"
)

// Version is reported by --version.
var Version = "0.1.0-dev"

// NewRootCmd builds the civic command tree.
func NewRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "civic",
		Short: "Civic Circle community events from the terminal",
		Long: `civic lets residents browse and join community events, discuss in the
forums and receive local reminders for the events they joined.

Reminders are kept in a queue under the data directory. Run
"civic reminders run" to have them delivered while you work.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&e.configPath, "config", "", "config file (default is the user config dir, e.g. ~/.config/civic/config.yaml)")
	flags.StringVar(&e.logLevel, "log-level", "", "log level: debug, info or error (overrides config)")
	flags.StringVar(&e.apiURL, "api", "", "REST API base URL (overrides config)")

	root.AddCommand(
		newLoginCmd(e),
		newLogoutCmd(e),
		newRegisterCmd(e),
		newResetPasswordCmd(e),
		newVerifyOTPCmd(e),
		newStatusCmd(e),
		newEventsCmd(e),
		newForumsCmd(e),
		newNotificationsCmd(e),
		newRemindersCmd(e),
		newMockAPICmd(e),
	)
	return root
}

// ExecuteContext runs the command line with ctx.
func ExecuteContext(ctx context.Context) error {
	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		appLog.Debug("command failed", "err", err)
	}
	return err
}
