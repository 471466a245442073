package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/gopop/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking GOPOP_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("GOPOP_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the gopop CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gopop",
		Short: "GoPop: priority arbiter for interruptions",
		Long:  "GoPop admits interruption requests, shows one at a time by priority, and streams their lifecycle.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			}
			if err := logging.ValidateFormat(flagLogFormat); err != nil {
				return err
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, cmd.ErrOrStderr())
			client = NewClient(flagServer, logger)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "GoPop server URL (or GOPOP_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newAddCmd(),
		newListCmd(),
		newStatusCmd(),
		newResignCmd(),
		newCancelCmd(),
		newEventsCmd(),
		newWatchCmd(),
	)

	return root
}
