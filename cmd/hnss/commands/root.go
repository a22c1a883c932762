package commands

import (
	"context"
	"log/slog"
	"os"

	"hnsaved/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var rootFlags struct {
	debug   bool
	verbose bool
}

var rootCmd = &cobra.Command{
	Use:   "hnss",
	Short: "hnss archives the stories you saved (upvoted) on Hacker News.",
	Long: `hnss downloads the stories you saved on Hacker News into a local archive.
Subsequent runs against the same archive only fetch the pages with stories
that are not archived yet.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(telemetry.NewTextLogger(os.Stderr, logLevel()))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.debug, "debug", "d", false, "Debug mode.")
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Verbose output.")
}

func logLevel() slog.Level {
	switch {
	case rootFlags.debug:
		return slog.LevelDebug
	case rootFlags.verbose:
		return slog.LevelInfo
	default:
		return slog.LevelError
	}
}

// ExecuteContext runs the command line, errors are returned instead of printed.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
