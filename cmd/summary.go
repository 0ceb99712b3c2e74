// ABOUTME: Summary command for the technoshield console
// ABOUTME: Shows the dashboard counters and the most recent alerts and incidents

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the dashboard summary",
	Long:  `Display alert and incident counters, week-over-week changes, and the latest alerts and incidents.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runSummary(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

// runSummary fetches the dashboard summary and returns exit code
func runSummary(ctx context.Context, w io.Writer) int {
	a, err := newApp(slog.Default(), nil)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	defer a.Close()

	snap, err := a.query(ctx, a.bindings.DashboardKey())
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	summary, err := a.bindings.Summary(snap)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	if IsJSONOutput() {
		printJSON(w, summary)
	} else {
		fmt.Fprintln(w, formatSummaryHuman(summary))
	}
	return 0
}
