// ABOUTME: Alert commands for the technoshield console
// ABOUTME: List alerts and show a single alert

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

	"github.com/drake-forum/technoshield/internal/views"
)

var (
	alertSeverity string
	alertStatus   string
	alertPage     int
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List alerts",
	Long:  `List alerts, optionally filtered by severity and status. Pages start at 0.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runAlerts(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var alertCmd = &cobra.Command{
	Use:   "alert <id>",
	Short: "Show one alert",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runAlert(ctx, os.Stdout, args[0])
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(alertsCmd, alertCmd)
	alertsCmd.Flags().StringVar(&alertSeverity, "severity", "", "Filter by severity (critical, high, medium, low)")
	alertsCmd.Flags().StringVar(&alertStatus, "status", "", "Filter by status (open, acknowledged, resolved)")
	alertsCmd.Flags().IntVar(&alertPage, "page", 0, "Page number, starting at 0")
}

// runAlerts lists alerts and returns exit code
func runAlerts(ctx context.Context, w io.Writer) int {
	filter := views.AlertFilter{Severity: alertSeverity, Status: alertStatus, Page: alertPage}
	if err := filter.Validate(); err != nil {
		fmt.Fprintf(w, "Error: invalid filter: %v\n", err)
		return 2
	}

	a, err := newApp(slog.Default(), nil)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	defer a.Close()

	snap, err := a.query(ctx, a.bindings.AlertsKey(filter))
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	if IsJSONOutput() {
		printJSON(w, snap.Data)
		return 0
	}

	items, err := views.Alerts(snap)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	fmt.Fprintln(w, alertTable(items))
	return 0
}

// runAlert shows one alert and returns exit code
func runAlert(ctx context.Context, w io.Writer, arg string) int {
	id, err := parseID(arg)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	a, err := newApp(slog.Default(), nil)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	defer a.Close()

	snap, err := a.query(ctx, views.AlertKey(id))
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	if IsJSONOutput() {
		printJSON(w, snap.Data)
		return 0
	}

	al, err := views.Alert(snap)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	fmt.Fprintln(w, formatAlertHuman(al))
	return 0
}
