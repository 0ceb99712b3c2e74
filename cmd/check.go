// ABOUTME: Check command for the technoshield console
// ABOUTME: Fails when critical alerts or active incidents exceed thresholds, for scripts and CI

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/drake-forum/technoshield/internal/client"
	"github.com/drake-forum/technoshield/internal/views"
)

var (
	maxCritical int
	maxActive   int
	maxNew      int
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check alert and incident thresholds",
	Long: `Check the dashboard counters and exit non-zero if any threshold is exceeded.
Active incidents are those not yet resolved or closed.

Exit codes:
  0 - All checks passed
  1 - One or more thresholds exceeded
  2 - Error (connectivity, not logged in, invalid input)`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runCheck(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().IntVar(&maxCritical, "max-critical", 0, "Maximum allowed critical alerts")
	checkCmd.Flags().IntVar(&maxActive, "max-active-incidents", 10, "Maximum allowed active incidents")
	checkCmd.Flags().IntVar(&maxNew, "max-new-incidents", -1, "Maximum incidents nobody has picked up yet (-1 disables)")
}

// checkResult is one threshold compared against a dashboard counter.
type checkResult struct {
	name      string
	flag      string
	value     int
	threshold int
	passed    bool
}

// runCheck executes the threshold checks and returns exit code
func runCheck(ctx context.Context, w io.Writer) int {
	if err := validateThresholds(maxCritical, maxActive); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

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

	results := performChecks(summary)
	for _, r := range results {
		if !r.passed {
			slog.Debug("threshold exceeded", "check", r.name, "value", r.value, "threshold", r.threshold)
		}
	}

	if IsJSONOutput() {
		fmt.Fprintln(w, formatCheckJSON(results))
	} else {
		fmt.Fprintln(w, formatCheckHuman(results))
	}

	if _, failed := countResults(results); failed > 0 {
		return 1
	}
	return 0
}

func validateThresholds(critical, active int) error {
	if critical < 0 {
		return errors.New("--max-critical must not be negative")
	}
	if active < 0 {
		return errors.New("--max-active-incidents must not be negative")
	}
	return nil
}

// performChecks compares the summary counters with the configured limits.
// The new-incident check is only included when --max-new-incidents is set.
func performChecks(s *client.DashboardSummary) []checkResult {
	threshold := func(name, flag string, value, limit int) checkResult {
		return checkResult{name: name, flag: flag, value: value, threshold: limit, passed: value <= limit}
	}

	results := []checkResult{
		threshold("Critical alerts", "--max-critical", s.AlertsBySeverity["critical"], maxCritical),
		threshold("Active incidents", "--max-active-incidents", views.ActiveIncidents(s), maxActive),
	}
	if maxNew >= 0 {
		results = append(results, threshold("New incidents", "--max-new-incidents", s.IncidentsByStatus["new"], maxNew))
	}
	return results
}

func countResults(results []checkResult) (passed, failed int) {
	for _, r := range results {
		if r.passed {
			passed++
		} else {
			failed++
		}
	}
	return
}

func formatCheckHuman(results []checkResult) string {
	var b strings.Builder
	for _, r := range results {
		if r.passed {
			fmt.Fprintf(&b, "✓ %s: %d (max: %d)\n", r.name, r.value, r.threshold)
			continue
		}
		fmt.Fprintf(&b, "✗ %s: %d (max: %d, set by %s)\n", r.name, r.value, r.threshold, r.flag)
	}

	passed, failed := countResults(results)
	if failed > 0 {
		fmt.Fprintf(&b, "\nFAILED: %d of %d check(s) exceeded threshold", failed, len(results))
	} else {
		fmt.Fprintf(&b, "\nPASSED: All %d check(s) within thresholds", passed)
	}
	return b.String()
}

type checkJSON struct {
	Status string          `json:"status"`
	Checks []checkItemJSON `json:"checks"`
}

type checkItemJSON struct {
	Name      string `json:"name"`
	Value     int    `json:"value"`
	Threshold int    `json:"threshold"`
	Passed    bool   `json:"passed"`
}

func formatCheckJSON(results []checkResult) string {
	out := checkJSON{Status: "passed", Checks: make([]checkItemJSON, 0, len(results))}
	for _, r := range results {
		out.Checks = append(out.Checks, checkItemJSON{Name: r.name, Value: r.value, Threshold: r.threshold, Passed: r.passed})
		if !r.passed {
			out.Status = "failed"
		}
	}

	data, _ := json.MarshalIndent(out, "", "  ")
	return string(data)
}
