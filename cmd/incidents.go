// ABOUTME: Incident commands for the technoshield console
// ABOUTME: List, show, create, and update incidents

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/cobra"

	"github.com/drake-forum/technoshield/internal/client"
	"github.com/drake-forum/technoshield/internal/views"
)

var (
	incidentSeverity string
	incidentStatus   string
	incidentPage     int

	newTitle       string
	newDescription string
	newSeverity    string
	newType        string
	newAffected    string

	updateStatus     string
	updateSeverity   string
	updateResolution string
)

var incidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "List incidents",
	Long:  `List incidents, optionally filtered by severity and status. Pages start at 0.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runIncidents(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var incidentCmd = &cobra.Command{
	Use:   "incident <id>",
	Short: "Show one incident, or create and update incidents",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runIncident(ctx, os.Stdout, args[0])
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var incidentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "File a new incident",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runIncidentCreate(ctx, os.Stdout)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var incidentUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change an incident's status or severity",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runIncidentUpdate(ctx, os.Stdout, args[0])
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(incidentsCmd, incidentCmd)
	incidentCmd.AddCommand(incidentCreateCmd, incidentUpdateCmd)

	incidentsCmd.Flags().StringVar(&incidentSeverity, "severity", "", "Filter by severity (critical, high, medium, low)")
	incidentsCmd.Flags().StringVar(&incidentStatus, "status", "", "Filter by status (new, investigating, mitigated, resolved, closed)")
	incidentsCmd.Flags().IntVar(&incidentPage, "page", 0, "Page number, starting at 0")

	incidentCreateCmd.Flags().StringVar(&newTitle, "title", "", "Incident title")
	incidentCreateCmd.Flags().StringVar(&newDescription, "description", "", "Incident description")
	incidentCreateCmd.Flags().StringVar(&newSeverity, "severity", "medium", "Severity (critical, high, medium, low)")
	incidentCreateCmd.Flags().StringVar(&newType, "type", "other", "Incident type")
	incidentCreateCmd.Flags().StringVar(&newAffected, "affected", "", "Affected systems")

	incidentUpdateCmd.Flags().StringVar(&updateStatus, "status", "", "New status")
	incidentUpdateCmd.Flags().StringVar(&updateSeverity, "severity", "", "New severity")
	incidentUpdateCmd.Flags().StringVar(&updateResolution, "resolution", "", "Resolution summary")
}

// runIncidents lists incidents and returns exit code
func runIncidents(ctx context.Context, w io.Writer) int {
	filter := views.IncidentFilter{Severity: incidentSeverity, Status: incidentStatus, Page: incidentPage}
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

	snap, err := a.query(ctx, a.bindings.IncidentsKey(filter))
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	if IsJSONOutput() {
		printJSON(w, snap.Data)
		return 0
	}

	items, err := views.Incidents(snap)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	fmt.Fprintln(w, incidentTable(items))
	return 0
}

// runIncident shows one incident and returns exit code
func runIncident(ctx context.Context, w io.Writer, arg string) int {
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

	snap, err := a.query(ctx, views.IncidentKey(id))
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	if IsJSONOutput() {
		printJSON(w, snap.Data)
		return 0
	}

	inc, err := views.Incident(snap)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	fmt.Fprintln(w, formatIncidentHuman(inc))
	return 0
}

// runIncidentCreate files an incident and returns exit code
func runIncidentCreate(ctx context.Context, w io.Writer) int {
	in := client.IncidentCreate{
		Title:           newTitle,
		Description:     newDescription,
		Severity:        newSeverity,
		IncidentType:    newType,
		AffectedSystems: newAffected,
	}
	if err := views.ValidateNewIncident(&in); err != nil {
		fmt.Fprintf(w, "Error: invalid incident: %v\n", err)
		return 2
	}

	a, err := newApp(slog.Default(), nil)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	defer a.Close()

	if err := a.authorize(); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	inc, err := a.client.CreateIncident(ctx, in)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	if err := a.bindings.InvalidateIncidents(a.cache); err != nil {
		a.logger.Debug("invalidate after create", "error", err)
	}

	if IsJSONOutput() {
		printJSON(w, inc)
	} else {
		fmt.Fprintf(w, "Created incident #%d: %s\n", inc.ID, inc.Title)
	}
	return 0
}

// runIncidentUpdate changes an incident and returns exit code
func runIncidentUpdate(ctx context.Context, w io.Writer, arg string) int {
	id, err := parseID(arg)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	update, err := buildIncidentUpdate()
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

	if err := a.authorize(); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	inc, err := a.client.UpdateIncident(ctx, id, update)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	if err := a.bindings.InvalidateIncidents(a.cache); err != nil {
		a.logger.Debug("invalidate after update", "error", err)
	}

	if IsJSONOutput() {
		printJSON(w, inc)
	} else {
		fmt.Fprintf(w, "Updated incident #%d: %s [%s]\n", inc.ID, inc.Status, inc.Severity)
	}
	return 0
}

func buildIncidentUpdate() (client.IncidentUpdate, error) {
	var update client.IncidentUpdate
	if updateStatus == "" && updateSeverity == "" && updateResolution == "" {
		return update, errors.New("nothing to update; pass --status, --severity, or --resolution")
	}

	err := validation.Errors{
		"status":   validation.Validate(updateStatus, validation.In(toAny(views.IncidentStatuses)...)),
		"severity": validation.Validate(updateSeverity, validation.In(toAny(views.Severities)...)),
	}.Filter()
	if err != nil {
		return update, err
	}

	if updateStatus != "" {
		update.Status = &updateStatus
	}
	if updateSeverity != "" {
		update.Severity = &updateSeverity
	}
	if updateResolution != "" {
		update.ResolutionSummary = &updateResolution
	}
	return update, nil
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func toAny(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
