// ABOUTME: Tests for the check command
// ABOUTME: Verifies threshold checking logic and exit codes

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/drake-forum/technoshield/internal/client"
	"github.com/drake-forum/technoshield/internal/testutil"
)

func TestCheckResult_AllPassed(t *testing.T) {
	results := []checkResult{
		{name: "Critical alerts", value: 0, threshold: 0, passed: true},
		{name: "Active incidents", value: 4, threshold: 10, passed: true},
	}

	passed, failed := countResults(results)
	if passed != 2 {
		t.Errorf("expected 2 passed, got %d", passed)
	}
	if failed != 0 {
		t.Errorf("expected 0 failed, got %d", failed)
	}
}

func TestCheckResult_SomeFailed(t *testing.T) {
	results := []checkResult{
		{name: "Critical alerts", value: 3, threshold: 0, passed: false},
		{name: "Active incidents", value: 4, threshold: 10, passed: true},
	}

	passed, failed := countResults(results)
	if passed != 1 {
		t.Errorf("expected 1 passed, got %d", passed)
	}
	if failed != 1 {
		t.Errorf("expected 1 failed, got %d", failed)
	}
}

func TestPerformChecks(t *testing.T) {
	resetFlags(t)
	maxCritical = 1
	maxActive = 2

	summary := &client.DashboardSummary{
		AlertsBySeverity:  map[string]int{"critical": 1, "high": 7},
		IncidentsByStatus: map[string]int{"new": 2, "investigating": 1, "closed": 9},
	}
	results := performChecks(summary)

	if len(results) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(results))
	}
	if !results[0].passed || results[0].value != 1 {
		t.Errorf("critical check = %+v, want value 1 passed", results[0])
	}
	if results[1].passed || results[1].value != 3 {
		t.Errorf("active check = %+v, want value 3 failed", results[1])
	}
}

func TestPerformChecks_NewIncidents(t *testing.T) {
	resetFlags(t)
	summary := &client.DashboardSummary{IncidentsByStatus: map[string]int{"new": 3}}

	if got := len(performChecks(summary)); got != 2 {
		t.Fatalf("new-incident check should be off by default, got %d checks", got)
	}

	maxNew = 2
	results := performChecks(summary)
	if len(results) != 3 {
		t.Fatalf("expected 3 checks, got %d", len(results))
	}
	if results[2].passed || results[2].value != 3 || results[2].flag != "--max-new-incidents" {
		t.Errorf("new check = %+v, want value 3 failed", results[2])
	}
}

func TestFormatCheckHuman(t *testing.T) {
	results := []checkResult{
		{name: "Critical alerts", value: 0, threshold: 0, passed: true},
		{name: "Active incidents", value: 12, threshold: 10, passed: false},
	}

	output := formatCheckHuman(results)

	if !bytes.Contains([]byte(output), []byte("✓")) {
		t.Error("expected checkmark for passed test")
	}
	if !bytes.Contains([]byte(output), []byte("✗")) {
		t.Error("expected X for failed test")
	}
	if !bytes.Contains([]byte(output), []byte("FAILED")) {
		t.Error("expected FAILED summary")
	}
}

func TestFormatCheckJSON(t *testing.T) {
	results := []checkResult{
		{name: "Critical alerts", value: 0, threshold: 0, passed: true},
	}

	output := formatCheckJSON(results)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if parsed["status"] != "passed" {
		t.Errorf("expected status passed, got %v", parsed["status"])
	}
}

func TestValidateThresholds(t *testing.T) {
	if err := validateThresholds(0, 0); err != nil {
		t.Errorf("zero thresholds should be valid: %v", err)
	}
	if err := validateThresholds(-1, 0); err == nil {
		t.Error("expected error for negative --max-critical")
	}
	if err := validateThresholds(0, -1); err == nil {
		t.Error("expected error for negative --max-active-incidents")
	}
}

func TestRunCheck_ExitCodes(t *testing.T) {
	b := testutil.NewBackend(t)
	b.SetSummary(map[string]any{
		"alerts_by_severity":  map[string]any{"critical": 2},
		"incidents_by_status": map[string]any{"new": 1},
	})

	t.Run("exceeded", func(t *testing.T) {
		useBackend(t, b, testutil.Token)
		var buf bytes.Buffer
		if code := runCheck(context.Background(), &buf); code != 1 {
			t.Errorf("exit code = %d, want 1\n%s", code, buf.String())
		}
		if !strings.Contains(buf.String(), "✗ Critical alerts: 2 (max: 0, set by --max-critical)") {
			t.Errorf("unexpected output:\n%s", buf.String())
		}
	})

	t.Run("within thresholds", func(t *testing.T) {
		useBackend(t, b, testutil.Token)
		maxCritical = 5
		var buf bytes.Buffer
		if code := runCheck(context.Background(), &buf); code != 0 {
			t.Errorf("exit code = %d, want 0\n%s", code, buf.String())
		}
	})

	t.Run("not logged in", func(t *testing.T) {
		useBackend(t, b, "")
		var buf bytes.Buffer
		if code := runCheck(context.Background(), &buf); code != 2 {
			t.Errorf("exit code = %d, want 2", code)
		}
		if !strings.Contains(buf.String(), "not logged in") {
			t.Errorf("unexpected output:\n%s", buf.String())
		}
	})
}
