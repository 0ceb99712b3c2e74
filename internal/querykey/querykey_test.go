// ABOUTME: Tests for query key normalization
// ABOUTME: Covers empty-parameter folding, ordering, and prefix matching

package querykey

import "testing"

func TestNew_EmptyParamEqualsAbsent(t *testing.T) {
	a := New("/incidents/", map[string]string{"severity": ""})
	b := New("/incidents/", nil)

	if a != b {
		t.Errorf("expected %q to equal %q", a, b)
	}
}

func TestNew_ParamOrderIrrelevant(t *testing.T) {
	a := New("/alerts/", map[string]string{"severity": "high", "status": "open"})
	b := New("/alerts/", map[string]string{"status": "open", "severity": "high"})

	if a != b {
		t.Errorf("expected %q to equal %q", a, b)
	}
	if a.String() != "/alerts/?severity=high&status=open" {
		t.Errorf("unexpected canonical form %q", a.String())
	}
}

func TestNew_DifferentValuesDiffer(t *testing.T) {
	critical := New("/incidents/", map[string]string{"severity": "critical"})
	low := New("/incidents/", map[string]string{"severity": "low"})

	if critical == low {
		t.Error("expected keys with different values to differ")
	}
}

func TestKeyAccessors(t *testing.T) {
	k := New("/incidents/", map[string]string{"severity": "critical", "limit": "5"})

	if k.Endpoint() != "/incidents/" {
		t.Errorf("expected endpoint /incidents/, got %q", k.Endpoint())
	}
	if k.Param("severity") != "critical" {
		t.Errorf("expected severity critical, got %q", k.Param("severity"))
	}
	if k.Param("status") != "" {
		t.Errorf("expected empty status, got %q", k.Param("status"))
	}
	if !k.HasPrefix("/incidents") {
		t.Error("expected prefix match")
	}
	if k.HasPrefix("/alerts") {
		t.Error("unexpected prefix match")
	}
}
