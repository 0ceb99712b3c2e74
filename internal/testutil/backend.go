// ABOUTME: In-process fake of the alert backend API for tests
// ABOUTME: Serves fixtures over chi with bearer auth, filters, and injectable failures

package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// Default credentials accepted by the fake backend.
const (
	Username = "analyst"
	Password = "hunter2"
	Token    = "test-token"
)

// Record is one request as seen by the backend.
type Record struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	RequestID     string
}

type failure struct {
	status    int
	remaining int
}

// Backend is a fake /api/v1 server holding fixtures in memory.
type Backend struct {
	Server *httptest.Server

	mu        sync.Mutex
	incidents []map[string]any
	alerts    []map[string]any
	summary   map[string]any
	nextID    int
	records   []Record
	failures  map[string]*failure
	delays    map[string]time.Duration
}

// NewBackend starts a fake backend that is shut down when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		summary:  map[string]any{},
		nextID:   100,
		failures: make(map[string]*failure),
		delays:   make(map[string]time.Duration),
	}

	r := chi.NewRouter()
	r.Use(b.record)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", b.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(b.requireToken)
			r.Post("/auth/logout", b.handleLogout)
			r.Get("/dashboard/summary", b.handleSummary)
			r.Get("/incidents/", b.handleList(func() []map[string]any { return b.incidents }))
			r.Post("/incidents/", b.handleCreateIncident)
			r.Get("/incidents/{id}", b.handleGet(func() []map[string]any { return b.incidents }, "Incident not found"))
			r.Put("/incidents/{id}", b.handleUpdateIncident)
			r.Get("/alerts/", b.handleList(func() []map[string]any { return b.alerts }))
			r.Get("/alerts/{id}", b.handleGet(func() []map[string]any { return b.alerts }, "Alert not found"))
		})
	})

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the backend root (without /api/v1).
func (b *Backend) URL() string {
	return b.Server.URL
}

// SetIncidents replaces the incident fixtures.
func (b *Backend) SetIncidents(items ...map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.incidents = items
}

// SetAlerts replaces the alert fixtures.
func (b *Backend) SetAlerts(items ...map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerts = items
}

// SetSummary replaces the dashboard summary body.
func (b *Backend) SetSummary(summary map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary = summary
}

// FailNext makes the next n requests to path answer with status.
func (b *Backend) FailNext(path string, status, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = &failure{status: status, remaining: n}
}

// Delay holds every response for path by d.
func (b *Backend) Delay(path string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delays[path] = d
}

// Records returns a copy of every request seen so far.
func (b *Backend) Records() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// Hits counts requests whose path equals path.
func (b *Backend) Hits(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, rec := range b.records {
		if rec.Path == path {
			n++
		}
	}
	return n
}

// Incident builds an incident fixture.
func Incident(id int, severity, status string) map[string]any {
	return map[string]any{
		"id":            id,
		"title":         "Incident " + strconv.Itoa(id),
		"description":   "fixture",
		"severity":      severity,
		"status":        status,
		"incident_type": "malware",
		"created_at":    "2026-03-01T12:00:00Z",
		"updated_at":    "2026-03-01T12:00:00Z",
	}
}

// Alert builds an alert fixture.
func Alert(id int, severity, status string) map[string]any {
	return map[string]any{
		"id":          id,
		"title":       "Alert " + strconv.Itoa(id),
		"description": "fixture",
		"severity":    severity,
		"status":      status,
		"source":      "ids",
		"alert_type":  "intrusion",
		"created_at":  "2026-03-01T12:00:00Z",
		"updated_at":  "2026-03-01T12:00:00Z",
	}
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		b.mu.Lock()
		b.records = append(b.records, Record{
			Method:        r.Method,
			Path:          path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
		})
		delay := b.delays[path]
		var status int
		if f, ok := b.failures[path]; ok && f.remaining > 0 {
			f.remaining--
			status = f.status
		}
		b.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			writeJSON(w, status, map[string]any{"detail": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "invalid form"})
		return
	}
	if r.PostForm.Get("username") != Username || r.PostForm.Get("password") != Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Incorrect username or password"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"access_token": Token, "token_type": "bearer"})
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "logged out"})
}

func (b *Backend) handleSummary(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	summary := b.summary
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, summary)
}

func (b *Backend) handleList(items func() []map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		b.mu.Lock()
		out := make([]map[string]any, 0)
		for _, item := range items() {
			if s := q.Get("severity"); s != "" && item["severity"] != s {
				continue
			}
			if s := q.Get("status"); s != "" && item["status"] != s {
				continue
			}
			out = append(out, item)
		}
		b.mu.Unlock()

		skip, _ := strconv.Atoi(q.Get("skip"))
		if skip > len(out) {
			skip = len(out)
		}
		out = out[skip:]
		if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit < len(out) {
			out = out[:limit]
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (b *Backend) handleGet(items func() []map[string]any, notFound string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid id"})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, item := range items() {
			if item["id"] == id {
				writeJSON(w, http.StatusOK, item)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": notFound})
	}
}

func (b *Backend) handleCreateIncident(w http.ResponseWriter, r *http.Request) {
	var in map[string]any
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid body"})
		return
	}

	b.mu.Lock()
	b.nextID++
	incident := Incident(b.nextID, "", "new")
	for k, v := range in {
		incident[k] = v
	}
	incident["id"] = b.nextID
	b.incidents = append([]map[string]any{incident}, b.incidents...)
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, incident)
}

func (b *Backend) handleUpdateIncident(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid id"})
		return
	}
	var in map[string]any
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, item := range b.incidents {
		if item["id"] == id {
			for k, v := range in {
				item[k] = v
			}
			writeJSON(w, http.StatusOK, item)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Incident not found"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
