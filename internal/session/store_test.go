// ABOUTME: Tests for the session store and token persistence
// ABOUTME: Covers idempotent clear, expiry on init, file round trips, and watching

package session

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "analyst",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func TestStore_StartsLoading(t *testing.T) {
	s := NewStore(NewMemoryStore(""), WithLogger(quietLogger()))
	if s.AuthState().Status != StatusLoading {
		t.Errorf("expected loading before Init, got %s", s.AuthState().Status)
	}

	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if s.AuthState().Status != StatusUnauthenticated {
		t.Errorf("expected unauthenticated, got %s", s.AuthState().Status)
	}
}

func TestStore_InitRestoresPersistedToken(t *testing.T) {
	s := NewStore(NewMemoryStore("opaque-token"), WithLogger(quietLogger()))
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	state := s.AuthState()
	if !state.IsAuthenticated() {
		t.Fatalf("expected authenticated, got %s", state.Status)
	}
	if state.Token != "opaque-token" {
		t.Errorf("expected opaque-token, got %q", state.Token)
	}
}

func TestStore_InitDiscardsExpiredJWT(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	persisted := NewMemoryStore(signedToken(t, now.Add(-time.Minute)))

	s := NewStore(persisted, WithLogger(quietLogger()), WithClock(func() time.Time { return now }))
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if s.AuthState().Status != StatusUnauthenticated {
		t.Errorf("expected expired token to be discarded, got %s", s.AuthState().Status)
	}
	if tok, _ := persisted.Load(); tok != "" {
		t.Errorf("expected persisted token to be cleared, got %q", tok)
	}
}

func TestStore_InitKeepsValidJWT(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := signedToken(t, now.Add(time.Hour))

	s := NewStore(NewMemoryStore(token), WithLogger(quietLogger()), WithClock(func() time.Time { return now }))
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if s.Token() != token {
		t.Error("expected valid token to be kept")
	}
}

func TestStore_SetCredentialPersistsAndNotifies(t *testing.T) {
	persisted := NewMemoryStore("")
	s := NewStore(persisted, WithLogger(quietLogger()))
	_ = s.Init()

	var got []AuthState
	unsubscribe := s.Subscribe(func(state AuthState) { got = append(got, state) })
	defer unsubscribe()

	if err := s.SetCredential("abc"); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}

	if len(got) != 1 || got[0].Status != StatusAuthenticated || got[0].Token != "abc" {
		t.Errorf("unexpected notifications: %+v", got)
	}
	if tok, _ := persisted.Load(); tok != "abc" {
		t.Errorf("expected persisted abc, got %q", tok)
	}
}

func TestStore_SetCredentialRejectsEmpty(t *testing.T) {
	s := NewStore(NewMemoryStore(""), WithLogger(quietLogger()))
	if err := s.SetCredential(""); err != ErrEmptyToken {
		t.Errorf("expected ErrEmptyToken, got %v", err)
	}
}

func TestStore_ClearCredentialIsIdempotent(t *testing.T) {
	s := NewStore(NewMemoryStore("abc"), WithLogger(quietLogger()))
	_ = s.Init()

	var notifications int32
	s.Subscribe(func(AuthState) { atomic.AddInt32(&notifications, 1) })

	for i := 0; i < 3; i++ {
		if err := s.ClearCredential(); err != nil {
			t.Fatalf("ClearCredential: %v", err)
		}
	}

	if n := atomic.LoadInt32(&notifications); n != 1 {
		t.Errorf("expected exactly 1 notification, got %d", n)
	}
	if s.AuthState().Status != StatusUnauthenticated {
		t.Errorf("expected unauthenticated, got %s", s.AuthState().Status)
	}
}

func TestStore_UnsubscribeStopsNotifications(t *testing.T) {
	s := NewStore(NewMemoryStore(""), WithLogger(quietLogger()))
	_ = s.Init()

	calls := 0
	unsubscribe := s.Subscribe(func(AuthState) { calls++ })
	unsubscribe()
	unsubscribe()

	_ = s.SetCredential("abc")
	if calls != 0 {
		t.Errorf("expected no calls after unsubscribe, got %d", calls)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	fs := NewFileStore(path)

	tok, err := fs.Load()
	if err != nil || tok != "" {
		t.Fatalf("expected empty load for missing file, got %q, %v", tok, err)
	}

	if err := fs.Save("secret"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %o", info.Mode().Perm())
	}

	tok, err = fs.Load()
	if err != nil || tok != "secret" {
		t.Errorf("expected secret, got %q, %v", tok, err)
	}

	if err := fs.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := fs.Clear(); err != nil {
		t.Errorf("expected second Clear to succeed, got %v", err)
	}
	if tok, _ := fs.Load(); tok != "" {
		t.Errorf("expected empty after clear, got %q", tok)
	}
}

func TestFileStore_CorruptFileIsLoggedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	tok, err := NewFileStore(path).Load()
	if err != nil || tok != "" {
		t.Errorf("expected empty token for corrupt file, got %q, %v", tok, err)
	}
}

func TestDefaultConfigDir_UsesXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := DefaultConfigDir(); got != "/tmp/xdg/technoshield" {
		t.Errorf("expected /tmp/xdg/technoshield, got %q", got)
	}
	if got := DefaultTokenPath(); got != "/tmp/xdg/technoshield/token.json" {
		t.Errorf("unexpected token path %q", got)
	}
}

func TestWatch_ReloadsOnExternalChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	local := NewStore(NewFileStore(path), WithLogger(quietLogger()))
	require.NoError(t, local.Init())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, local, path, quietLogger()) }()

	// Another process logs in by writing the file directly.
	other := NewFileStore(path)
	require.Eventually(t, func() bool {
		_ = other.Save("from-elsewhere")
		return local.Token() == "from-elsewhere"
	}, 3*time.Second, 150*time.Millisecond)

	require.NoError(t, other.Clear())
	require.Eventually(t, func() bool {
		return local.AuthState().Status == StatusUnauthenticated
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := Expiry(signedToken(t, exp))
	if !ok {
		t.Fatal("expected expiry for signed token")
	}
	if !got.Equal(exp) {
		t.Errorf("expected %v, got %v", exp, got)
	}

	if _, ok := Expiry("opaque-token"); ok {
		t.Error("expected no expiry for opaque token")
	}
}
