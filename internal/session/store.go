// ABOUTME: Process-wide holder of the bearer credential and derived auth state
// ABOUTME: Persists the token, notifies listeners, and discards expired JWTs at startup

package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Status is the derived authentication state.
type Status int

const (
	StatusLoading Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// AuthState is an immutable snapshot of the session.
type AuthState struct {
	Status Status
	Token  string
}

// IsAuthenticated reports whether a credential is present.
func (a AuthState) IsAuthenticated() bool {
	return a.Status == StatusAuthenticated
}

// Persister stores the token durably across restarts.
type Persister interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// ErrEmptyToken is returned when SetCredential is called with an empty token.
var ErrEmptyToken = errors.New("empty token")

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for persistence warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store owns the credential. All other components only read it.
type Store struct {
	mu        sync.RWMutex
	state     AuthState
	persister Persister
	listeners map[int]func(AuthState)
	nextID    int

	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a store in the loading state. Call Init before use.
func NewStore(persister Persister, opts ...Option) *Store {
	s := &Store{
		state:     AuthState{Status: StatusLoading},
		persister: persister,
		listeners: make(map[int]func(AuthState)),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init reads the persisted token once and leaves the loading state.
// A load failure still resolves to unauthenticated so the guard never hangs.
func (s *Store) Init() error {
	token, err := s.persister.Load()
	if err != nil {
		s.apply(AuthState{Status: StatusUnauthenticated})
		return fmt.Errorf("loading persisted credential: %w", err)
	}

	if token != "" && s.expired(token) {
		s.logger.Info("discarding expired credential")
		if clearErr := s.persister.Clear(); clearErr != nil {
			s.logger.Warn("failed to remove expired credential", "error", clearErr)
		}
		token = ""
	}

	s.apply(stateFor(token))
	return nil
}

// AuthState returns the current snapshot.
func (s *Store) AuthState() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Token returns the current bearer token, or "" when unauthenticated.
func (s *Store) Token() string {
	return s.AuthState().Token
}

// SetCredential stores the token, persists it, and notifies listeners.
func (s *Store) SetCredential(token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	s.apply(AuthState{Status: StatusAuthenticated, Token: token})
	if err := s.persister.Save(token); err != nil {
		return fmt.Errorf("persisting credential: %w", err)
	}
	return nil
}

// ClearCredential removes the token. A second call while already
// unauthenticated does nothing and notifies nobody.
func (s *Store) ClearCredential() error {
	if !s.apply(AuthState{Status: StatusUnauthenticated}) {
		return nil
	}
	if err := s.persister.Clear(); err != nil {
		return fmt.Errorf("removing persisted credential: %w", err)
	}
	return nil
}

// Reload re-reads the persisted token after another process changed it.
// The result is applied in memory only.
func (s *Store) Reload() error {
	token, err := s.persister.Load()
	if err != nil {
		return fmt.Errorf("reloading credential: %w", err)
	}
	if token != "" && s.expired(token) {
		token = ""
	}
	s.apply(stateFor(token))
	return nil
}

// Subscribe registers fn for every auth-state change. The returned func removes it.
func (s *Store) Subscribe(fn func(AuthState)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// apply swaps the state and notifies listeners outside the lock.
// It reports whether anything changed.
func (s *Store) apply(next AuthState) bool {
	s.mu.Lock()
	if s.state == next {
		s.mu.Unlock()
		return false
	}
	s.state = next
	listeners := make([]func(AuthState), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	s.logger.Debug("auth state changed", "status", next.Status.String())
	for _, fn := range listeners {
		fn(next)
	}
	return true
}

// expired reports whether token is a JWT whose exp claim has passed.
// Opaque tokens are never considered expired; the backend decides.
func (s *Store) expired(token string) bool {
	exp, ok := Expiry(token)
	if !ok {
		return false
	}
	return !s.now().Before(exp)
}

// Expiry returns the exp claim of a JWT without verifying its signature.
// ok is false for opaque tokens and JWTs without an expiry.
func Expiry(token string) (exp time.Time, ok bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func stateFor(token string) AuthState {
	if token == "" {
		return AuthState{Status: StatusUnauthenticated}
	}
	return AuthState{Status: StatusAuthenticated, Token: token}
}
