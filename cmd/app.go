// ABOUTME: Wiring shared by every command
// ABOUTME: Builds the session store, API client, and query cache from configuration

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drake-forum/technoshield/internal/apierr"
	"github.com/drake-forum/technoshield/internal/client"
	"github.com/drake-forum/technoshield/internal/config"
	"github.com/drake-forum/technoshield/internal/guard"
	"github.com/drake-forum/technoshield/internal/querycache"
	"github.com/drake-forum/technoshield/internal/querykey"
	"github.com/drake-forum/technoshield/internal/session"
	"github.com/drake-forum/technoshield/internal/views"
)

var errNotLoggedIn = fmt.Errorf("%w; run 'technoshield login' first", apierr.ErrNotAuthenticated)

// app holds the long-lived pieces a command works with.
type app struct {
	cfg      *config.Config
	store    *session.Store
	client   *client.Client
	cache    *querycache.Cache
	bindings views.Bindings
	logger   *slog.Logger
}

func newApp(logger *slog.Logger, reg prometheus.Registerer) (*app, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	store := session.NewStore(session.NewFileStore(cfg.Session.TokenFile), session.WithLogger(logger))
	if err := store.Init(); err != nil {
		logger.Warn("could not restore credential", "error", err)
	}

	c := client.New(cfg.API.URL, store,
		client.WithTimeout(cfg.RequestTimeout()),
		client.WithLogger(logger),
	)

	return &app{
		cfg:      cfg,
		store:    store,
		client:   c,
		cache:    querycache.New(c, cfg.QueryCache(logger, reg)),
		bindings: cfg.Bindings(),
		logger:   logger,
	}, nil
}

func (a *app) Close() {
	a.cache.Close()
}

// authorize applies the route guard to a one-shot command.
func (a *app) authorize() error {
	if guard.Decide(a.store.AuthState()) != guard.RenderProtected {
		return errNotLoggedIn
	}
	return nil
}

// query reads key through the cache.
func (a *app) query(ctx context.Context, key querykey.Key) (querycache.Snapshot, error) {
	if err := a.authorize(); err != nil {
		return querycache.Snapshot{}, err
	}
	snap, err := a.cache.Fetch(ctx, key)
	if apierr.IsAuthFailure(err) {
		return snap, fmt.Errorf("session rejected, run 'technoshield login' again: %w", err)
	}
	return snap, err
}

// printJSON writes v indented. Raw payloads keep their field order.
func printJSON(w io.Writer, v any) {
	var data []byte
	if raw, ok := v.(json.RawMessage); ok {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err == nil {
			data = buf.Bytes()
		} else {
			data = raw
		}
	} else {
		data, _ = json.MarshalIndent(v, "", "  ")
	}
	fmt.Fprintln(w, string(data))
}
