// ABOUTME: Interactive dashboard command
// ABOUTME: Runs the TUI alongside the credential watcher and an optional metrics endpoint

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/drake-forum/technoshield/internal/logger"
	"github.com/drake-forum/technoshield/internal/session"
	"github.com/drake-forum/technoshield/internal/tui"
)

var (
	metricsAddr string
	openRoute   string
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run the live analyst dashboard",
	Long: `Run the interactive dashboard. Data refreshes in the background while the
terminal has focus, and a login or logout in another terminal is picked up
immediately. Logs go to ~/.config/technoshield/debug.log.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
			return errors.New("tui needs an interactive terminal")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return runTUI(ctx)
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve query cache metrics on this address (e.g. :9090)")
	tuiCmd.Flags().StringVar(&openRoute, "open", "", "View to open after login (e.g. incidents, incidents/42, alerts)")
}

func runTUI(ctx context.Context) error {
	log, closeLog, err := logger.InitFile(session.DefaultConfigDir())
	if err != nil {
		return fmt.Errorf("opening debug log: %w", err)
	}
	defer closeLog()

	reg := prometheus.NewRegistry()
	a, err := newApp(log, reg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := session.Watch(ctx, a.store, a.cfg.Session.TokenFile, log); err != nil {
			log.Warn("credential watcher stopped", "error", err)
		}
		return nil
	})

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           metricsRouter(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("metrics endpoint listening", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return tui.Run(ctx, tui.Deps{
			Store:      a.store,
			Client:     a.client,
			Cache:      a.cache,
			Bindings:   a.bindings,
			Logger:     log,
			StartRoute: openRoute,
		})
	})

	return g.Wait()
}

func metricsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}
