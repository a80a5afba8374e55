package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/api"
	"github.com/swapshop/swapshop/internal/auth"
	"github.com/swapshop/swapshop/internal/logger"
	"github.com/swapshop/swapshop/internal/store"
	"github.com/swapshop/swapshop/internal/web"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "serve",
		Short:         "Run the web server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctxOrBackground(cmd.Context()), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bootstrap(ctx, a, cmd.OutOrStdout()); err != nil {
		return err
	}

	handler, err := newHandler(ctx, a)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server started", zap.String("addr", a.cfg.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server forced to shutdown", zap.Error(err))
		}
	}

	a.logger.Info("server stopped, closing database")
	return nil
}

// bootstrap prepares a freshly opened app for serving: leftover uploads are
// cleared, seed files loaded into empty tables and a first admin created.
func bootstrap(ctx context.Context, a *app, out io.Writer) error {
	if err := a.photos.CleanStaging(); err != nil {
		a.logger.Warn("cleaning photo staging area", zap.Error(err))
	}
	if n, err := store.PurgeRevokedTokens(ctx, a.db, time.Now()); err != nil {
		a.logger.Error("purging revoked tokens", zap.Error(err))
	} else if n > 0 {
		a.logger.Info("purged revoked tokens", zap.Int64("count", n))
	}

	if a.cfg.SeedUsersFile != "" {
		n, err := store.CountUsers(ctx, a.db)
		if err != nil {
			return err
		}
		if n == 0 {
			if count, err := importUsersFile(ctx, a, a.cfg.SeedUsersFile); err != nil {
				a.logger.Error("seeding users failed, continuing without them",
					zap.String("file", a.cfg.SeedUsersFile), zap.Error(err))
			} else {
				a.logger.Info("users seeded", zap.String("file", a.cfg.SeedUsersFile), zap.Int("count", count))
			}
		}
	}

	password, err := a.directory.EnsureAdmin(ctx, a.cfg.AdminEmail)
	if err != nil {
		return err
	}
	if password != "" {
		printAdminCreated(out, a.cfg.AdminEmail, password)
	}

	if a.cfg.SeedItemsFile != "" {
		empty, err := a.exchange.Empty(ctx)
		if err != nil {
			return err
		}
		if empty {
			if count, err := importItemsFile(ctx, a, a.cfg.SeedItemsFile); err != nil {
				a.logger.Error("seeding items failed, starting with an empty store",
					zap.String("file", a.cfg.SeedItemsFile), zap.Error(err))
			} else {
				a.logger.Info("items seeded", zap.String("file", a.cfg.SeedItemsFile), zap.Int("count", count))
			}
		}
	}
	return nil
}

// newHandler combines the API, page, metrics and health routes behind the
// logging and metrics middleware.
func newHandler(ctx context.Context, a *app) (http.Handler, error) {
	secret, err := a.jwtSecret(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading JWT secret: %w", err)
	}
	sessions := &auth.Sessions{DB: a.db, Secret: secret, TTL: a.cfg.JWT.TTL}

	apiRouter := api.NewRouter(api.Deps{
		Exchange:       a.exchange,
		Directory:      a.directory,
		Sessions:       sessions,
		Metrics:        a.metrics,
		Logger:         a.logger.Named("api"),
		MaxUploadBytes: a.cfg.Upload.MaxBytes,
	})
	webRouter, err := web.NewRouter(web.Deps{
		Exchange:       a.exchange,
		Directory:      a.directory,
		Sessions:       sessions,
		Photos:         a.photos,
		Metrics:        a.metrics,
		Logger:         a.logger.Named("web"),
		MaxUploadBytes: a.cfg.Upload.MaxBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up web router: %w", err)
	}

	// API routes take priority, web routes handle the rest.
	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("GET /metrics", a.metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	mux.Handle("/", webRouter)

	return logger.Middleware(a.logger.Named("http"))(a.metrics.Middleware(mux)), nil
}

func printAdminCreated(out io.Writer, email, password string) {
	fmt.Fprintln(out, "Admin account created:")
	fmt.Fprintf(out, "  Email:    %s\n", email)
	fmt.Fprintf(out, "  Password: %s\n", password)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Save this password, it cannot be recovered.")
	fmt.Fprintln(out, "It can be changed on the settings page after signing in.")
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}
