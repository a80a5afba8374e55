package cli

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/config"
	"github.com/swapshop/swapshop/internal/db"
	"github.com/swapshop/swapshop/internal/directory"
	"github.com/swapshop/swapshop/internal/exchange"
	"github.com/swapshop/swapshop/internal/logger"
	"github.com/swapshop/swapshop/internal/metrics"
	"github.com/swapshop/swapshop/internal/photos"
	"github.com/swapshop/swapshop/internal/store"
)

// app is the wired set of services shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *sqlx.DB
	photos    *photos.Store
	metrics   *metrics.Metrics
	exchange  *exchange.Service
	directory *directory.Directory

	closeLog func()
}

// openApp loads configuration, applies flag overrides and opens the database.
func openApp(opts *RootOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	applyFlags(cfg, opts)

	log, closeLog, err := logger.New(cfg)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		closeLog()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	log.Info("database ready", zap.String("path", cfg.DBPath))

	ps, err := photos.NewStore(cfg.UploadDir, cfg.Upload.MaxPhotos)
	if err != nil {
		database.Close()
		closeLog()
		return nil, err
	}

	m := metrics.New()
	return &app{
		cfg:       cfg,
		logger:    log,
		db:        database,
		photos:    ps,
		metrics:   m,
		exchange:  exchange.NewService(database, ps, nil, m, log.Named("exchange")),
		directory: directory.New(database, cfg.EmailSuffix, log.Named("directory")),
		closeLog:  closeLog,
	}, nil
}

func applyFlags(cfg *config.Config, opts *RootOptions) {
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}
	if opts.UploadDir != "" {
		cfg.UploadDir = opts.UploadDir
	}
	if opts.LogFile != "" {
		cfg.Log.File = opts.LogFile
	}
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", zap.Error(err))
	}
	a.logger.Sync()
	a.closeLog()
}

// jwtSecret returns the configured secret or the one persisted in the database.
func (a *app) jwtSecret(ctx context.Context) (string, error) {
	if a.cfg.JWT.Secret != "" {
		return a.cfg.JWT.Secret, nil
	}
	return store.GetJWTSecret(ctx, a.db)
}
