// Package server initializes and runs the Siva API server: it opens the
// database, runs migrations, wires the auth services and starts the HTTP
// endpoint together with the revocation ledger garbage collector.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/arsansys/siva/internal/logging"
	"github.com/arsansys/siva/internal/server/auth"
	"github.com/arsansys/siva/internal/server/config"
	"github.com/arsansys/siva/internal/server/httpapi"
	"github.com/arsansys/siva/internal/server/repositories/repomanager"
	"github.com/arsansys/siva/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB

	tokenService   *services.TokenService
	userService    *services.UserService
	productService *services.ProductService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	key, err := auth.KeyFromBase64(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("secret key error: %w", err)
	}

	codec := auth.NewCodec(key)
	ts := services.NewTokenService(codec, rm.RevokedTokens(db), cfg.AccessTokenValidityDuration, logger)
	us := services.NewUserService(db, rm, ts, logger)
	ps := services.NewProductService(db, rm)

	return &App{
		config:         cfg,
		logger:         logger,
		db:             db,
		tokenService:   ts,
		userService:    us,
		productService: ps,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := httpapi.NewServer(
		app.config.EndpointAddrHTTP,
		app.config.AllowedOrigin,
		app.userService,
		app.tokenService,
		app.productService,
		app.logger,
	)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// runLedgerGC periodically deletes revocation records whose tokens have
// expired on their own.
func (app *App) runLedgerGC(ctx context.Context) {

	ticker := time.NewTicker(app.config.RevokedTokenCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := app.tokenService.PurgeExpired(ctx)
			if err != nil {
				app.logger.Error(ctx, "ledger cleanup failed", "error", err.Error())
				continue
			}
			if deleted > 0 {
				app.logger.Info(ctx, "ledger cleanup", "deleted", deleted)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runLedgerGC(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
}
