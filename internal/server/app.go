// Package server initializes and runs the security core: it opens the
// database, runs migrations, wires the services together, and starts the
// HTTP API with graceful shutdown on OS signals.
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

	"github.com/psharma/securenotes/internal/logging"
	"github.com/psharma/securenotes/internal/server/account"
	"github.com/psharma/securenotes/internal/server/audit"
	"github.com/psharma/securenotes/internal/server/authz"
	"github.com/psharma/securenotes/internal/server/config"
	"github.com/psharma/securenotes/internal/server/credential"
	"github.com/psharma/securenotes/internal/server/httpapi"
	"github.com/psharma/securenotes/internal/server/lockout"
	"github.com/psharma/securenotes/internal/server/login"
	"github.com/psharma/securenotes/internal/server/mfa"
	"github.com/psharma/securenotes/internal/server/notestore"
	"github.com/psharma/securenotes/internal/server/repositories/repomanager"
	"github.com/psharma/securenotes/internal/server/subscription"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	api    *httpapi.Server
	logins *login.Orchestrator
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	handler := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(handler)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	recorder := audit.NewRecorder(db, repos, logger)
	credentials := credential.NewValidator(db, repos, recorder, cfg, logger)
	verifier := mfa.NewVerifier(db, repos, recorder, cfg.TOTPIssuer, logger)
	tracker := lockout.NewTracker(db, repos, cfg, logger)
	notes := notestore.NewHTTPClient(cfg.NoteStoreBaseURL, cfg.QuotaLookupTimeout)
	evaluator := authz.NewEvaluator(db, repos, logger)
	enforcer := authz.NewEnforcer(db, repos, notes, cfg, logger)
	registry := subscription.NewRegistry(db, repos, recorder, logger)
	synchronizer := subscription.NewSynchronizer(registry, nil, logger)
	signatures := subscription.NewHMACVerifier(cfg.PaymentWebhookSecret)
	logins := login.NewOrchestrator(db, repos, credentials, verifier, tracker, recorder, cfg, logger)
	accounts := account.NewService(db, repos, credentials, recorder, logger)

	api := httpapi.NewServer(cfg, db, accounts, logins, credentials, verifier,
		evaluator, enforcer, registry, synchronizer, signatures, recorder, logger)

	return &App{config: cfg, logger: logger, db: db, api: api, logins: logins}, nil
}

// runMarkerJanitor periodically deletes expired pending-login markers so the
// table does not grow without bound.
func (app *App) runMarkerJanitor(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.logins.PurgeExpiredMarkers(ctx)
			if err != nil {
				app.logger.Error(ctx, "purging expired login markers", "error", err.Error())
				continue
			}
			if n > 0 {
				app.logger.Debug(ctx, "purged expired login markers", "count", n)
			}
		}
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting security core")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.api.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runMarkerJanitor(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
