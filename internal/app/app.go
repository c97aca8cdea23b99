package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/riskibarqy/meme-party/external/webhook"
	"github.com/riskibarqy/meme-party/internal/config"
	"github.com/riskibarqy/meme-party/internal/domain/game"
	"github.com/riskibarqy/meme-party/internal/infrastructure/eventbus"
	"github.com/riskibarqy/meme-party/internal/infrastructure/realtime"
	cachedrepo "github.com/riskibarqy/meme-party/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/meme-party/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/meme-party/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/meme-party/internal/interfaces/httpapi"
	"github.com/riskibarqy/meme-party/internal/platform/cache"
	"github.com/riskibarqy/meme-party/internal/platform/keylock"
	"github.com/riskibarqy/meme-party/internal/platform/logging"
	"github.com/riskibarqy/meme-party/internal/platform/resilience"
	"github.com/riskibarqy/meme-party/internal/scheduler"
	"github.com/riskibarqy/meme-party/internal/usecase"
)

const gameLockStripes = 256

// App owns every long-lived component of the API process.
type App struct {
	Server *http.Server

	logger    *logging.Logger
	scheduler *scheduler.Scheduler
	hub       *realtime.Hub
	db        *sqlx.DB
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	a := &App{logger: logger}

	repo, err := a.newGameRepository(cfg)
	if err != nil {
		return nil, err
	}

	a.hub = realtime.NewHub(realtime.Config{}, logger)
	sinks := []eventbus.Sink{{Name: "realtime", Publisher: a.hub}}
	if cfg.WebhookEnabled {
		hook, err := webhook.NewPublisher(webhook.Config{
			URL:     cfg.WebhookURL,
			Token:   cfg.WebhookToken,
			Timeout: cfg.WebhookTimeout,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.WebhookCircuitEnabled,
				FailureThreshold: cfg.WebhookCircuitFailureCount,
				OpenTimeout:      cfg.WebhookCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.WebhookCircuitHalfOpenMax,
			},
		}, logger)
		if err != nil {
			_ = a.closeDB()
			return nil, err
		}
		sinks = append(sinks, eventbus.Sink{Name: "webhook", Publisher: hook})
	}
	publisher := eventbus.NewMultiPublisher(sinks...)

	a.scheduler = scheduler.New(nil, scheduler.Config{Workers: cfg.SchedulerWorkers}, logger)
	locks := keylock.New(gameLockStripes)

	lobby := usecase.NewLobbyService(repo, a.scheduler, publisher, locks, nil, usecase.LobbyConfig{
		DefaultTotalRounds: cfg.GameTotalRounds,
	}, logger)
	rounds := usecase.NewRoundOrchestrator(repo, a.scheduler, publisher, locks, nil, usecase.RoundConfig{
		CreativePhaseSeconds: cfg.CreativePhaseSeconds,
		ScorePhaseSeconds:    cfg.ScorePhaseSeconds,
		RoundEndSeconds:      cfg.RoundEndSeconds,
	}, logger)
	a.scheduler.SetHandler(rounds.HandleTask)

	handler := httpapi.NewHandler(lobby, rounds, a.hub, logger)
	a.Server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	return a, nil
}

func (a *App) newGameRepository(cfg config.Config) (game.Repository, error) {
	if cfg.StoreDriver != config.StorePostgres {
		a.logger.Info("using in-memory game store")
		return memory.NewGameRepository(), nil
	}

	db, err := otelsqlx.Open("postgres", normalizeDBURL(cfg.DBURL, cfg.ServiceName),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxOpenConns)
	db.SetConnMaxIdleTime(5 * time.Minute)
	otelsql.ReportDBStatsMetrics(db.DB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	a.db = db
	a.logger.Info("using postgres game store", "db_name", dbNameFromURL(cfg.DBURL), "cache_ttl", cfg.GameCacheTTL.String())

	var repo game.Repository = postgres.NewGameRepository(db)
	if cfg.GameCacheTTL > 0 {
		repo = cachedrepo.NewGameRepository(repo, cache.NewStore(cfg.GameCacheTTL))
	}
	return repo, nil
}

// Start arms the phase scheduler. Games persisted in postgres keep their
// state across restarts but their pending timers do not.
func (a *App) Start(ctx context.Context) error {
	return a.scheduler.Start(ctx)
}

// Shutdown drains HTTP before stopping the scheduler so no request can
// schedule into a stopped queue.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "shutdown http server"))
	}
	a.scheduler.Stop()
	a.hub.Close()
	if err := a.closeDB(); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}

func (a *App) closeDB() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return errors.Wrap(err, "close postgres")
}
