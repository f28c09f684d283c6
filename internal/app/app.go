package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"example.com/numguess/internal/config"
	"example.com/numguess/internal/game"
	"example.com/numguess/internal/httpapi"
	"example.com/numguess/internal/migrate"
	"example.com/numguess/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	db  *pgxpool.Pool // nil when stats are disabled
	rdb *redis.Client // nil when the winners feed is disabled

	game *game.Server
	srv  *http.Server
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var recorders []game.WinRecorder
	stats := &httpapi.StatsHandler{Log: log}

	// --- Postgres ---
	if cfg.Postgres.URL != "" {
		if cfg.Postgres.RunMigrations {
			if err := migrate.Up(cfg.Postgres.URL, cfg.Postgres.MigrationsDir, log); err != nil {
				return nil, err
			}
		}
		dbpool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("pgxpool: %w", err)
		}
		if err := dbpool.Ping(pingCtx); err != nil {
			dbpool.Close()
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		a.db = dbpool

		statsStore := store.NewStatsStore(dbpool)
		recorders = append(recorders, statsStore)
		stats.Stats = statsStore
		log.Info("win stats enabled")
	}

	// --- Redis ---
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			_ = a.Close(ctx)
			return nil, fmt.Errorf("redis ping (%s db=%d): %w", cfg.Redis.Addr, cfg.Redis.DB, err)
		}
		a.rdb = rdb

		feed := game.NewRedisWinFeed(rdb, cfg.Redis.FeedLen)
		recorders = append(recorders, feed)
		stats.Winners = feed
		log.Info("winners feed enabled", "addr", cfg.Redis.Addr, "len", cfg.Redis.FeedLen)
	}

	// --- Game ---
	sessions := game.NewSessionStore(game.StoreOptions{
		InitialScore:     cfg.Game.InitialScore,
		RejectDuplicates: cfg.Game.RejectDuplicateRegistration,
	})
	secret := game.NewSecretHolder(game.RandomSecret)
	bcast := game.NewBroadcaster(log, cfg.Game.NotifyTimeout)
	gameCfg := game.Config{
		TrialCost:     cfg.Game.TrialCost,
		NotifyTimeout: cfg.Game.NotifyTimeout,
		RecordTimeout: cfg.Game.RecordTimeout,
	}
	a.game = game.NewServer(gameCfg, sessions, secret, bcast, log, recorders...)
	stats.Clients = a.game

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpapi.AccessLog(log))
	r.Use(middleware.Recoverer)
	r.NotFound(httpapi.NotFound)
	r.MethodNotAllowed(httpapi.MethodNotAllowed)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	a.game.RegisterRoutes(r)
	r.Route("/api", stats.Routes)

	a.srv = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	// Shutdown does not track hijacked websocket connections
	a.srv.RegisterOnShutdown(a.game.CloseConnections)

	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)

	g.Go(func() error {
		err := a.srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Info("http server shutting down")
		_ = a.srv.Shutdown(shutdownCtx)
		return nil
	})

	err := g.Wait()
	_ = a.Close(context.Background())
	return err
}

// Close stops the game server, waits for pending reset pushes and win
// records, then releases the stores. Best-effort.
func (a *App) Close(ctx context.Context) error {
	if a.game != nil {
		sctx, cancel := context.WithTimeout(ctx, a.cfg.HTTP.ShutdownTimeout)
		err := a.game.Shutdown(sctx)
		cancel()
		if err != nil {
			a.log.Warn("gave up waiting for background deliveries", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	return nil
}
