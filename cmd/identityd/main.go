// Command identityd serves the identity HTTP API over Postgres and Redis.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/httpapi"
	"github.com/MrEthical07/goIdentity/internal/config"
	"github.com/MrEthical07/goIdentity/internal/mailqueue"
	promexport "github.com/MrEthical07/goIdentity/metrics/export/prometheus"
	"github.com/MrEthical07/goIdentity/postgres"
	"github.com/MrEthical07/goIdentity/provider"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(lvl)
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("parse REDIS_URL")
	}
	rdb := redis.NewClient(redisOpt)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("ping redis")
	}

	mailer, worker := buildMailer(cfg, redisOpt, log)

	builder := goIdentity.New().
		WithConfig(cfg.Identity).
		WithRedis(rdb).
		WithCredentialStore(postgres.NewUserRepository(db)).
		WithRefreshTokenRepository(postgres.NewRefreshTokenRepository(db)).
		WithActionTokenRepository(postgres.NewActionTokenRepository(db)).
		WithMailer(mailer).
		WithAuditSink(goIdentity.NewZerologSink(log)).
		WithLogger(log)
	adapters, err := buildProviders(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("configure oauth providers")
	}
	for _, a := range adapters {
		builder = builder.WithProvider(a)
	}
	engine, err := builder.Build()
	if err != nil {
		log.Fatal().Err(err).Msg("build identity engine")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := promexport.NewCollector(engine)
	if err != nil {
		log.Fatal().Err(err).Msg("create metrics collector")
	}
	reg.MustRegister(collector)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Service:        engine,
		Log:            log,
		Registry:       reg,
		Health:         healthCheck(db, rdb),
		RequestTimeout: 15 * time.Second,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go purgeLoop(runCtx, engine, cfg.CleanupInterval, log)

	if worker != nil {
		go func() {
			if err := worker.Run(); err != nil {
				log.Warn().Err(err).Msg("mail worker stopped")
			}
		}()
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Uint64("audit_dropped", engine.AuditDropped()).Msg("engine shutdown")
	}
	if worker != nil {
		worker.Shutdown()
	}
	log.Info().Msg("server stopped")
}

func buildProviders(cfg *config.Settings) ([]provider.Adapter, error) {
	var out []provider.Adapter
	if cfg.Google.Enabled() {
		g, err := provider.NewGoogle(provider.GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
		})
		if err != nil {
			return nil, fmt.Errorf("google: %w", err)
		}
		out = append(out, g)
	}
	if cfg.GitHub.Enabled() {
		g, err := provider.NewGitHub(provider.GitHubConfig{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
		})
		if err != nil {
			return nil, fmt.Errorf("github: %w", err)
		}
		out = append(out, g)
	}
	return out, nil
}

// buildMailer returns the queue-backed mailer and its worker, or an inline log mailer
// when the queue is disabled.
func buildMailer(cfg *config.Settings, redisOpt *redis.Options, log zerolog.Logger) (goIdentity.Mailer, *mailqueue.Worker) {
	sender := mailqueue.LogSender{Log: log.With().Str("component", "mail").Logger()}
	if !cfg.MailQueueEnabled {
		return mailqueue.Inline{Sender: sender, ClientURL: cfg.ClientURL}, nil
	}
	asynqOpt := asynq.RedisClientOpt{Addr: redisOpt.Addr, Password: redisOpt.Password, DB: redisOpt.DB}
	return mailqueue.NewEnqueuer(asynqOpt, log), mailqueue.NewWorker(asynqOpt, sender, cfg.ClientURL, log)
}

func healthCheck(db *sql.DB, rdb *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}
}

func purgeLoop(ctx context.Context, engine *goIdentity.Engine, every time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := engine.PurgeExpiredActionTokens(ctx); err != nil {
				log.Warn().Err(err).Int64("deleted", n).Msg("action token cleanup failed")
			}
		}
	}
}
