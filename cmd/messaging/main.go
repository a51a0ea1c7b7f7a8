package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/outreach-compliance/internal/api"
	"github.com/LeventeLantos/outreach-compliance/internal/cache"
	"github.com/LeventeLantos/outreach-compliance/internal/client"
	"github.com/LeventeLantos/outreach-compliance/internal/config"
	"github.com/LeventeLantos/outreach-compliance/internal/consent"
	"github.com/LeventeLantos/outreach-compliance/internal/metrics"
	"github.com/LeventeLantos/outreach-compliance/internal/repo"
	"github.com/LeventeLantos/outreach-compliance/internal/scheduler"
	"github.com/LeventeLantos/outreach-compliance/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("postgres: %v", err)
	}
	if err := repo.EnsureSchema(ctx, db); err != nil {
		log.Fatal(err)
	}

	policy := cfg.Policy()
	footerTTL := policy.Footer.Window + 24*time.Hour

	var (
		footers   cache.FooterCache
		sentCache cache.MessageCache
	)
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		rc := cache.NewRedisCache(rdb, cfg.Redis.TTL, footerTTL)
		footers, sentCache = rc, rc
	} else {
		slog.Warn("REDIS_ADDR not set, footer history is kept in memory")
		mc := cache.NewMemoryCache(24*time.Hour, footerTTL)
		footers, sentCache = mc, mc
	}

	m := metrics.New()
	messages := repo.NewPostgresMessageRepo(db)
	consentSvc := consent.NewService(
		repo.NewPostgresConsentRepo(db),
		policy,
		consent.WithLogger(logger),
		consent.WithObserver(m),
	)

	carrier := client.NewWebhookClient(cfg.Webhook.URL,
		client.WithToken(cfg.Webhook.Token),
		client.WithSender(cfg.Webhook.Sender),
	)
	dispatcher := service.NewDispatcher(carrier, policy, messages, consentSvc, footers).
		WithSentCache(sentCache).
		WithRecorder(m).
		WithLogger(logger).
		WithBatchSize(cfg.Scheduler.BatchSize)

	sched, err := scheduler.New(cfg.Scheduler.Interval, dispatcher.Tick, scheduler.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}

	h := api.NewHandler(sched, messages, consentSvc, policy).WithMetrics(m.Handler())
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(api.Router(h)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("outreach-compliance starting",
		"addr", cfg.Server.Address,
		"interval", cfg.Scheduler.Interval.String(),
		"batch", cfg.Scheduler.BatchSize,
		"redis", cfg.Redis.Enabled,
	)

	sched.Start()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	sched.Stop()
	slog.Info("outreach-compliance stopped")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
