// jobmate-jobs-service
//
// Job listing backend. Exposes a REST API for:
//   - filtered, sorted, paginated listing with fuzzy keyword/location search
//   - single-job CRUD and status changes
//   - related jobs, active count, analytics and scraper metrics
//
// Listing reads are cached in Redis and invalidated on every mutation.
// Background lifecycle sweeps (expiration, dedup, health telemetry) run on
// cron schedules. A grpc.health.v1 server reports store/cache reachability.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"jobmate/jobs-service/internal/cache"
	"jobmate/jobs-service/internal/config"
	"jobmate/jobs-service/internal/db"
	"jobmate/jobs-service/internal/grpcserver"
	"jobmate/jobs-service/internal/lifecycle"
	"jobmate/jobs-service/internal/listing"
	"jobmate/jobs-service/internal/logging"
	"jobmate/jobs-service/internal/model"
	"jobmate/jobs-service/internal/ranking"
	"jobmate/jobs-service/internal/scheduler"
	"jobmate/jobs-service/internal/store"
	"jobmate/jobs-service/internal/store/badger"
	"jobmate/jobs-service/internal/store/postgres"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[jobs-service] Config error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level).With("service", "jobs-service")
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "err", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Store ───────────────────────────────────────────────────────────────
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	// ── Redis ───────────────────────────────────────────────────────────────
	log.Info("connecting to Redis")
	rdb, err := db.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		// The cache is optional: reads miss and invalidation is a no-op
		// until Redis comes back.
		log.Warn("Redis unreachable, serving uncached", "err", err)
		if rdb, err = db.NewLazyRedisClient(cfg.Redis.URL); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	} else {
		log.Info("Redis connected")
	}
	defer rdb.Close()

	jobCache := cache.New(rdb, log)

	// ── Listing ─────────────────────────────────────────────────────────────
	rankCfg := ranking.DefaultConfig()
	rankCfg.Threshold = cfg.Ranking.Threshold
	ranker, err := ranking.New(rankCfg)
	if err != nil {
		return fmt.Errorf("ranking: %w", err)
	}

	listCfg := listing.DefaultConfig()
	listCfg.ListTTL = cfg.Listing.ListTTL.Std()
	listCfg.RelatedTTL = cfg.Listing.RelatedTTL.Std()
	listCfg.AnalyticsTTL = cfg.Listing.AnalyticsTTL.Std()
	listCfg.CandidateLimit = cfg.Listing.CandidateLimit
	listCfg.CandidateMultiplier = cfg.Listing.CandidateMultiplier
	listCfg.MinCandidates = cfg.Listing.MinCandidates
	svc := listing.NewService(st, jobCache, ranker, listCfg, log)

	// ── Lifecycle ───────────────────────────────────────────────────────────
	tasks, err := lifecycle.NewTasks(st, jobCache, lifecycle.Config{
		InactiveAfter:    cfg.Lifecycle.InactiveAfter.Std(),
		InactiveStatus:   model.Status(cfg.Lifecycle.InactiveStatus),
		ExpireAfter:      cfg.Lifecycle.ExpireAfter.Std(),
		DedupNewestFirst: cfg.Lifecycle.DedupNewestFirst,
		DedupChunkSize:   cfg.Lifecycle.DedupChunkSize,
		HealthWindow:     cfg.Lifecycle.HealthWindow.Std(),
	}, log, nil)
	if err != nil {
		return fmt.Errorf("lifecycle: %w", err)
	}

	runner := scheduler.New(log)
	if err := registerTasks(runner, tasks, cfg.Schedule); err != nil {
		return err
	}
	runner.Start()

	// ── gRPC health ─────────────────────────────────────────────────────────
	healthSrv := grpcserver.NewServer(map[string]grpcserver.Probe{
		"store": st.Ping,
		"cache": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}, log)
	go healthSrv.Watch(ctx, cfg.Server.HealthInterval.Std())

	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	go func() {
		if err := healthSrv.Serve(lis); err != nil {
			log.Error("gRPC server error", "err", err)
		}
	}()

	// ── HTTP server ─────────────────────────────────────────────────────────
	r := mux.NewRouter()
	r.HandleFunc("/health", healthHandler(runner)).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(listing.AccessLog(log))
	api.Use(listing.RateLimit(rate.NewLimiter(rate.Limit(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst)))
	listing.NewHandler(svc, log).RegisterRoutes(api)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "version", version, "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── Graceful shutdown ───────────────────────────────────────────────────
	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("HTTP server error", "err", err)
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown error", "err", err)
	}
	runner.Stop(shutdownCtx)
	healthSrv.Stop()
	log.Info("stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (store.JobStore, error) {
	if cfg.Store.Driver == "badger" {
		log.Info("opening badger store", "path", cfg.Store.BadgerPath)
		st, err := badger.Open(badger.Options{Path: cfg.Store.BadgerPath})
		if err != nil {
			return nil, fmt.Errorf("badger: %w", err)
		}
		return st, nil
	}

	log.Info("connecting to PostgreSQL")
	pool, err := db.NewPostgresPool(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	st := postgres.New(pool)
	if cfg.Store.Migrate {
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
	}
	log.Info("PostgreSQL connected")
	return st, nil
}

func registerTasks(runner *scheduler.Runner, tasks *lifecycle.Tasks, sc config.ScheduleConfig) error {
	countOnly := func(fn func(context.Context) (int64, error)) func(context.Context) error {
		return func(ctx context.Context) error {
			_, err := fn(ctx)
			return err
		}
	}

	for _, t := range []scheduler.Task{
		{Name: "expire-inactive", Schedule: sc.ExpireInactive, Handler: countOnly(tasks.ExpireInactive)},
		{Name: "expire-aged", Schedule: sc.ExpireAged, Handler: countOnly(tasks.ExpireAged)},
		{Name: "dedup", Schedule: sc.Dedup, Handler: countOnly(tasks.SweepDuplicates)},
		{Name: "health", Schedule: sc.Health, Handler: func(ctx context.Context) error {
			_, err := tasks.RecordHealth(ctx)
			return err
		}},
	} {
		t.Timezone = sc.Timezone
		if err := runner.Register(t); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
	}
	return nil
}

func healthHandler(runner *scheduler.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"service": "jobs-service",
			"version": version,
			"tasks":   runner.Statuses(),
		})
	}
}
