// Command router consumes the intake queue, resolves the destination shard
// for each enrollment record and publishes it to that shard's ingestion
// stream.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"enrollgate/internal/platform/config"
	"enrollgate/internal/platform/httpserver"
	"enrollgate/internal/platform/kafka/publisher"
	"enrollgate/internal/platform/logger"
	"enrollgate/internal/platform/metrics"
	"enrollgate/internal/platform/rabbit"
	platformredis "enrollgate/internal/platform/redis"
	"enrollgate/internal/platform/telemetry"
	"enrollgate/internal/platform/tlsconfig"
	"enrollgate/internal/registry"
	"enrollgate/internal/resolver"
	"enrollgate/internal/retry"
	"enrollgate/internal/router"
	"enrollgate/internal/shard"
	"enrollgate/internal/shard/store"
)

const serviceName = "router"

// attemptTTL bounds how long a failed message's attempt count survives.
const attemptTTL = 24 * time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.RouterFromEnv(ctx)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr, err := logger.New(serviceName, cfg.Logging.Level, cfg.Logging.Directory)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	logr.Info("starting router service")

	tlsCfg, err := tlsconfig.Load(cfg.TLS)
	if err != nil {
		log.Fatalf("tls: %v", err)
	}

	timer, shutdownTelemetry, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logr.Error("telemetry shutdown failed", "error", err)
		}
	}()

	// One pooled connection per shard, shared across messages.
	stores := make(map[shard.ID]store.Store, len(shard.All()))
	dbNames := map[shard.ID]string{
		shard.S1: cfg.DBNameS1,
		shard.S2: cfg.DBNameS2,
		shard.S3: cfg.DBNameS3,
	}
	for _, id := range shard.All() {
		db, err := sql.Open("postgres", cfg.Database.DSN(dbNames[id], cfg.TLS.CAPath))
		if err != nil {
			log.Fatalf("open shard %s database: %v", id, err)
		}
		defer db.Close()
		stores[id] = store.NewPostgres(db)
	}

	res, err := resolver.New(stores, logr)
	if err != nil {
		log.Fatalf("resolver: %v", err)
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()

	pub, err := publisher.New([]string{cfg.KafkaHost}, tlsCfg)
	if err != nil {
		log.Fatalf("kafka publisher: %v", err)
	}
	defer pub.Close()

	m := metrics.New()

	svc, err := router.New(res,
		registry.NewRedis(redisClient.Client, cfg.ClaimTTL),
		pub,
		cfg.TopicPrefix,
		router.WithLogger(logr),
		router.WithMetrics(m),
	)
	if err != nil {
		log.Fatalf("routing service: %v", err)
	}

	handler, err := router.NewHandler(svc,
		retry.NewRedis(redisClient.Client, attemptTTL),
		cfg.MaxDeliveryAttempts,
		router.WithHandlerLogger(logr),
		router.WithHandlerMetrics(m),
		router.WithExecTimer(timer),
	)
	if err != nil {
		log.Fatalf("intake handler: %v", err)
	}

	intake, err := rabbit.Dial(cfg.Rabbit.URL(tlsCfg != nil), tlsCfg, cfg.IntakeQueue, cfg.DeadLetterQueue, logr)
	if err != nil {
		log.Fatalf("intake broker: %v", err)
	}
	defer intake.Close()

	admin := httpserver.New(cfg.AdminAddr, httpserver.AdminRouter())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return intake.Run(gctx, handler.Handle)
	})
	g.Go(func() error {
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return admin.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("router stopped with error", "error", err)
		os.Exit(1)
	}
	logr.Info("router stopped")
}
