// Command shardworker consumes one shard's ingestion stream and persists
// each enrollment record into that shard's store. Deploy one instance per
// shard, selected by SHARD_ID.
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
	"enrollgate/internal/platform/kafka/consumer"
	"enrollgate/internal/platform/logger"
	"enrollgate/internal/platform/metrics"
	"enrollgate/internal/platform/telemetry"
	"enrollgate/internal/platform/tlsconfig"
	"enrollgate/internal/shard"
	"enrollgate/internal/shard/store"
	"enrollgate/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.WorkerFromEnv(ctx)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	shardID, err := shard.Parse(cfg.ShardID)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	serviceName := "shardworker-" + shardID.String()

	logr, err := logger.New(serviceName, cfg.Logging.Level, cfg.Logging.Directory)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	logr.Info("starting shard ingest worker", "shard", shardID)

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

	db, err := sql.Open("postgres", cfg.Database.DSN(cfg.DBName, cfg.TLS.CAPath))
	if err != nil {
		log.Fatalf("open shard database: %v", err)
	}
	defer db.Close()

	w, err := worker.New(shardID, store.NewPostgres(db),
		worker.WithLogger(logr),
		worker.WithMetrics(metrics.New()),
		worker.WithExecTimer(timer),
	)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	group := shardID.String() + "_group"
	stream, err := consumer.New([]string{cfg.KafkaHost}, group, shardID.Topic(cfg.TopicPrefix), tlsCfg, logr)
	if err != nil {
		log.Fatalf("kafka consumer: %v", err)
	}
	defer stream.Close()

	admin := httpserver.New(cfg.AdminAddr, httpserver.AdminRouter())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return stream.Run(gctx, w.Handle)
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
		logr.Error("shard worker stopped with error", "error", err)
		os.Exit(1)
	}
	logr.Info("shard worker stopped")
}
