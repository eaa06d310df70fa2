// Package main runs the background export worker (collection scan to CSV on S3).
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clc-ministry/forms-backend/config"
	"github.com/clc-ministry/forms-backend/internal/records"
	"github.com/clc-ministry/forms-backend/internal/server"
	"github.com/clc-ministry/forms-backend/internal/worker"
	"github.com/clc-ministry/forms-backend/pkg/queue"
	"github.com/clc-ministry/forms-backend/pkg/redis"
	"github.com/clc-ministry/forms-backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if !cfg.Exports.Enabled {
		logger.Fatal("EXPORTS_ENABLED is false; nothing to do")
	}

	ctx := context.Background()
	store, closeStore, err := server.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("record store", zap.Error(err))
	}
	defer closeStore()

	rdb, err := redis.NewClient(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		ExportsBucket:        cfg.AWS.ExportsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	colls := records.NewCollections(cfg.Store.WorkshopTable, cfg.Store.OrdersTable)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewExportProcessor(store, colls, s3Client, jobQueue, logger)

	workerCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("worker started", zap.String("queue", queue.QueueExports))
	processor.Run(workerCtx)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
