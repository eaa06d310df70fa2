// Package main serves the forms API from AWS Lambda behind an HTTP API (payload v2).
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clc-ministry/forms-backend/config"
	"github.com/clc-ministry/forms-backend/internal/server"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	// Built once per execution environment and reused across invocations.
	app, err := server.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("build app", zap.Error(err))
	}
	defer app.Close()

	adapter := ginadapter.NewV2(app.Router)
	lambda.Start(func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
