package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clc-ministry/forms-backend/config"
	"github.com/clc-ministry/forms-backend/internal/auth"
	"github.com/clc-ministry/forms-backend/internal/exports"
	"github.com/clc-ministry/forms-backend/internal/records"
	"github.com/clc-ministry/forms-backend/pkg/database"
	"github.com/clc-ministry/forms-backend/pkg/dynamo"
	"github.com/clc-ministry/forms-backend/pkg/queue"
	"github.com/clc-ministry/forms-backend/pkg/redis"
)

// localClientID is the audience of locally issued tokens.
const localClientID = "forms-backend-local"

// App is a fully wired API with the resources it holds open.
type App struct {
	Router  *gin.Engine
	closers []func()
}

// Close releases pools and connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Build opens the record store, credential verifiers and (optionally) the
// export queue described by cfg and returns the wired router.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}
	app := &App{}

	store, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeStore)

	verifier, login, err := credentials(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	var jobs exports.Jobs
	if cfg.Exports.Enabled {
		rdb, err := redis.NewClient(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
		if err != nil {
			logger.Warn("exports disabled", zap.Error(err))
		} else {
			app.closers = append(app.closers, func() { _ = rdb.Close() })
			jobs = queue.NewQueue(rdb.Client, logger)
		}
	}

	app.Router = NewRouter(Deps{
		Store:       store,
		Collections: records.NewCollections(cfg.Store.WorkshopTable, cfg.Store.OrdersTable),
		Verifier:    verifier,
		AdminGroup:  cfg.Cognito.AdminGroup,
		Login:       login,
		Jobs:        jobs,
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
		Logger:      logger,
	})
	return app, nil
}

// OpenStore connects the record store selected by cfg.Store.Driver. The
// returned func releases it.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (records.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return records.NewPostgresStore(pool), pool.Close, nil
	case config.DriverDynamoDB:
		client, err := dynamo.NewClient(ctx, dynamo.Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Endpoint:        cfg.AWS.DynamoDBEndpoint,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("dynamodb: %w", err)
		}
		return records.NewDynamoStore(client), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func credentials(ctx context.Context, cfg *config.Config, logger *zap.Logger) (auth.Verifier, *auth.Handler, error) {
	var chain auth.Chain
	var login *auth.Handler
	if cfg.Cognito.Enabled() {
		v, err := auth.NewCognitoVerifier(ctx, auth.CognitoConfig{
			Region:     cfg.Cognito.Region,
			UserPoolID: cfg.Cognito.UserPoolID,
			ClientID:   cfg.Cognito.ClientID,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("cognito: %w", err)
		}
		chain = append(chain, v)
		logger.Info("accepting Cognito tokens", zap.String("user_pool_id", cfg.Cognito.UserPoolID))
	}
	if cfg.LocalAuth.Enabled() {
		jwtService := auth.NewJWTService(cfg.LocalAuth.Secret, localClientID, cfg.LocalAuth.ExpireHours)
		chain = append(chain, jwtService)
		login = auth.NewHandler(cfg.LocalAuth.Users, jwtService, logger).WithGroup(cfg.Cognito.AdminGroup)
		logger.Warn("local sign-in enabled", zap.Int("admin_users", len(cfg.LocalAuth.Users)))
	}
	if len(chain) == 0 {
		return nil, nil, errors.New("no admin credential provider configured")
	}
	return chain, login, nil
}
