package main

import (
	"context"
	"fmt"
	"log"
	"time"

	common_api "go-qbsync/internal/common/api"
	"go-qbsync/internal/config"
	"go-qbsync/internal/connectors"
	"go-qbsync/internal/database"
	"go-qbsync/internal/features/history"
	"go-qbsync/internal/features/mapping"
	"go-qbsync/internal/features/monitor"
	"go-qbsync/internal/features/record"
	"go-qbsync/internal/features/schedule"
	sync_feature "go-qbsync/internal/features/sync"
	"go-qbsync/internal/features/system"
	"go-qbsync/internal/features/webhook"
	"go-qbsync/internal/logger"
	"go-qbsync/internal/middleware"
	"go-qbsync/pkg/utils"

	_ "go-qbsync/docs" // Import swagger docs

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	log.Printf("Registering %d routes...\n", len(routes))
	for _, route := range routes {
		route.Setup(app)
	}
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(
	lc fx.Lifecycle,
	mappingRepo mapping.Repository,
	recordRepo record.Repository,
	scheduleRepo schedule.ConfigRepository,
	eventRepo webhook.ProcessedEventRepository,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := mappingRepo.EnsureIndexes(ctx); err != nil {
					log.Printf("Failed to ensure mapping indexes: %v", err)
				}
				if err := recordRepo.EnsureIndexes(ctx); err != nil {
					log.Printf("Failed to ensure record indexes: %v", err)
				}
				if err := scheduleRepo.EnsureIndexes(ctx); err != nil {
					log.Printf("Failed to ensure schedule indexes: %v", err)
				}
				if err := eventRepo.EnsureIndexes(ctx); err != nil {
					log.Printf("Failed to ensure webhook event indexes: %v", err)
				}
			}()
			return nil
		},
	})
}

// @title           QuickBooks Sync Engine API
// @version         1.0
// @description     Operator API for the external integration synchronization engine.

// @host            localhost:8000
// @BasePath        /api
func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,

			logger.NewLogger,

			NewFiberServer,

			database.NewDatabase,

			// Connectors
			connectors.NewQuickBooksConnector,
			connectors.NewRegistry,

			// Repositories
			mapping.NewRepository,
			record.NewRepository,
			schedule.NewConfigRepository,
			webhook.NewProcessedEventRepository,

			// Services
			monitor.NewService,
			sync_feature.NewExecutor,
			schedule.NewConfigSource,
			history.NewEngine,
			schedule.NewManager,
			webhook.NewVerifier,
			webhook.NewService,

			// Controllers
			sync_feature.NewController,
			schedule.NewController,
			history.NewController,
			monitor.NewController,
			webhook.NewController,
			system.NewDebugController,

			// API Routes
			AsRoute(sync_feature.NewSyncApi),
			AsRoute(schedule.NewScheduleApi),
			AsRoute(history.NewHistoryApi),
			AsRoute(monitor.NewMonitorApi),
			AsRoute(webhook.NewWebhookApi),
			AsRoute(system.NewDebugApi),
			AsRoute(system.NewSwaggerApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) {
				utils.SetSecret(cfg.JWTSecret)
			},
			RegisterAllRoutesWithAnnotation,
			StartServer,
			func(lc fx.Lifecycle, manager schedule.Manager, engine *history.Engine) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return manager.Start(ctx)
					},
					OnStop: func(ctx context.Context) error {
						engine.Close()
						return manager.Stop()
					},
				})
			},
			InitializeIndexes,
		),
	)

	app.Run()
}
