package main

import (
	"context"
	"fmt"
	"log"
	"time"

	common_api "decor-crm/internal/common/api"
	"decor-crm/internal/config"
	"decor-crm/internal/database"
	"decor-crm/internal/features/approval"
	"decor-crm/internal/features/audit"
	"decor-crm/internal/features/escalation"
	"decor-crm/internal/features/flow"
	"decor-crm/internal/features/notification"
	"decor-crm/internal/features/risk"
	"decor-crm/internal/features/settings"
	"decor-crm/internal/features/user"
	"decor-crm/internal/logger"
	"decor-crm/internal/middleware"
	"decor-crm/pkg/utils"

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
		fx.As(new(common_api.Route)),    // Cast to Interface
		fx.ResultTags(`group:"routes"`), // Add to Group
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	for _, route := range routes {
		route.Setup(app)
	}
	log.Printf("Registered %d routes\n", len(routes))
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
			utils.SetSecret(cfg.JWTSecret)
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
	userRepo user.UserRepository,
	flowRepo flow.FlowRepository,
	approvalRepo approval.ApprovalRepository,
	settingsRepo settings.SettingsRepository,
	notificationRepo notification.NotificationRepository,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := userRepo.EnsureIndexes(ctx); err != nil {
					log.Printf("Failed to ensure user indexes: %v", err)
				}
				if err := flowRepo.EnsureIndexes(ctx); err != nil {
					log.Printf("Failed to ensure flow indexes: %v", err)
				}
				// The approval index is load-bearing: it is what keeps two
				// PENDING runs off the same entity.
				if err := approvalRepo.EnsureIndexes(ctx); err != nil {
					log.Printf("Failed to ensure approval indexes: %v", err)
				}
				if err := settingsRepo.EnsureIndexes(ctx); err != nil {
					log.Printf("Failed to ensure settings indexes: %v", err)
				}
				if err := notificationRepo.EnsureIndexes(ctx); err != nil {
					log.Printf("Failed to ensure notification indexes: %v", err)
				}
			}()
			return nil
		},
	})
}

// notifierAdapter bridges the notification feature into the engine's Notifier
// port without the approval package importing notification.
type notifierAdapter struct {
	svc notification.NotificationService
}

func (a *notifierAdapter) Notify(ctx context.Context, tenantID, userID, title, body string, metadata map[string]string) error {
	return a.svc.CreateNotification(ctx, tenantID, userID, title, body, metadata)
}

func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Database
			database.NewDatabase,

			// Initialize Repository
			user.NewUserRepository,
			audit.NewAuditRepository,
			settings.NewSettingsRepository,
			flow.NewFlowRepository,
			approval.NewApprovalRepository,
			notification.NewNotificationRepository,

			audit.NewAuditService,
			user.NewUserService,
			settings.NewSettingsService,
			flow.NewFlowService,
			notification.NewHub,
			notification.NewNotificationService,
			approval.NewApprovalService,
			escalation.NewEscalationService,

			// Interface Adapters to break circular dependencies and satisfy Fx
			func(r user.UserRepository) audit.UserFinder { return r },
			func(s settings.SettingsService) risk.PolicyProvider { return s },
			func(s notification.NotificationService) approval.Notifier {
				return &notifierAdapter{svc: s}
			},

			// Initialize Controller
			user.NewUserController,
			audit.NewAuditController,
			settings.NewSettingsController,
			risk.NewRiskController,
			flow.NewFlowController,
			approval.NewApprovalController,
			escalation.NewEscalationController,
			notification.NewNotificationController,

			// Initialize API Routes
			AsRoute(user.NewUserApi),
			AsRoute(audit.NewAuditApi),
			AsRoute(settings.NewSettingsApi),
			AsRoute(risk.NewRiskApi),
			AsRoute(flow.NewFlowApi),
			AsRoute(approval.NewApprovalApi),
			AsRoute(escalation.NewEscalationApi),
			AsRoute(notification.NewNotificationApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,
			func(lc fx.Lifecycle, escalationService escalation.EscalationService) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return escalationService.StartScheduler()
					},
					OnStop: func(ctx context.Context) error {
						escalationService.StopScheduler()
						return nil
					},
				})
			},
			InitializeIndexes,
		),
	)

	app.Run()
}
