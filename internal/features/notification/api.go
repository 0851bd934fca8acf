package notification

import (
	"decor-crm/internal/config"
	"decor-crm/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type NotificationApi struct {
	controller *NotificationController
	config     *config.Config
}

func NewNotificationApi(controller *NotificationController, config *config.Config) *NotificationApi {
	return &NotificationApi{
		controller: controller,
		config:     config,
	}
}

func (h *NotificationApi) Setup(app *fiber.App) {
	notifications := app.Group("/api/notifications", middleware.AuthMiddleware(h.config.SkipAuth))

	notifications.Get("/", h.controller.List)
	notifications.Get("/unread-count", h.controller.GetUnreadCount)
	notifications.Put("/read-all", h.controller.MarkAllAsRead)
	notifications.Put("/:id/read", h.controller.MarkAsRead)

	app.Get("/api/ws/notifications", middleware.AuthMiddleware(h.config.SkipAuth), websocket.New(h.controller.HandleWebSocket))
}
