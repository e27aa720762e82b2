package routes

import (
	"github.com/gorilla/mux"

	"outliers_server/controllers"
	"outliers_server/services"
)

// RegisterNotificationRoutes sets up notification routes under /api/notifications
func RegisterNotificationRoutes(api *mux.Router, notifications *services.NotificationService) {
	controller := controllers.NewNotificationController(notifications)

	notificationRouter := api.PathPrefix("/notifications").Subrouter()
	notificationRouter.HandleFunc("", controller.HandleList).Methods("GET")
	notificationRouter.HandleFunc("/unread-count", controller.HandleUnreadCount).Methods("GET")
	notificationRouter.HandleFunc("/read", controller.HandleMarkAllRead).Methods("POST")
	notificationRouter.HandleFunc("/{notificationId}/read", controller.HandleMarkRead).Methods("POST")
}
