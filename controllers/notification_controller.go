package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"outliers_server/services"
	"outliers_server/utils"
)

type NotificationController struct {
	Notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{Notifications: notifications}
}

// HandleList - Lists the caller's notifications newest first
func (c *NotificationController) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := c.Notifications.List(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, list)
}

// HandleUnreadCount - Returns the caller's unread notification count
func (c *NotificationController) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := c.Notifications.UnreadCount(r.Context())
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]int{"unread": n})
}

// HandleMarkRead marks one notification read and refreshes the badge.
func (c *NotificationController) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := c.Notifications.MarkRead(r.Context(), mux.Vars(r)["notificationId"]); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	SessionFrom(r.Context()).Poller.Poll(r.Context())
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "success"})
}

// HandleMarkAllRead - Marks every notification of the caller read
func (c *NotificationController) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := c.Notifications.MarkAllRead(r.Context())
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	SessionFrom(r.Context()).Poller.Poll(r.Context())
	utils.WriteJSONResponse(w, http.StatusOK, map[string]int{"updated": n})
}
