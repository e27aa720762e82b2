package controllers

import (
	"net/http"

	"outliers_server/chat"
	"outliers_server/models"
	"outliers_server/utils"
)

// SessionController logs viewers in and out.
type SessionController struct {
	Auth *Auth
}

func NewSessionController(auth *Auth) *SessionController {
	return &SessionController{Auth: auth}
}

// HandleLogin is served behind RequireSession, which already created the
// session; it returns the viewer and the initial state.
func (c *SessionController) HandleLogin(w http.ResponseWriter, r *http.Request) {
	s := SessionFrom(r.Context())
	unread := s.Poller.Badge()
	if unread < 0 {
		unread = 0
	}
	utils.WriteJSONResponse(w, http.StatusOK, struct {
		Viewer models.Profile `json:"viewer"`
		Chat   chat.Snapshot  `json:"chat"`
		Unread int            `json:"unread_notifications"`
	}{s.Viewer, s.Chat.Snapshot(), unread})
}

// HandleLogout - Closes the caller's session
func (c *SessionController) HandleLogout(w http.ResponseWriter, r *http.Request) {
	id := SessionFrom(r.Context()).Viewer.ID
	c.Auth.Sessions.Logout(id)
	c.Auth.limits.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the viewer's profile as of login.
func (c *SessionController) HandleMe(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, http.StatusOK, SessionFrom(r.Context()).Viewer)
}
