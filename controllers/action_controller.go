package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"outliers_server/services"
	"outliers_server/utils"
)

// ActionController serves the social toggles: article likes, saves and follows.
type ActionController struct {
	Social *services.SocialService
}

func NewActionController(social *services.SocialService) *ActionController {
	return &ActionController{Social: social}
}

// HandleToggleLike - Toggles the caller's like on an article
func (c *ActionController) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	liked, err := c.Social.ToggleArticleLike(r.Context(), mux.Vars(r)["articleId"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]bool{"liked": liked})
}

// HandleToggleSave - Toggles whether the caller has saved an article
func (c *ActionController) HandleToggleSave(w http.ResponseWriter, r *http.Request) {
	saved, err := c.Social.ToggleSave(r.Context(), mux.Vars(r)["articleId"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]bool{"saved": saved})
}

// HandleToggleFollow - Follows or unfollows the user in the path
func (c *ActionController) HandleToggleFollow(w http.ResponseWriter, r *http.Request) {
	following, err := c.Social.ToggleFollow(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]bool{"following": following})
}

// HandleIsFollowing - Reports whether the caller follows the user in the path
func (c *ActionController) HandleIsFollowing(w http.ResponseWriter, r *http.Request) {
	following, err := c.Social.IsFollowing(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]bool{"following": following})
}

// HandleFollowers - Lists the followers of a user
func (c *ActionController) HandleFollowers(w http.ResponseWriter, r *http.Request) {
	profiles, err := c.Social.Followers(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, profiles)
}

// HandleFollowing - Lists the users a user follows
func (c *ActionController) HandleFollowing(w http.ResponseWriter, r *http.Request) {
	profiles, err := c.Social.Following(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, profiles)
}
