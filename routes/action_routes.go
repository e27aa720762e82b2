package routes

import (
	"github.com/gorilla/mux"

	"outliers_server/controllers"
	"outliers_server/services"
)

// RegisterActionRoutes sets up the social toggles under /api/action
func RegisterActionRoutes(api *mux.Router, social *services.SocialService) {
	controller := controllers.NewActionController(social)

	actionRouter := api.PathPrefix("/action").Subrouter()
	actionRouter.HandleFunc("/articles/{articleId}/like", controller.HandleToggleLike).Methods("POST")
	actionRouter.HandleFunc("/articles/{articleId}/save", controller.HandleToggleSave).Methods("POST")
	actionRouter.HandleFunc("/users/{userId}/follow", controller.HandleToggleFollow).Methods("POST")
	actionRouter.HandleFunc("/users/{userId}/follow", controller.HandleIsFollowing).Methods("GET")
	actionRouter.HandleFunc("/users/{userId}/followers", controller.HandleFollowers).Methods("GET")
	actionRouter.HandleFunc("/users/{userId}/following", controller.HandleFollowing).Methods("GET")
}
