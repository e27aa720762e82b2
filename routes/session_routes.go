package routes

import (
	"github.com/gorilla/mux"

	"outliers_server/controllers"
)

// RegisterSessionRoutes sets up login and logout under /api/session
func RegisterSessionRoutes(api *mux.Router, auth *controllers.Auth) {
	controller := controllers.NewSessionController(auth)

	sessionRouter := api.PathPrefix("/session").Subrouter()
	sessionRouter.HandleFunc("", controller.HandleLogin).Methods("POST")
	sessionRouter.HandleFunc("", controller.HandleLogout).Methods("DELETE")
	sessionRouter.HandleFunc("/me", controller.HandleMe).Methods("GET")
}
