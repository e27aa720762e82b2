package routes

import (
	"github.com/gorilla/mux"

	"outliers_server/controllers"
	"outliers_server/metrics"
)

// RegisterRoutes sets up the unauthenticated routes of the application
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", controllers.WelcomeHandler).Methods("GET")
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	r.HandleFunc("/privacy-policy", PrivacyPolicyHandler).Methods("GET")
}

// APIRouter returns the /api subrouter; every route on it requires a
// session.
func APIRouter(r *mux.Router, auth *controllers.Auth) *mux.Router {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth.RequireSession)
	return api
}
