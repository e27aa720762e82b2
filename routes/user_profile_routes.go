package routes

import (
	"github.com/gorilla/mux"

	"outliers_server/controllers"
	"outliers_server/services"
)

// RegisterUserProfileRoutes sets up profile routes under /api/profiles
func RegisterUserProfileRoutes(api *mux.Router, profiles *services.ProfileService) {
	controller := controllers.NewUserProfileController(profiles)

	profileRouter := api.PathPrefix("/profiles").Subrouter()
	profileRouter.HandleFunc("", controller.HandleGetProfile).Methods("GET")
	profileRouter.HandleFunc("/me", controller.HandleUpdateProfile).Methods("PATCH")
	profileRouter.HandleFunc("/me/{kind:avatar|banner}", controller.HandleUploadImage).Methods("POST")
	profileRouter.HandleFunc("/upload-url", controller.HandleUploadURL).Methods("POST")
	profileRouter.HandleFunc("/read-url", controller.HandleReadURL).Methods("POST")
	profileRouter.HandleFunc("/{userId}", controller.HandleGetProfile).Methods("GET")
}
