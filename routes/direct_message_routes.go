package routes

import (
	"github.com/gorilla/mux"

	"outliers_server/controllers"
	"outliers_server/services"
)

// RegisterDirectMessageRoutes sets up media direct messages under /api/dm
func RegisterDirectMessageRoutes(api *mux.Router, dms *services.DirectMessageService) {
	controller := controllers.NewDirectMessageController(dms)

	dmRouter := api.PathPrefix("/dm").Subrouter()
	dmRouter.HandleFunc("", controller.HandlePartners).Methods("GET")
	dmRouter.HandleFunc("/media", controller.HandleUploadMedia).Methods("POST")
	dmRouter.HandleFunc("/{userId}", controller.HandleThread).Methods("GET")
	dmRouter.HandleFunc("/{userId}", controller.HandleSend).Methods("POST")
}
