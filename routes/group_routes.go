package routes

import (
	"github.com/gorilla/mux"

	"outliers_server/controllers"
	"outliers_server/services"
)

// RegisterGroupRoutes sets up group routes under /api/groups
func RegisterGroupRoutes(api *mux.Router, groups *services.GroupService) {
	controller := controllers.NewGroupController(groups)

	groupRouter := api.PathPrefix("/groups").Subrouter()
	groupRouter.HandleFunc("", controller.HandleList).Methods("GET")
	groupRouter.HandleFunc("", controller.HandleCreate).Methods("POST")
	groupRouter.HandleFunc("/{groupId}", controller.HandleGet).Methods("GET")
	groupRouter.HandleFunc("/{groupId}", controller.HandleUpdate).Methods("PUT")
	groupRouter.HandleFunc("/{groupId}/members", controller.HandleMembers).Methods("GET")
	groupRouter.HandleFunc("/{groupId}/members/{userId}", controller.HandleRemoveMember).Methods("DELETE")
	groupRouter.HandleFunc("/{groupId}/join", controller.HandleJoin).Methods("POST")
	groupRouter.HandleFunc("/{groupId}/leave", controller.HandleLeave).Methods("POST")
	groupRouter.HandleFunc("/{groupId}/requests", controller.HandleRequests).Methods("GET")
	groupRouter.HandleFunc("/{groupId}/requests/{userId}", controller.HandleResolveRequest).Methods("POST", "DELETE")
	groupRouter.HandleFunc("/{groupId}/messages", controller.HandleMessages).Methods("GET")
	groupRouter.HandleFunc("/{groupId}/messages", controller.HandleSendMessage).Methods("POST")
	groupRouter.HandleFunc("/{groupId}/media", controller.HandleUploadMedia).Methods("POST")
}
