package routes

import (
	"github.com/gorilla/mux"

	"outliers_server/controllers"
)

// RegisterChatRoutes sets up the conversation routes under /api/chat
func RegisterChatRoutes(api *mux.Router) {
	controller := controllers.NewChatController()

	chatRouter := api.PathPrefix("/chat").Subrouter()
	chatRouter.HandleFunc("/state", controller.HandleState).Methods("GET")
	chatRouter.HandleFunc("/conversations", controller.HandleListConversations).Methods("GET")
	chatRouter.HandleFunc("/conversations", controller.HandleStartConversation).Methods("POST")
	chatRouter.HandleFunc("/active/{conversationId}", controller.HandleSelect).Methods("PUT")
	chatRouter.HandleFunc("/active", controller.HandleSelect).Methods("DELETE")
	chatRouter.HandleFunc("/conversations/{conversationId}/messages", controller.HandleFetchMessages).Methods("GET")
	chatRouter.HandleFunc("/messages", controller.HandleSendMessage).Methods("POST")
	chatRouter.HandleFunc("/messages/{messageId}", controller.HandleEditMessage).Methods("PATCH")
	chatRouter.HandleFunc("/messages/{messageId}", controller.HandleDeleteMessage).Methods("DELETE")
	chatRouter.HandleFunc("/messages/{messageId}/like", controller.HandleLike).Methods("POST", "DELETE")
	chatRouter.HandleFunc("/messages/{messageId}/read", controller.HandleMarkRead).Methods("POST")
	chatRouter.HandleFunc("/likes/reconcile", controller.HandleReconcileLikes).Methods("POST")
}
