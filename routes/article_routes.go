package routes

import (
	"github.com/gorilla/mux"

	"outliers_server/controllers"
	"outliers_server/services"
)

// RegisterArticleRoutes sets up articles, comments and search under /api
func RegisterArticleRoutes(api *mux.Router, articles *services.ArticleService, comments *services.CommentService, search *services.SearchService) {
	controller := controllers.NewArticleController(articles, comments, search)

	api.HandleFunc("/search", controller.HandleSearch).Methods("GET")

	articleRouter := api.PathPrefix("/articles").Subrouter()
	articleRouter.HandleFunc("", controller.HandleList).Methods("GET")
	articleRouter.HandleFunc("", controller.HandleCreate).Methods("POST")
	articleRouter.HandleFunc("/saved", controller.HandleSaved).Methods("GET")
	articleRouter.HandleFunc("/cover", controller.HandleUploadCover).Methods("POST")
	articleRouter.HandleFunc("/{articleId}", controller.HandleGet).Methods("GET")
	articleRouter.HandleFunc("/{articleId}", controller.HandleUpdate).Methods("PUT")
	articleRouter.HandleFunc("/{articleId}", controller.HandleDelete).Methods("DELETE")
	articleRouter.HandleFunc("/{articleId}/comments", controller.HandleListComments).Methods("GET")
	articleRouter.HandleFunc("/{articleId}/comments", controller.HandleCreateComment).Methods("POST")

	commentRouter := api.PathPrefix("/comments").Subrouter()
	commentRouter.HandleFunc("/{commentId}", controller.HandleDeleteComment).Methods("DELETE")
	commentRouter.HandleFunc("/{commentId}/like", controller.HandleToggleCommentLike).Methods("POST")
}
