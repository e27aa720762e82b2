package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"outliers_server/services"
	"outliers_server/utils"
)

// ArticleController serves articles, their comments and search.
type ArticleController struct {
	Articles *services.ArticleService
	Comments *services.CommentService
	Search   *services.SearchService
}

func NewArticleController(articles *services.ArticleService, comments *services.CommentService, search *services.SearchService) *ArticleController {
	return &ArticleController{Articles: articles, Comments: comments, Search: search}
}

// HandleList lists articles newest first, optionally by author_id or sector.
func (c *ArticleController) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	articles, err := c.Articles.List(r.Context(), services.ListArticlesParams{
		AuthorID: q.Get("author_id"),
		Sector:   q.Get("sector"),
		Limit:    queryInt(r, "limit", 50),
	})
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, articles)
}

// HandleGet - Fetches one article with its author
func (c *ArticleController) HandleGet(w http.ResponseWriter, r *http.Request) {
	a, err := c.Articles.Get(r.Context(), mux.Vars(r)["articleId"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, a)
}

// HandleCreate - Publishes a new article by the caller
func (c *ArticleController) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in services.ArticleInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	a, err := c.Articles.Create(r.Context(), in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, a)
}

// HandleUpdate - Edits an article
func (c *ArticleController) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in services.ArticleInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	a, err := c.Articles.Update(r.Context(), mux.Vars(r)["articleId"], in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, a)
}

// HandleDelete - Removes an article
func (c *ArticleController) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := c.Articles.Delete(r.Context(), mux.Vars(r)["articleId"]); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUploadCover stores a multipart "file" and returns its public URL.
func (c *ArticleController) HandleUploadCover(w http.ResponseWriter, r *http.Request) {
	f, h, err := formFile(w, r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	defer f.Close()
	url, err := c.Articles.UploadCover(r.Context(), h.Filename, contentTypeOf(h), f)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, map[string]string{"url": url})
}

// HandleSaved - Lists the articles the caller saved
func (c *ArticleController) HandleSaved(w http.ResponseWriter, r *http.Request) {
	articles, err := c.Articles.SavedArticles(r.Context())
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, articles)
}

// HandleSearch matches ?q= keywords against titles and content.
func (c *ArticleController) HandleSearch(w http.ResponseWriter, r *http.Request) {
	articles, err := c.Search.SearchArticles(r.Context(), r.URL.Query().Get("q"), queryInt(r, "limit", 20))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, articles)
}

// HandleListComments - Lists the comments on an article
func (c *ArticleController) HandleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := c.Comments.List(r.Context(), mux.Vars(r)["articleId"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, comments)
}

// HandleCreateComment - Adds a comment to an article
func (c *ArticleController) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	comment, err := c.Comments.Create(r.Context(), mux.Vars(r)["articleId"], req.Content)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, comment)
}

// HandleDeleteComment - Removes a comment
func (c *ArticleController) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := c.Comments.Delete(r.Context(), mux.Vars(r)["commentId"]); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleToggleCommentLike - Toggles the caller's like on a comment
func (c *ArticleController) HandleToggleCommentLike(w http.ResponseWriter, r *http.Request) {
	liked, err := c.Comments.ToggleLike(r.Context(), mux.Vars(r)["commentId"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]bool{"liked": liked})
}
