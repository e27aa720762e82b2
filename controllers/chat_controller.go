package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"outliers_server/chat"
	"outliers_server/utils"
)

// ChatController exposes the viewer's chat store. Every handler answers with
// the resulting chat state so the client can render it directly.
type ChatController struct{}

func NewChatController() *ChatController {
	return &ChatController{}
}

func (c *ChatController) store(r *http.Request) *chat.Store {
	return SessionFrom(r.Context()).Chat
}

func (c *ChatController) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, c.store(r).Snapshot())
}

// HandleState returns the current chat state without touching the backend.
func (c *ChatController) HandleState(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, http.StatusOK, c.store(r).Snapshot())
}

// HandleListConversations reloads the conversation list.
func (c *ChatController) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	_, err := c.store(r).ListConversations(r.Context())
	c.respond(w, r, err)
}

// HandleStartConversation opens (or reuses) the conversation with target_id.
func (c *ChatController) HandleStartConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetID string `json:"target_id"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if _, err := c.store(r).StartConversation(r.Context(), req.TargetID); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, c.store(r).Snapshot())
}

// HandleSelect makes the conversation in the path active. DELETE clears it.
func (c *ChatController) HandleSelect(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["conversationId"]
	if r.Method == http.MethodDelete {
		id = ""
	}
	c.respond(w, r, c.store(r).Select(r.Context(), id))
}

// HandleFetchMessages reloads the messages of a conversation, making it
// active first if it is not.
func (c *ChatController) HandleFetchMessages(w http.ResponseWriter, r *http.Request) {
	store := c.store(r)
	id := mux.Vars(r)["conversationId"]
	if store.Active() != id {
		c.respond(w, r, store.Select(r.Context(), id))
		return
	}
	c.respond(w, r, store.FetchMessages(r.Context(), id))
}

type messageBody struct {
	Content string `json:"content"`
}

// HandleSendMessage - Sends a message to the active conversation
func (c *ChatController) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageBody
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	msg, err := c.store(r).SendMessage(r.Context(), req.Content)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, msg)
}

// HandleEditMessage - Replaces the content of one of the caller's messages
func (c *ChatController) HandleEditMessage(w http.ResponseWriter, r *http.Request) {
	var req messageBody
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	c.respond(w, r, c.store(r).EditMessage(r.Context(), mux.Vars(r)["messageId"], req.Content))
}

// HandleDeleteMessage - Deletes one of the caller's messages
func (c *ChatController) HandleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.store(r).DeleteMessage(r.Context(), mux.Vars(r)["messageId"]))
}

// HandleLike likes (POST) or unlikes (DELETE) a message.
func (c *ChatController) HandleLike(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["messageId"]
	if r.Method == http.MethodDelete {
		c.respond(w, r, c.store(r).UnlikeMessage(r.Context(), id))
		return
	}
	c.respond(w, r, c.store(r).LikeMessage(r.Context(), id))
}

// HandleReconcileLikes - Reloads like counts of the active messages from the backend
func (c *ChatController) HandleReconcileLikes(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.store(r).ReconcileLikes(r.Context()))
}

// HandleMarkRead - Marks one message read for the caller
func (c *ChatController) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := c.store(r).MarkRead(r.Context(), mux.Vars(r)["messageId"]); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "success"})
}
