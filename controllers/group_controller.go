package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"outliers_server/services"
	"outliers_server/utils"
)

// GroupController serves groups, membership and group chat.
type GroupController struct {
	Groups *services.GroupService
}

func NewGroupController(groups *services.GroupService) *GroupController {
	return &GroupController{Groups: groups}
}

func groupID(r *http.Request) string { return mux.Vars(r)["groupId"] }

// HandleList - Lists groups, or only the caller's with ?mine=true
func (c *GroupController) HandleList(w http.ResponseWriter, r *http.Request) {
	list := c.Groups.List
	if r.URL.Query().Get("mine") == "true" {
		list = c.Groups.Mine
	}
	groups, err := list(r.Context())
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, groups)
}

// HandleCreate - Creates a group owned by the caller
func (c *GroupController) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in services.GroupInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	g, err := c.Groups.Create(r.Context(), in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, g)
}

// HandleGet - Fetches one group
func (c *GroupController) HandleGet(w http.ResponseWriter, r *http.Request) {
	g, err := c.Groups.Get(r.Context(), groupID(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, g)
}

// HandleUpdate - Edits a group; admins only
func (c *GroupController) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in services.GroupInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	g, err := c.Groups.Update(r.Context(), groupID(r), in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, g)
}

// HandleMembers - Lists the members of a group
func (c *GroupController) HandleMembers(w http.ResponseWriter, r *http.Request) {
	members, err := c.Groups.Members(r.Context(), groupID(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, members)
}

// HandleJoin answers {"status":"member"} or {"status":"pending"}.
func (c *GroupController) HandleJoin(w http.ResponseWriter, r *http.Request) {
	status, err := c.Groups.Join(r.Context(), groupID(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": status})
}

// HandleLeave - Removes the caller from a group
func (c *GroupController) HandleLeave(w http.ResponseWriter, r *http.Request) {
	if err := c.Groups.Leave(r.Context(), groupID(r)); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveMember - Removes a member from a group; admins only
func (c *GroupController) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := c.Groups.RemoveMember(r.Context(), groupID(r), mux.Vars(r)["userId"]); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRequests - Lists the pending join requests of a group
func (c *GroupController) HandleRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := c.Groups.Requests(r.Context(), groupID(r))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, requests)
}

// HandleResolveRequest approves (POST) or declines (DELETE) a join request.
func (c *GroupController) HandleResolveRequest(w http.ResponseWriter, r *http.Request) {
	resolve := c.Groups.Approve
	if r.Method == http.MethodDelete {
		resolve = c.Groups.Decline
	}
	if err := resolve(r.Context(), groupID(r), mux.Vars(r)["userId"]); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "success"})
}

// HandleMessages - Lists the messages of a group
func (c *GroupController) HandleMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := c.Groups.Messages(r.Context(), groupID(r), queryInt(r, "limit", 50))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, msgs)
}

// HandleSendMessage - Posts a message to a group
func (c *GroupController) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var in services.MediaInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	msg, err := c.Groups.SendMessage(r.Context(), groupID(r), in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, msg)
}

// HandleUploadMedia - Stores an attachment for a group message
func (c *GroupController) HandleUploadMedia(w http.ResponseWriter, r *http.Request) {
	f, h, err := formFile(w, r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	defer f.Close()
	url, err := c.Groups.UploadMedia(r.Context(), groupID(r), h.Filename, contentTypeOf(h), f)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, map[string]string{"url": url})
}
