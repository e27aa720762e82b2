package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"outliers_server/services"
	"outliers_server/utils"
)

// DirectMessageController serves the media direct-message threads.
type DirectMessageController struct {
	DMs *services.DirectMessageService
}

func NewDirectMessageController(dms *services.DirectMessageService) *DirectMessageController {
	return &DirectMessageController{DMs: dms}
}

// HandlePartners - Lists the users the caller has direct messages with
func (c *DirectMessageController) HandlePartners(w http.ResponseWriter, r *http.Request) {
	partners, err := c.DMs.Partners(r.Context())
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, partners)
}

// HandleThread - Fetches the direct message thread with another user
func (c *DirectMessageController) HandleThread(w http.ResponseWriter, r *http.Request) {
	thread, err := c.DMs.Thread(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, thread)
}

// HandleSend - Sends a direct message
func (c *DirectMessageController) HandleSend(w http.ResponseWriter, r *http.Request) {
	var in services.MediaInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	dm, err := c.DMs.Send(r.Context(), mux.Vars(r)["userId"], in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, dm)
}

// HandleUploadMedia - Stores an attachment for a direct message
func (c *DirectMessageController) HandleUploadMedia(w http.ResponseWriter, r *http.Request) {
	f, h, err := formFile(w, r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	defer f.Close()
	url, err := c.DMs.UploadMedia(r.Context(), h.Filename, contentTypeOf(h), f)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, map[string]string{"url": url})
}
