package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"outliers_server/apperr"
	"outliers_server/models"
	"outliers_server/services"
	"outliers_server/utils"
)

// UserProfileController serves profile reads, edits and image uploads.
type UserProfileController struct {
	Profiles *services.ProfileService
}

func NewUserProfileController(profiles *services.ProfileService) *UserProfileController {
	return &UserProfileController{Profiles: profiles}
}

// HandleGetProfile looks a profile up by ?username= when given, by the
// {userId} path variable otherwise.
func (c *UserProfileController) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	var (
		p   models.Profile
		err error
	)
	if username := r.URL.Query().Get("username"); username != "" {
		p, err = c.Profiles.GetByUsername(r.Context(), username)
	} else {
		p, err = c.Profiles.Get(r.Context(), mux.Vars(r)["userId"])
	}
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, p)
}

// HandleUpdateProfile - Edits the caller's profile
func (c *UserProfileController) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in services.ProfileUpdate
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	p, err := c.Profiles.Update(r.Context(), in)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, p)
}

// HandleUploadImage stores the multipart "file" as the viewer's avatar or
// banner, depending on the {kind} path variable.
func (c *UserProfileController) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	upload := c.Profiles.UploadAvatar
	if mux.Vars(r)["kind"] == "banner" {
		upload = c.Profiles.UploadBanner
	}
	f, h, err := formFile(w, r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	defer f.Close()
	p, err := upload(r.Context(), h.Filename, contentTypeOf(h), f)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, p)
}

// HandleUploadURL returns a presigned PUT URL for a direct browser upload.
func (c *UserProfileController) HandleUploadURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if req.FileName == "" || req.FileType == "" {
		utils.WriteError(w, r, apperr.InvalidArg("fileName and fileType are required"))
		return
	}
	signed, public, err := c.Profiles.UploadURL(r.Context(), req.FileName, req.FileType)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"url": signed, "publicUrl": public})
}

// HandleReadURL returns a presigned GET URL for a stored key.
func (c *UserProfileController) HandleReadURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	url, err := c.Profiles.ReadURL(r.Context(), req.Key)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"url": url})
}
