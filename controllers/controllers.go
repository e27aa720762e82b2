package controllers

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"outliers_server/apperr"
	"outliers_server/utils"
)

// maxUpload caps multipart uploads.
const maxUpload = 25 << 20

// HealthCheckHandler provides a basic health check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// WelcomeHandler provides a welcome message
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Welcome to the Outliers API."})
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// formFile opens the "file" part of a multipart upload. The caller closes it.
func formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		return nil, nil, apperr.Wrap(apperr.CodeInvalidArgument, "invalid multipart upload", err)
	}
	f, h, err := r.FormFile("file")
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.CodeInvalidArgument, "missing file field", err)
	}
	return f, h, nil
}

func contentTypeOf(h *multipart.FileHeader) string {
	if ct := h.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
