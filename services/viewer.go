package services

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"

	"outliers_server/apperr"
	"outliers_server/backend"
)

// viewerFrom returns the acting user or ErrMissingViewer.
func viewerFrom(ctx context.Context) (string, error) {
	if id := backend.ActorFrom(ctx); id != "" {
		return id, nil
	}
	return "", apperr.ErrMissingViewer
}

// objectPath builds "<owner>/<kind>-<uuid><ext>" keeping the upload's extension.
func objectPath(owner, kind, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return owner + "/" + kind + "-" + uuid.NewString() + ext
}

func distinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
