package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"outliers_server/apperr"
	"outliers_server/metrics"
	"outliers_server/session"
	"outliers_server/utils"
)

type ctxSessionKey struct{}

// SessionFrom returns the session attached by Auth.RequireSession.
func SessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(ctxSessionKey{}).(*session.Session)
	return s
}

// Auth resolves the bearer token of each request to the viewer's session
// and applies the per-viewer rate limit.
type Auth struct {
	Sessions *session.Manager
	limits   *limiterPool
}

func NewAuth(sessions *session.Manager, rps float64, burst int) *Auth {
	return &Auth{Sessions: sessions, limits: newLimiterPool(rps, burst)}
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (a *Auth) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			utils.WriteError(w, r, apperr.ErrMissingViewer)
			return
		}
		s, err := a.Sessions.Login(r.Context(), token)
		if err != nil {
			slog.WarnContext(r.Context(), "authentication failed", "path", r.URL.Path, "remote", r.RemoteAddr, "error", err)
			utils.WriteError(w, r, err)
			return
		}
		if !a.limits.Allow(s.Viewer.ID) {
			metrics.RateLimited.Inc()
			utils.WriteJSONResponse(w, http.StatusTooManyRequests, utils.ErrorBody{Error: "rate limit exceeded", Code: apperr.CodeUnavailable})
			return
		}
		ctx := context.WithValue(s.Context(r.Context()), ctxSessionKey{}, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Instrument counts requests by route template and status.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}
