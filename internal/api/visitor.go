package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// VisitorCookie identifies a browser across visits. First-party so the
// attribution trail survives ad-blocker purges of third-party state.
const VisitorCookie = "dl_visitor"

type contextKey string

const visitorKey contextKey = "visitor_id"

// visitorCookie assigns a UUID to first-time visitors and carries the ID in
// the request context for every /api handler.
func (s *Server) visitorCookie(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var visitorID string
		if c, err := r.Cookie(VisitorCookie); err == nil && c.Value != "" {
			if _, err := uuid.Parse(c.Value); err == nil {
				visitorID = c.Value
			}
		}
		if visitorID == "" {
			visitorID = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     VisitorCookie,
				Value:    visitorID,
				Path:     "/",
				Domain:   s.cfg.CookieDomain,
				Expires:  time.Now().Add(2 * 365 * 24 * time.Hour),
				HttpOnly: true,
				Secure:   s.cfg.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), visitorKey, visitorID),
		))
	})
}

// visitorID returns the request's visitor UUID; empty outside the cookie
// middleware.
func visitorID(ctx context.Context) string {
	id, _ := ctx.Value(visitorKey).(string)
	return id
}
