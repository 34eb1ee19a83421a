package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vidquery/vidquery/internal/httputil"
	"github.com/vidquery/vidquery/internal/ratelimit"
	"github.com/vidquery/vidquery/internal/session"
)

type contextKey string

const sessionKeyCtx contextKey = "session"

// withSession attaches the caller's session. A browser without a cookie
// gets a new session; a cookie naming an unknown or expired session is
// cleared and answered with 401 so the next request starts afresh.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Resolve(w, r)
		switch {
		case errors.Is(err, http.ErrNoCookie):
			sess, err = s.sessions.Create(w, r)
			if err != nil {
				slog.Error("server: create session", "error", err)
				httputil.WriteError(w, http.StatusInternalServerError, "could not start session")
				return
			}
		case err != nil:
			s.sessions.ClearCookie(w)
			httputil.WriteError(w, http.StatusUnauthorized, "session expired, reload to start a new one")
			return
		}
		ctx := context.WithValue(r.Context(), sessionKeyCtx, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKeyCtx).(*session.Session)
	return sess
}

// sessionKey charges rate limits to the session, falling back to the client
// address before one is attached.
func sessionKey(r *http.Request) string {
	if sess := sessionFrom(r.Context()); sess != nil {
		return sess.ID.String()
	}
	return ratelimit.ClientIP(r)
}
