package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/video-stream/annotator/internal/token"
)

type contextKey string

const SessionIDKey contextKey = "session_id"

const (
	SessionCookie = "annotator_session"
	SessionHeader = "X-Session-Token"
)

// SessionMiddleware resolves the caller's annotation session from the session
// cookie or a Bearer token. Callers without a valid token get a new session
// and its token in both the cookie and the X-Session-Token header.
func SessionMiddleware(tokens *token.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if raw := requestToken(r); raw != "" {
				if claims, err := tokens.Parse(raw); err == nil {
					sessionID = claims.SessionID
				}
			}

			if sessionID == "" {
				sessionID = uuid.New().String()
				signed, err := tokens.Issue(sessionID)
				if err != nil {
					log.Printf("[session] failed to issue token: %v", err)
					http.Error(w, `{"error":"failed to create session"}`, http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    signed,
					Path:     "/",
					MaxAge:   int(tokens.TTL().Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
				w.Header().Set(SessionHeader, signed)
			}

			ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func GetSessionID(r *http.Request) string {
	id, _ := r.Context().Value(SessionIDKey).(string)
	return id
}
