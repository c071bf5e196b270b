package middleware

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionKey is the gin context key holding the session ID
const SessionKey = "sessionID"

// EnsureSession makes sure every request carries a session cookie. A missing
// or malformed cookie is replaced by a fresh random ID.
func EnsureSession(cookieName string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(cookieName)
		if err != nil || !validSessionID(sessionID) {
			sessionID = uuid.NewString()
			log.Printf("[EnsureSession] Issuing new session %s", sessionID)
		}

		// the cookie is refreshed on every request so an active user keeps the same ID.
		// The stored analysis still expires one TTL after its upload.
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cookieName, sessionID, int(ttl.Seconds()), "/", "", false, true)
		c.Set(SessionKey, sessionID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), sessionCtxKey{}, sessionID))

		c.Next()
	}
}

// SessionID returns the ID set by EnsureSession
func SessionID(c *gin.Context) string {
	return c.GetString(SessionKey)
}

type sessionCtxKey struct{}

// SessionFromRequest returns the session ID EnsureSession attached to the
// request, for handlers mounted outside gin
func SessionFromRequest(r *http.Request) string {
	id, _ := r.Context().Value(sessionCtxKey{}).(string)
	return id
}

func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
