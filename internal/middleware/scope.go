// SPDX-License-Identifier: AGPL-3.0-only
package middleware

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionName  = "ordinary_scope"
	scopeKey     = "scope_id"
	scopeContext = "scope_id"
)

// Sessions installs the signed cookie store that carries the UI scope id.
func Sessions(secret []byte) gin.HandlerFunc {
	store := cookie.NewStore(secret)
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(sessionName, store)
}

// Scope gives every browser a stable scope id. Feed sessions are keyed by
// it, so two tabs sharing a cookie share their collections.
func Scope() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		id, _ := session.Get(scopeKey).(string)
		if id == "" {
			id = uuid.NewString()
			session.Set(scopeKey, id)
			if err := session.Save(); err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"status":  "error",
					"message": "failed to start scope",
				})
				return
			}
		}
		c.Set(scopeContext, id)
		c.Next()
	}
}

func ScopeID(c *gin.Context) string {
	return c.GetString(scopeContext)
}

// EndScope forgets the scope id so the next request starts a fresh one.
func EndScope(c *gin.Context) error {
	session := sessions.Default(c)
	session.Delete(scopeKey)
	return session.Save()
}
