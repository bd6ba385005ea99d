package middleware

import (
	"errors"
	"net/http"

	"greentera/internal/logging"
	"greentera/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	CheckUserKey   = "user"
	SessionUserKey = "user_id"
)

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}

// LoadUser retrieves the session user and stores it on the context. A
// session pointing at a deleted account is cleared.
func LoadUser(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, _ := session.Get(SessionUserKey).(string)
		if userID == "" {
			c.Next()
			return
		}

		var user models.User
		err := gdb.WithContext(c.Request.Context()).Where("id = ?", userID).Take(&user).Error
		switch {
		case err == nil:
			c.Set(CheckUserKey, &user)
		case errors.Is(err, gorm.ErrRecordNotFound):
			session.Delete(SessionUserKey)
			_ = session.Save()
		default:
			logging.Ctx(c.Request.Context()).Error().Err(err).Str("user_id", userID).Msg("Failed to load session user")
		}
		c.Next()
	}
}

// CurrentUser returns the user loaded by LoadUser, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(CheckUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// AuthRequired rejects requests without a signed-in user.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "login required")
			return
		}
		c.Next()
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "login required")
			return
		}
		if !u.IsAdmin() {
			abortJSON(c, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		c.Next()
	}
}
