package middleware

import (
	"net/http"
	"strings"

	"github.com/Pabblusansky/Pelegram-sub000/tools/errs"
	"github.com/Pabblusansky/Pelegram-sub000/tools/security"
	"github.com/gin-gonic/gin"
)

const (
	CtxUserID   = "user_id"
	CtxUserName = "user_name"
)

// Auth verifies the bearer token (or ?token= fallback, matching the socket
// handshake) and stores the caller identity on the gin context.
func Auth(opts security.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			abortUnauthorized(c, "missing token")
			return
		}
		userID, err := security.Verify(opts, token)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}
		c.Set(CtxUserID, userID)
		if name := c.GetHeader("X-User-Name"); name != "" {
			c.Set(CtxUserName, name)
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": errs.CodeUnauthorized,
		"msg":  msg,
	})
}

// UserID reads the authenticated user id set by Auth.
func UserID(c *gin.Context) string { return c.GetString(CtxUserID) }

// UserName reads the optional display name header captured by Auth.
func UserName(c *gin.Context) string { return c.GetString(CtxUserName) }
