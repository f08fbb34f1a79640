package middleware

import (
	"errors"
	"net/http"
	"strings"

	"forum/auth"
	"forum/models"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

const (
	MsgLoginFirst   = "please log in first"
	MsgLoginExpired = "login expired, please log in again"
)

type Verifier interface {
	Verify(token string) (auth.Identity, error)
}

// Authenticate verifies the bearer token. With required set, a missing or bad
// token aborts the request; otherwise the request continues anonymously.
func Authenticate(v Verifier, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip middleware for OPTIONS requests (CORS preflight)
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		id, err := v.Verify(bearerToken(c))
		if err == nil {
			c.Set(identityKey, id)
			c.Next()
			return
		}
		if !required {
			c.Next()
			return
		}

		message := MsgLoginFirst
		if errors.Is(err, auth.ErrExpired) {
			message = MsgLoginExpired
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.Response{
			Code:    http.StatusUnauthorized,
			Data:    nil,
			Message: message,
		})
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// IdentityFrom returns the identity stored by Authenticate, if any.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}
