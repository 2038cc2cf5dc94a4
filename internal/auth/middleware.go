package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/learning-profile/internal/errors"
)

const (
	invitationKey = "invitation"

	// AdminHeader carries the shared secret that authorises issuing invitations.
	AdminHeader = "X-Admin-Token"
)

// Middleware reads an optional "Authorization: Bearer" invitation. A valid
// token is stored on the context; an invalid one is rejected. With
// required set, a missing token is rejected too.
func Middleware(issuer *Issuer, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if required {
				apperrors.Abort(c, apperrors.NewUnauthorizedError("invitation token required", nil))
				return
			}
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			apperrors.Abort(c, apperrors.NewUnauthorizedError("malformed authorization header", nil))
			return
		}

		inv, err := issuer.Verify(strings.TrimSpace(token))
		if err != nil {
			apperrors.Abort(c, apperrors.NewUnauthorizedError("invalid invitation token", err))
			return
		}

		c.Set(invitationKey, inv)
		c.Next()
	}
}

// FromContext returns the verified invitation of the request, if any.
func FromContext(c *gin.Context) (*Invitation, bool) {
	v, ok := c.Get(invitationKey)
	if !ok {
		return nil, false
	}
	inv, ok := v.(*Invitation)
	return inv, ok
}

// AdminMiddleware guards invitation issuance with a shared secret. An empty
// token leaves the route open.
func AdminMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := c.GetHeader(AdminHeader)
		if got == "" {
			apperrors.Abort(c, apperrors.NewUnauthorizedError("admin token required", nil))
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			apperrors.Abort(c, apperrors.NewUnauthorizedError("invalid admin token", nil))
			return
		}
		c.Next()
	}
}
