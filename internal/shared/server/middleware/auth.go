package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cv-assistant/internal/shared/server/respond"
)

const (
	ownerIDKey     = "ownerId"
	workspaceIDKey = "workspaceId"

	// GuestHeader carries the visitor's browser-generated identity.
	GuestHeader = "X-Guest-Id"

	maxGuestIDLength = 128
)

// Auth resolves the visitor identity from the guest header. Paths listed in
// public skip the check.
func Auth(public ...string) gin.HandlerFunc {
	open := make(map[string]struct{}, len(public))
	for _, p := range public {
		open[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		if _, ok := open[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		guestID := strings.TrimSpace(c.GetHeader(GuestHeader))
		if guestID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}
		if !validGuestID(guestID) {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Invalid identity", nil)
			return
		}

		c.Set(ownerIDKey, "guest:"+guestID)
		c.Next()
	}
}

func validGuestID(id string) bool {
	if len(id) > maxGuestIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// OwnerIDFromContext fetches the owner ID set by the auth middleware.
func OwnerIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(ownerIDKey)
}

// SetWorkspaceID records the resolved workspace for request logging.
func SetWorkspaceID(c *gin.Context, id string) {
	c.Set(workspaceIDKey, id)
}
