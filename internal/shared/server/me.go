package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cv-assistant/internal/shared/server/middleware"
	"cv-assistant/internal/shared/server/respond"
	"cv-assistant/internal/workspace"
)

// registerMeRoutes attaches the /me endpoint.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

func meHandler(c *gin.Context) {
	ownerID := middleware.OwnerIDFromContext(c)
	if ownerID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
		return
	}
	respond.OK(c, gin.H{
		"ownerId":     ownerID,
		"workspaceId": workspace.IDFor(ownerID),
	})
}
