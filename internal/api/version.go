package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/version"
)

// Version reports the build metadata. The healthcheck probes it.
func Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": version.Service,
		"version": version.Version,
		"commit":  version.Commit,
		"date":    version.Date,
		"dirty":   version.Dirty,
	})
}
