package api

import (
	"net/http"

	"undergame/internal/config"

	"github.com/gin-gonic/gin"
)

// GET /health
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// GET /config
func configHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only return non-sensitive config fields
		c.JSON(http.StatusOK, gin.H{
			"server": gin.H{
				"host":    cfg.Server.Host,
				"port":    cfg.Server.Port,
				"subpath": cfg.Server.Subpath,
			},
			"oracle": gin.H{
				"delegate":   cfg.Oracle.Delegate.Name,
				"judge":      cfg.Oracle.Judge.Name,
				"dialogue":   cfg.Oracle.Dialogue.Name,
				"summarizer": cfg.Oracle.Summarizer.Name,
			},
			"dialogue": gin.H{
				"summary_trigger":    cfg.Dialogue.SummaryTrigger,
				"keep_after_summary": cfg.Dialogue.KeepAfterSummary,
			},
			"retrieval_enabled": cfg.Retrieval.Enabled,
		})
	}
}
