package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soaringjerry/Stride/internal/services"
)

var errNoRoute = errors.New("route not found")

type metaHandler struct {
	store     Pinger
	commit    string
	buildTime string
	checklist *services.Checklist
}

func (h *metaHandler) health(c *gin.Context) {
	body := gin.H{"ok": true, "name": "Stride API", "commit": h.commit, "build_time": h.buildTime}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			body["ok"] = false
			body["store"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["store"] = "ok"
	}
	c.JSON(http.StatusOK, body)
}

func (h *metaHandler) version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"commit": h.commit, "build_time": h.buildTime})
}

// GET /api/checklist
func (h *metaHandler) checklistInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.checklist.Categories, "totalItems": h.checklist.TotalItems()})
}
