package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soaringjerry/Stride/internal/models"
	"github.com/soaringjerry/Stride/internal/services"
)

type targetHandler struct {
	svc *services.TargetService
}

func (h *targetHandler) list(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"targets": list})
}

func (h *targetHandler) register(c *gin.Context) {
	var in models.SupportTarget
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *targetHandler) get(c *gin.Context) {
	out, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// PUT /api/targets/:id; the path id wins over any id in the body.
func (h *targetHandler) update(c *gin.Context) {
	var in models.SupportTarget
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	in.ID = c.Param("id")
	out, err := h.svc.Update(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// DELETE /api/targets/:id also removes the target's evaluation records.
func (h *targetHandler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
