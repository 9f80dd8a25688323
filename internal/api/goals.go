package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soaringjerry/Stride/internal/models"
	"github.com/soaringjerry/Stride/internal/services"
)

type goalHandler struct {
	svc *services.GoalService
}

func (h *goalHandler) save(c *gin.Context) {
	var in models.SupportGoal
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.svc.SaveGoal(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *goalHandler) list(c *gin.Context) {
	list, err := h.svc.ListGoals(c.Request.Context(), c.Query("targetId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"goals": list})
}

func (h *goalHandler) delete(c *gin.Context) {
	ok, err := h.svc.DeleteGoal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !ok {
		respondError(c, http.StatusNotFound, string(services.ErrorNotFound), errors.New("goal not found"))
		return
	}
	c.Status(http.StatusNoContent)
}
