package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soaringjerry/Stride/internal/models"
	"github.com/soaringjerry/Stride/internal/services"
)

type evaluationHandler struct {
	drafts    *services.DraftService
	records   *services.RecordService
	checklist *services.Checklist
	audit     *services.AuditLog
}

func (h *evaluationHandler) saveDraft(c *gin.Context) {
	var in services.EvaluationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	draft, err := h.drafts.SaveDraft(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// GET /api/drafts?targetId=
func (h *evaluationHandler) listDrafts(c *gin.Context) {
	list, err := h.drafts.ListDrafts(c.Request.Context(), c.Query("targetId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drafts": list})
}

func (h *evaluationHandler) getDraft(c *gin.Context) {
	draft, err := h.drafts.LoadDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (h *evaluationHandler) deleteDraft(c *gin.Context) {
	ok, err := h.drafts.DeleteDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !ok {
		respondError(c, http.StatusNotFound, string(services.ErrorNotFound), errors.New("draft not found"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *evaluationHandler) finalizeDraft(c *gin.Context) {
	rec, err := h.drafts.FinalizeDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *evaluationHandler) saveRecord(c *gin.Context) {
	var in services.EvaluationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := h.records.SaveRecord(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// GET /api/records?targetId=
func (h *evaluationHandler) listRecords(c *gin.Context) {
	list, err := h.records.ListRecords(c.Request.Context(), c.Query("targetId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": list})
}

func (h *evaluationHandler) getRecord(c *gin.Context) {
	rec, err := h.records.GetRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type updateRecordRequest struct {
	Responses models.ResponseSet `json:"responses"`
}

func (h *evaluationHandler) updateRecord(c *gin.Context) {
	var req updateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := h.records.UpdateRecord(c.Request.Context(), c.Param("id"), req.Responses)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *evaluationHandler) deleteRecord(c *gin.Context) {
	ok, err := h.records.DeleteRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !ok {
		respondError(c, http.StatusNotFound, string(services.ErrorNotFound), errors.New("record not found"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *evaluationHandler) auditTrail(c *gin.Context) {
	var entries []services.AuditEntry
	if h.audit != nil {
		entries = h.audit.List()
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

type previewRequest struct {
	Evaluator models.Evaluator   `json:"evaluator"`
	Responses models.ResponseSet `json:"responses"`
}

type previewResponse struct {
	services.Scores
	CompletionRate int                         `json:"completionRate"`
	Progress       []services.CategoryProgress `json:"progress"`
}

// POST /api/scores/preview computes scores without storing anything.
func (h *evaluationHandler) previewScores(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ev, err := models.ParseEvaluator(string(req.Evaluator))
	if err != nil {
		badRequest(c, err)
		return
	}
	rs := req.Responses
	if rs.Values == nil {
		rs = models.NewResponseSet()
	}
	if err := h.checklist.CheckResponses(rs); err != nil {
		badRequest(c, err)
		return
	}
	scores, err := services.ComputeScores(rs, h.checklist, ev)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, previewResponse{
		Scores:         scores,
		CompletionRate: services.CompletionRate(rs, h.checklist, ev),
		Progress:       services.Progress(rs, h.checklist, ev),
	})
}
