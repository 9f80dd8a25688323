package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/soaringjerry/Stride/internal/models"
	"github.com/soaringjerry/Stride/internal/services"
)

type aiHandler struct {
	ai        *services.AIService
	targets   *services.TargetService
	sessions  *services.SessionManager
	checklist *services.Checklist
}

// aiRequest names either an open session or an explicit evaluation.
type aiRequest struct {
	SessionID      string             `json:"sessionId"`
	TargetID       string             `json:"targetId"`
	EvaluationDate string             `json:"evaluationDate"`
	Responses      models.ResponseSet `json:"responses"`
}

// aiResponse reports Stale when the session moved to another selection
// while the model was answering. Stale results are not kept on the session.
type aiResponse struct {
	Result any  `json:"result"`
	Stale  bool `json:"stale"`
}

type aiCall func(ctx context.Context, summary services.EvaluationSummary) any

func (h *aiHandler) run(c *gin.Context, kind string, call aiCall) {
	var req aiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()

	var (
		session *services.Session
		gen     uint64
	)
	targetID, date, rs := strings.TrimSpace(req.TargetID), req.EvaluationDate, req.Responses
	if req.SessionID != "" {
		s, err := h.sessions.Get(req.SessionID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		session = s
		gen = s.Generation()
		st := s.State()
		targetID, date, rs = st.TargetID, st.Date, st.Responses
	}
	if targetID == "" {
		badRequest(c, errors.New("targetId or sessionId required"))
		return
	}
	if err := h.checklist.CheckResponses(rs); err != nil {
		badRequest(c, err)
		return
	}
	target, err := h.targets.Get(ctx, targetID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	summary, err := services.BuildSummary(*target, date, rs, h.checklist)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := call(ctx, summary)
	out := aiResponse{Result: result}
	if session != nil {
		out.Stale = !session.StoreAIResult(gen, kind, result)
	}
	c.JSON(http.StatusOK, out)
}

func (h *aiHandler) observation(c *gin.Context) {
	h.run(c, "observation", func(ctx context.Context, s services.EvaluationSummary) any { return h.ai.Observation(ctx, s) })
}

func (h *aiHandler) considerations(c *gin.Context) {
	h.run(c, "considerations", func(ctx context.Context, s services.EvaluationSummary) any { return h.ai.Considerations(ctx, s) })
}

func (h *aiHandler) goals(c *gin.Context) {
	h.run(c, "goals", func(ctx context.Context, s services.EvaluationSummary) any { return h.ai.RecommendGoals(ctx, s) })
}

func (h *aiHandler) differences(c *gin.Context) {
	h.run(c, "differences", func(ctx context.Context, s services.EvaluationSummary) any { return h.ai.AnalyzeDifferences(ctx, s) })
}
