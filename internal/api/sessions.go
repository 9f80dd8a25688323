package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/soaringjerry/Stride/internal/models"
	"github.com/soaringjerry/Stride/internal/services"
)

type sessionHandler struct {
	sessions *services.SessionManager
	targets  *services.TargetService
	drafts   *services.DraftService
}

type selectionRequest struct {
	TargetID       string           `json:"targetId"`
	EvaluationDate string           `json:"evaluationDate"`
	Evaluator      models.Evaluator `json:"evaluator"`
	// ResumeDraft loads the stored draft for the new selection, if any.
	ResumeDraft bool `json:"resumeDraft"`
}

type sessionView struct {
	ID         string                      `json:"id"`
	State      services.SessionState       `json:"state"`
	Completion int                         `json:"completionRate"`
	Progress   []services.CategoryProgress `json:"progress"`
	Existing   services.Existing           `json:"existing"`
}

func (h *sessionHandler) session(c *gin.Context) (*services.Session, bool) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return nil, false
	}
	return s, true
}

func (h *sessionHandler) view(c *gin.Context, status int, id string, s *services.Session) {
	existing, err := s.Existing(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(status, sessionView{
		ID:         id,
		State:      s.State(),
		Completion: s.Completion(),
		Progress:   s.Progress(),
		Existing:   existing,
	})
}

// apply switches the session to the requested selection. The target is
// selected last so the autosave timer starts on the final selection.
func (h *sessionHandler) apply(c *gin.Context, s *services.Session, req selectionRequest) bool {
	ctx := c.Request.Context()
	if req.EvaluationDate != "" {
		s.SetDate(req.EvaluationDate)
	}
	if req.Evaluator != "" {
		if err := s.SetEvaluator(req.Evaluator); err != nil {
			respondServiceError(c, err)
			return false
		}
	}
	id := strings.TrimSpace(req.TargetID)
	if id == "" {
		return true
	}
	target, err := h.targets.Get(ctx, id)
	if err != nil {
		respondServiceError(c, err)
		return false
	}
	s.SelectTarget(target.ID, target.Name)
	if !req.ResumeDraft {
		return true
	}
	st := s.State()
	draft, err := h.drafts.FindDraft(ctx, st.TargetID, st.Date, st.Evaluator)
	if services.IsCode(err, services.ErrorNotFound) {
		return true
	}
	if err != nil {
		respondServiceError(c, err)
		return false
	}
	if err := s.Load(draft.Responses); err != nil {
		respondServiceError(c, err)
		return false
	}
	return true
}

// POST /api/sessions with an optional initial selection.
func (h *sessionHandler) open(c *gin.Context) {
	var req selectionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	id, s := h.sessions.Open()
	if !h.apply(c, s, req) {
		h.sessions.Close(id)
		return
	}
	h.view(c, http.StatusCreated, id, s)
}

func (h *sessionHandler) get(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.view(c, http.StatusOK, c.Param("id"), s)
}

func (h *sessionHandler) selection(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !h.apply(c, s, req) {
		return
	}
	h.view(c, http.StatusOK, c.Param("id"), s)
}

type responseRequest struct {
	Category int `json:"category"`
	Item     int `json:"item"`
	Value    int `json:"value"`
}

func (h *sessionHandler) setResponse(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req responseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.SetResponse(req.Category, req.Item, req.Value); err != nil {
		respondServiceError(c, err)
		return
	}
	h.view(c, http.StatusOK, c.Param("id"), s)
}

type subCheckRequest struct {
	Category int  `json:"category"`
	Item     int  `json:"item"`
	Sub      int  `json:"sub"`
	Checked  bool `json:"checked"`
}

func (h *sessionHandler) setSubCheck(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req subCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.SetSubCheck(req.Category, req.Item, req.Sub, req.Checked); err != nil {
		respondServiceError(c, err)
		return
	}
	h.view(c, http.StatusOK, c.Param("id"), s)
}

type commentRequest struct {
	Category int    `json:"category"`
	Item     int    `json:"item"`
	Text     string `json:"text"`
}

func (h *sessionHandler) setComment(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.SetComment(req.Category, req.Item, req.Text); err != nil {
		respondServiceError(c, err)
		return
	}
	h.view(c, http.StatusOK, c.Param("id"), s)
}

func (h *sessionHandler) saveDraft(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	draft, err := s.SaveDraft(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (h *sessionHandler) submit(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	rec, err := s.Submit(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *sessionHandler) close(c *gin.Context) {
	if !h.sessions.Close(c.Param("id")) {
		respondError(c, http.StatusNotFound, string(services.ErrorNotFound), errors.New("session not found"))
		return
	}
	c.Status(http.StatusNoContent)
}
