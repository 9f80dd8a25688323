package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/Stride/internal/models"
)

// DefaultAutosaveInterval is how often an active session checkpoints
// itself into a draft.
const DefaultAutosaveInterval = 5 * time.Minute

type SessionOptions struct {
	AutosaveInterval time.Duration
	// AfterAutosave is called after every autosave attempt that reached
	// the draft store.
	AfterAutosave func(*models.EvaluationDraft, error)
}

// Session is the in-memory working state of one evaluation: the selected
// target, date and evaluator plus the answers entered so far.
type Session struct {
	checklist *Checklist
	drafts    *DraftService
	records   *RecordService
	logger    *zap.Logger
	opts      SessionOptions
	newTicker func(time.Duration) (<-chan time.Time, func())

	mu         sync.Mutex
	targetID   string
	targetName string
	date       string
	evaluator  models.Evaluator
	responses  models.ResponseSet
	generation uint64
	aiResults  map[string]any
	stopSave   context.CancelFunc
	saveDone   chan struct{}
	closed     bool
}

func NewSession(checklist *Checklist, drafts *DraftService, records *RecordService, logger *zap.Logger, opts SessionOptions) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.AutosaveInterval <= 0 {
		opts.AutosaveInterval = DefaultAutosaveInterval
	}
	return &Session{
		checklist: checklist,
		drafts:    drafts,
		records:   records,
		logger:    logger,
		opts:      opts,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
		evaluator: models.EvaluatorStaff,
		date:      time.Now().Format("2006-01-02"),
		responses: models.NewResponseSet(),
		aiResults: map[string]any{},
	}
}

// SessionState is a read-only snapshot of a session.
type SessionState struct {
	TargetID   string             `json:"targetId"`
	TargetName string             `json:"targetName"`
	Date       string             `json:"evaluationDate"`
	Evaluator  models.Evaluator   `json:"evaluator"`
	Responses  models.ResponseSet `json:"responses"`
	Generation uint64             `json:"generation"`
	AIResults  map[string]any     `json:"aiResults,omitempty"`
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() SessionState {
	ai := make(map[string]any, len(s.aiResults))
	for k, v := range s.aiResults {
		ai[k] = v
	}
	return SessionState{
		TargetID:   s.targetID,
		TargetName: s.targetName,
		Date:       s.date,
		Evaluator:  s.evaluator,
		Responses:  s.responses.Clone(),
		Generation: s.generation,
		AIResults:  ai,
	}
}

// advanceLocked starts a new generation. AI results belong to the old
// selection and are dropped.
func (s *Session) advanceLocked() {
	s.generation++
	s.aiResults = map[string]any{}
}

// SelectTarget switches the session to another target. Entered answers
// are discarded and the autosave timer is restarted for the new target.
func (s *Session) SelectTarget(id, name string) {
	s.reselect(func() {
		s.targetID = strings.TrimSpace(id)
		s.targetName = name
		s.responses = models.NewResponseSet()
	})
}

// SetDate changes the evaluation date and clears entered answers.
func (s *Session) SetDate(date string) {
	s.reselect(func() {
		s.date = strings.TrimSpace(date)
		s.responses = models.NewResponseSet()
	})
}

// SetEvaluator switches the active rating source. Answers are keyed by
// evaluator, so other sources' answers are kept.
func (s *Session) SetEvaluator(ev models.Evaluator) error {
	if _, err := models.ParseEvaluator(string(ev)); err != nil {
		return NewInvalidError(err.Error())
	}
	s.reselect(func() { s.evaluator = ev })
	return nil
}

// reselect applies a selection change with the autosave loop stopped,
// starts a new generation and restarts the loop when a target is active.
func (s *Session) reselect(change func()) {
	s.stopAutosave()
	s.mu.Lock()
	change()
	s.advanceLocked()
	active := s.targetID != ""
	s.mu.Unlock()
	if active {
		s.Start()
	}
}

// SetResponse records the active evaluator's answer for one item. raw 0
// clears the answer.
func (s *Session) SetResponse(category, item, raw int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.ResponseKey{Evaluator: s.evaluator, Category: category, Item: item}
	if err := s.checklist.CheckResponse(key, raw); err != nil {
		return NewInvalidError(err.Error())
	}
	if raw == 0 {
		delete(s.responses.Values, key)
		return nil
	}
	s.responses.Values[key] = raw
	return nil
}

func (s *Session) SetSubCheck(category, item, sub int, checked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.SubCheckKey{ResponseKey: models.ResponseKey{Evaluator: s.evaluator, Category: category, Item: item}, Sub: sub}
	if err := s.checklist.CheckSubCheck(key); err != nil {
		return NewInvalidError(err.Error())
	}
	if !checked {
		delete(s.responses.SubChecks, key)
		return nil
	}
	s.responses.SubChecks[key] = true
	return nil
}

func (s *Session) SetComment(category, item int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.ResponseKey{Evaluator: s.evaluator, Category: category, Item: item}
	if _, ok := s.checklist.Item(category, item); !ok {
		return NewInvalidError("no item at " + key.String())
	}
	if strings.TrimSpace(text) == "" {
		delete(s.responses.Comments, key)
		return nil
	}
	s.responses.Comments[key] = text
	return nil
}

// Load replaces the entered answers, e.g. when continuing a draft.
func (s *Session) Load(rs models.ResponseSet) error {
	rs = mergeResponses(models.NewResponseSet(), rs)
	if err := s.checklist.CheckResponses(rs); err != nil {
		return NewInvalidError(err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = rs
	return nil
}

// Completion is the active evaluator's completion percentage.
func (s *Session) Completion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CompletionRate(s.responses, s.checklist, s.evaluator)
}

func (s *Session) Progress() []CategoryProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Progress(s.responses, s.checklist, s.evaluator)
}

// Existing reports a record and/or draft already stored for the active
// (target, date, evaluator). Either may be nil.
type Existing struct {
	Record *models.EvaluationRecord `json:"record,omitempty"`
	Draft  *models.EvaluationDraft  `json:"draft,omitempty"`
}

func (s *Session) Existing(ctx context.Context) (Existing, error) {
	st := s.State()
	var out Existing
	if st.TargetID == "" {
		return out, nil
	}
	rec, err := s.records.FindRecord(ctx, st.TargetID, st.Date, st.Evaluator)
	if err != nil && !IsCode(err, ErrorNotFound) {
		return out, err
	}
	out.Record = rec
	draft, err := s.drafts.FindDraft(ctx, st.TargetID, st.Date, st.Evaluator)
	if err != nil && !IsCode(err, ErrorNotFound) {
		return out, err
	}
	out.Draft = draft
	return out, nil
}

func (s *Session) input(st SessionState) EvaluationInput {
	return EvaluationInput{
		TargetID:       st.TargetID,
		TargetName:     st.TargetName,
		EvaluationDate: st.Date,
		Evaluator:      st.Evaluator,
		Responses:      st.Responses,
	}
}

// SaveDraft checkpoints the session. The session state is never modified,
// so a failed save loses nothing.
func (s *Session) SaveDraft(ctx context.Context) (*models.EvaluationDraft, error) {
	st := s.State()
	if st.TargetID == "" {
		return nil, NewInvalidError("no target selected")
	}
	return s.drafts.SaveDraft(ctx, s.input(st))
}

// Submit finalizes the evaluation. When a draft exists for the triple it
// is refreshed and finalized; otherwise the record is saved directly.
// On success the entered answers are cleared so autosave cannot bring
// the finalized draft back.
func (s *Session) Submit(ctx context.Context) (*models.EvaluationRecord, error) {
	s.stopAutosave()
	st := s.State()
	if st.TargetID == "" {
		return nil, NewInvalidError("no target selected")
	}
	defer s.Start()

	rec, err := s.submit(ctx, st)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.generation == st.Generation {
		s.responses = models.NewResponseSet()
		s.advanceLocked()
	}
	s.mu.Unlock()
	return rec, nil
}

func (s *Session) submit(ctx context.Context, st SessionState) (*models.EvaluationRecord, error) {
	existing, err := s.drafts.FindDraft(ctx, st.TargetID, st.Date, st.Evaluator)
	if err != nil && !IsCode(err, ErrorNotFound) {
		return nil, err
	}
	if existing == nil {
		return s.records.SaveRecord(ctx, s.input(st))
	}
	draft, err := s.drafts.SaveDraft(ctx, s.input(st))
	if err != nil {
		return nil, err
	}
	return s.drafts.FinalizeDraft(ctx, draft.ID)
}

// Generation identifies the current (target, date, evaluator) selection.
// Asynchronous work captures it before starting and passes it back to
// ApplyIfCurrent when done.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// ApplyIfCurrent runs fn only if the session has not moved on since gen
// was captured. It reports whether fn ran.
func (s *Session) ApplyIfCurrent(gen uint64, fn func()) bool {
	s.mu.Lock()
	current := s.generation == gen
	s.mu.Unlock()
	if !current {
		return false
	}
	fn()
	return true
}

// StoreAIResult keeps an AI result under kind if the session is still at
// generation gen. It reports whether the result was kept.
func (s *Session) StoreAIResult(gen uint64, kind string, result any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.aiResults[kind] = result
	return true
}

// Start launches the autosave loop if it is not already running.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopSave != nil || s.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.stopSave = cancel
	s.saveDone = done
	ticks, stop := s.newTicker(s.opts.AutosaveInterval)
	go s.autosaveLoop(ctx, ticks, stop, done)
}

// Close stops the autosave loop for good and waits for an in-flight save.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stopAutosave()
}

func (s *Session) stopAutosave() {
	s.mu.Lock()
	cancel, done := s.stopSave, s.saveDone
	s.stopSave, s.saveDone = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Session) autosaveLoop(ctx context.Context, ticks <-chan time.Time, stop func(), done chan struct{}) {
	defer close(done)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			s.autosave(ctx)
		}
	}
}

func (s *Session) autosave(ctx context.Context) {
	s.mu.Lock()
	ready := s.targetID != "" && s.responses.Answered(s.evaluator) > 0
	st := s.stateLocked()
	s.mu.Unlock()
	if !ready {
		return
	}
	draft, err := s.drafts.SaveDraft(ctx, s.input(st))
	if err != nil {
		s.logger.Warn("autosave failed", zap.String("target_id", st.TargetID), zap.Error(err))
	} else {
		s.logger.Debug("autosaved", zap.String("draft_id", draft.ID), zap.Int("completion_rate", draft.CompletionRate))
	}
	if s.opts.AfterAutosave != nil {
		s.opts.AfterAutosave(draft, err)
	}
}
