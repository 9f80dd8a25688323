package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/soaringjerry/Stride/internal/middleware"
	"github.com/soaringjerry/Stride/internal/services"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps is everything the HTTP layer needs. Store may be nil, in which
// case /health does not probe storage.
type Deps struct {
	Checklist *services.Checklist
	Targets   *services.TargetService
	Drafts    *services.DraftService
	Records   *services.RecordService
	Goals     *services.GoalService
	Sessions  *services.SessionManager
	AI        *services.AIService
	Audit     *services.AuditLog
	Store     Pinger
	Logger    *zap.Logger

	CORSOrigins []string
	Commit      string
	BuildTime   string
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Logger))
	if len(d.CORSOrigins) > 0 {
		r.Use(middleware.CORS(d.CORSOrigins))
	}
	r.Use(middleware.NoStore(), middleware.SecureHeaders())

	meta := &metaHandler{store: d.Store, commit: d.Commit, buildTime: d.BuildTime, checklist: d.Checklist}
	r.GET("/health", meta.health)
	r.GET("/version", meta.version)

	targets := &targetHandler{svc: d.Targets}
	evals := &evaluationHandler{drafts: d.Drafts, records: d.Records, checklist: d.Checklist, audit: d.Audit}
	goals := &goalHandler{svc: d.Goals}
	exports := &exportHandler{targets: d.Targets, records: d.Records, checklist: d.Checklist}
	ai := &aiHandler{ai: d.AI, targets: d.Targets, sessions: d.Sessions, checklist: d.Checklist}
	sessions := &sessionHandler{sessions: d.Sessions, targets: d.Targets, drafts: d.Drafts}

	api := r.Group("/api")
	{
		api.GET("/checklist", meta.checklistInfo)

		api.GET("/targets", targets.list)
		api.POST("/targets", targets.register)
		api.GET("/targets/:id", targets.get)
		api.PUT("/targets/:id", targets.update)
		api.DELETE("/targets/:id", targets.delete)

		api.PUT("/drafts", evals.saveDraft)
		api.GET("/drafts", evals.listDrafts)
		api.GET("/drafts/:id", evals.getDraft)
		api.DELETE("/drafts/:id", evals.deleteDraft)
		api.POST("/drafts/:id/finalize", evals.finalizeDraft)

		api.POST("/records", evals.saveRecord)
		api.GET("/records", evals.listRecords)
		api.GET("/records/:id", evals.getRecord)
		api.PUT("/records/:id", evals.updateRecord)
		api.DELETE("/records/:id", evals.deleteRecord)
		api.GET("/audit", evals.auditTrail)

		api.POST("/scores/preview", evals.previewScores)

		api.PUT("/goals", goals.save)
		api.GET("/goals", goals.list)
		api.DELETE("/goals/:id", goals.delete)

		api.GET("/export/targets.csv", exports.targetsCSV)
		api.GET("/export/records.csv", exports.recordsCSV)
		api.GET("/export/detail.csv", exports.detailCSV)
		api.GET("/export/records.xlsx", exports.recordsXLSX)

		api.POST("/ai/observation", ai.observation)
		api.POST("/ai/considerations", ai.considerations)
		api.POST("/ai/goals", ai.goals)
		api.POST("/ai/differences", ai.differences)

		api.POST("/sessions", sessions.open)
		api.GET("/sessions/:id", sessions.get)
		api.PUT("/sessions/:id/selection", sessions.selection)
		api.PUT("/sessions/:id/responses", sessions.setResponse)
		api.PUT("/sessions/:id/subchecks", sessions.setSubCheck)
		api.PUT("/sessions/:id/comments", sessions.setComment)
		api.POST("/sessions/:id/draft", sessions.saveDraft)
		api.POST("/sessions/:id/submit", sessions.submit)
		api.DELETE("/sessions/:id", sessions.close)
	}

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, string(services.ErrorNotFound), errNoRoute)
	})
	return r
}
