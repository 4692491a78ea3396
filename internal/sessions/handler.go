package sessions

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"voice-intake/internal/dialogue"
	"voice-intake/internal/forms"
	"voice-intake/internal/questions"
	"voice-intake/internal/shared/server/middleware"
	"voice-intake/internal/shared/server/respond"
	"voice-intake/internal/submissions"
)

const maxTranscriptBytes = 16 << 10

// Submitter hands a completed session off for tracking.
type Submitter interface {
	Submit(ctx context.Context, snap dialogue.Session) (submissions.Receipt, error)
}

// Handler wires HTTP handlers to the registry.
type Handler struct {
	Registry *Registry
	Handoff  Submitter
	Catalog  *forms.Catalog
	Bank     *questions.Bank
}

// NewHandler constructs a Handler.
func NewHandler(reg *Registry, handoff Submitter, catalog *forms.Catalog, bank *questions.Bank) *Handler {
	if catalog == nil {
		catalog = forms.Default()
	}
	if bank == nil {
		bank = questions.Default()
	}
	return &Handler{Registry: reg, Handoff: handoff, Catalog: catalog, Bank: bank}
}

// RegisterRoutes attaches session, catalog and question routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.create)
	rg.GET("/sessions/:id", h.get)
	rg.DELETE("/sessions/:id", h.abandon)
	rg.POST("/sessions/:id/capture", h.startCapture)
	rg.DELETE("/sessions/:id/capture", h.stopCapture)
	rg.POST("/sessions/:id/capture-error", h.captureError)
	rg.POST("/sessions/:id/transcript", h.transcript)
	rg.POST("/sessions/:id/submit", h.submit)
	rg.GET("/forms", h.listForms)
	rg.GET("/questions", h.question)
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}
	o := h.Registry.Create(req.Language)
	snap := o.Snapshot()
	c.Set(middleware.SessionIDKey, snap.ID)
	respond.JSON(c, http.StatusCreated, toResponse(snap))
}

func (h *Handler) get(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}
	respond.OK(c, toResponse(o.Snapshot()))
}

func (h *Handler) abandon(c *gin.Context) {
	h.transition(c, func(o *dialogue.Orchestrator) error { return o.Abandon() })
}

func (h *Handler) startCapture(c *gin.Context) {
	h.transition(c, func(o *dialogue.Orchestrator) error { return o.StartCapture() })
}

func (h *Handler) stopCapture(c *gin.Context) {
	h.transition(c, func(o *dialogue.Orchestrator) error { return o.StopCapture() })
}

func (h *Handler) captureError(c *gin.Context) {
	var req captureErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "message is required", nil)
		return
	}
	h.transition(c, func(o *dialogue.Orchestrator) error {
		return o.OnCaptureError(errors.New(strings.TrimSpace(req.Message)))
	})
}

func (h *Handler) transcript(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxTranscriptBytes)
	var req transcriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	// Remote calls outlive the request; the service timeout bounds them.
	ctx := context.WithoutCancel(c.Request.Context())
	h.transition(c, func(o *dialogue.Orchestrator) error {
		return o.OnTranscript(ctx, req.Text)
	})
}

func (h *Handler) submit(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}
	if h.Handoff == nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "handoff not configured", nil)
		return
	}
	ctx := submissions.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	receipt, err := h.Handoff.Submit(ctx, o.Snapshot())
	if err != nil {
		if errors.Is(err, submissions.ErrNotComplete) {
			respond.Error(c, http.StatusConflict, "precondition_failed", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "submission_failed", "failed to record submission", nil)
		return
	}
	c.Set(middleware.TrackingIDKey, receipt.TrackingID)
	respond.JSON(c, http.StatusCreated, receipt)
}

func (h *Handler) listForms(c *gin.Context) {
	respond.OK(c, gin.H{"forms": h.Catalog.List()})
}

func (h *Handler) question(c *gin.Context) {
	field := strings.TrimSpace(c.Query("field"))
	if field == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "field is required", nil)
		return
	}
	language := c.DefaultQuery("lang", "en")
	respond.OK(c, h.Bank.Resolve(nil, 0, field, language))
}

// transition runs op against the session named in the path and answers with the
// resulting state. Orchestrator errors map onto HTTP statuses.
func (h *Handler) transition(c *gin.Context, op func(*dialogue.Orchestrator) error) {
	o, ok := h.session(c)
	if !ok {
		return
	}
	before := o.Snapshot().Status
	err := op(o)
	snap := o.Snapshot()
	if snap.Status != before {
		c.Set(middleware.StatusTransitionKey, string(before)+"->"+string(snap.Status))
	}
	if err != nil {
		status, code := statusFor(err)
		respond.Error(c, status, code, err.Error(), toResponse(snap))
		return
	}
	respond.OK(c, toResponse(snap))
}

func (h *Handler) session(c *gin.Context) (*dialogue.Orchestrator, bool) {
	id := c.Param("id")
	c.Set(middleware.SessionIDKey, id)
	o, err := h.Registry.Get(id)
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		return nil, false
	}
	return o, true
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, dialogue.ErrPrecondition):
		return http.StatusConflict, "precondition_failed"
	case errors.Is(err, dialogue.ErrAbandoned):
		return http.StatusConflict, "session_abandoned"
	case errors.Is(err, dialogue.ErrSessionFailed):
		return http.StatusConflict, "session_failed"
	case errors.Is(err, dialogue.ErrEmptyTranscript):
		return http.StatusBadRequest, "empty_transcript"
	case errors.Is(err, dialogue.ErrMalformedExtraction):
		return http.StatusBadGateway, "malformed_extraction"
	case errors.Is(err, dialogue.ErrExtractionFailed):
		return http.StatusBadGateway, "extraction_failed"
	case errors.Is(err, dialogue.ErrInterpretationFailed):
		return http.StatusBadGateway, "interpretation_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
