package submissions

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"voice-intake/internal/shared/server/middleware"
	"voice-intake/internal/shared/server/respond"
)

// Handler exposes tracking lookups.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the tracking route to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/track/:trackingId", h.track)
}

type trackResponse struct {
	Submission
	IssuedOn string `json:"issuedOn,omitempty"`
}

func (h *Handler) track(c *gin.Context) {
	id := c.Param("trackingId")
	c.Set(middleware.TrackingIDKey, id)
	sub, err := h.Svc.Track(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidTrackingID):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "tracking id not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal", "failed to load submission", nil)
		}
		return
	}
	resp := trackResponse{Submission: sub}
	if day, err := TrackingDate(sub.TrackingID); err == nil {
		resp.IssuedOn = day.Format("2006-01-02")
	}
	respond.OK(c, resp)
}
