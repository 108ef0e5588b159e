package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paygate/internal/domain"
	"paygate/internal/repository"
	"paygate/pkg/relay"
)

// InternalRelayHandler is the second hop of a double relay. It is only
// reachable through the shared-secret middleware; by the time it runs, the
// caller is trusted.
type InternalRelayHandler struct {
	apis       *repository.ApiRepository
	dispatcher *relay.Dispatcher
	log        *zap.Logger
}

func NewInternalRelayHandler(apis *repository.ApiRepository, dispatcher *relay.Dispatcher, log *zap.Logger) *InternalRelayHandler {
	return &InternalRelayHandler{apis: apis, dispatcher: dispatcher, log: log}
}

// Relay calls the provider's hidden endpoint, retrying once against the
// fallback on a non-success result, and streams the upstream status and body
// back to the first hop.
// POST /internal/relay
func (h *InternalRelayHandler) Relay(c *gin.Context) {
	var req relay.HopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, domain.ErrBadRequest().WithDetail("reason", err.Error()))
		return
	}

	api, err := h.apis.GetByID(req.ApiID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, h.log, domain.ErrApiNotFound().WithDetail("api_id", req.ApiID))
			return
		}
		respondError(c, h.log, err)
		return
	}
	if api.InternalEndpoint == "" {
		respondError(c, h.log, domain.ErrUpstreamError().WithDetail("reason", "api has no hidden endpoint configured"))
		return
	}

	out := h.dispatcher.Forward(c.Request.Context(), api.InternalEndpoint, api.FallbackEndpoint, req.Spec)
	if out.Unreachable {
		h.log.Warn("hidden upstream unreachable",
			zap.Uint("api_id", api.ID),
			zap.String("error", out.ErrMessage))
		c.Header(relay.MarkerUnreachable, "1")
		respondError(c, h.log, domain.ErrUpstreamUnreachable().WithDetail("reason", out.ErrMessage))
		return
	}

	contentType := out.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(out.Status, contentType, out.Body)
}
