package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paygate/internal/domain"
	"paygate/internal/middleware"
	"paygate/internal/service"
	"paygate/pkg/relay"
)

// maxLoggedBody caps the request-body snapshot stored in the usage log.
const maxLoggedBody = 64 << 10

// CallHandler is the gateway for metered calls: consume a token, relay the
// request, record the outcome.
type CallHandler struct {
	tokens     *service.TokenService
	usage      *service.UsageService
	dispatcher *relay.Dispatcher
	log        *zap.Logger
}

func NewCallHandler(tokens *service.TokenService, usage *service.UsageService, dispatcher *relay.Dispatcher, log *zap.Logger) *CallHandler {
	return &CallHandler{tokens: tokens, usage: usage, dispatcher: dispatcher, log: log}
}

type callRequest struct {
	TokenHash string            `json:"tokenHash" binding:"required"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Params    map[string]string `json:"params"`
	Body      json.RawMessage   `json:"body"`
}

// Call redeems one token for one proxied call.
// POST /api/v1/apis/:id/call
func (h *CallHandler) Call(c *gin.Context) {
	apiID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, h.log, domain.ErrBadRequest().WithDetail("reason", "invalid api id"))
		return
	}
	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, domain.ErrBadRequest().WithDetail("reason", err.Error()))
		return
	}
	developer := middleware.GetDeveloperAddress(c)

	meta := service.CallMeta{
		RequestID: middleware.GetRequestID(c),
		Method:    req.Method,
		Headers:   compactJSON(req.Headers),
		Params:    compactJSON(req.Params),
		Body:      truncate(string(req.Body), maxLoggedBody),
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	token, api, usageLog, err := h.tokens.Consume(req.TokenHash, uint(apiID), developer, meta)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	middleware.TokensConsumed.Inc()

	out := h.dispatcher.Relay(c.Request.Context(), relay.Route{
		ApiID:    api.ID,
		Mode:     api.RelayMode(),
		Endpoint: api.Endpoint,
	}, relay.CallSpec{
		Method:  req.Method,
		Headers: req.Headers,
		Params:  req.Params,
		Body:    req.Body,
	})

	// Statistics are best-effort; the token is spent and the upstream call
	// already happened, so nothing below fails the response.
	h.usage.Finalize(usageLog.ID, api.ID, api.ProviderID, out)

	meta2 := gin.H{
		"apiId":         api.ID,
		"provider":      api.ProviderID,
		"requestId":     out.RequestID,
		"responseTime":  out.ElapsedMs,
		"tokenConsumed": true,
		"tokenHash":     token.TokenHash,
	}

	switch {
	case out.Unreachable:
		middleware.RelayOutcomes.WithLabelValues("unreachable").Inc()
		e := domain.ErrUpstreamUnreachable().WithDetail("reason", out.ErrMessage)
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"status":  0,
			"error":   e,
			"meta":    meta2,
		})
	case !out.Success():
		middleware.RelayOutcomes.WithLabelValues("upstream_error").Inc()
		resp := gin.H{
			"success": false,
			"status":  out.Status,
			"error":   domain.ErrUpstreamError().WithDetail("upstream_status", out.Status),
			"meta":    meta2,
		}
		attachBody(resp, out)
		c.JSON(http.StatusBadGateway, resp)
	default:
		middleware.RelayOutcomes.WithLabelValues("success").Inc()
		resp := gin.H{
			"success": true,
			"status":  out.Status,
			"meta":    meta2,
		}
		attachBody(resp, out)
		c.JSON(http.StatusOK, resp)
	}
}

// attachBody exposes the upstream body as parsed JSON when possible, raw text
// otherwise.
func attachBody(resp gin.H, out *relay.Outcome) {
	if data := out.JSONBody(); data != nil {
		resp["data"] = data
		return
	}
	resp["rawText"] = string(out.Body)
}

func compactJSON(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
