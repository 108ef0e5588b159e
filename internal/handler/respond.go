package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paygate/internal/domain"
)

// respondError writes a taxonomy error. Internal errors are logged with full
// context and surfaced to the caller with only the generic message.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	e := domain.AsError(err)
	if e.Code == domain.CodeInternal && log != nil {
		log.Error("internal error",
			zap.String("path", c.Request.URL.Path),
			zap.Error(e))
	}
	c.JSON(e.Status, gin.H{
		"error":     e,
		"willRetry": e.Retryable,
	})
}
