package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paygate/internal/domain"
	"paygate/internal/service"
)

type TokenHandler struct {
	tokens *service.TokenService
	log    *zap.Logger
}

func NewTokenHandler(tokens *service.TokenService, log *zap.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, log: log}
}

// Validate is the read-only precheck: runs the exact consume validation chain
// without spending the token.
// POST /api/v1/tokens/validate
func (h *TokenHandler) Validate(c *gin.Context) {
	var req struct {
		TokenHash        string `json:"tokenHash" binding:"required"`
		ApiID            uint   `json:"apiId" binding:"required"`
		DeveloperAddress string `json:"developerAddress" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, domain.ErrBadRequest().WithDetail("reason", err.Error()))
		return
	}

	token, api, err := h.tokens.Validate(req.TokenHash, req.ApiID, req.DeveloperAddress)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"token": gin.H{
			"tokenHash": token.TokenHash,
			"apiId":     token.ApiID,
			"expiresAt": token.ExpiresAt,
			"notBefore": token.NotBefore,
		},
		"api": gin.H{
			"id":   api.ID,
			"name": api.Name,
		},
	})
}
