package handler

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paygate/internal/domain"
	"paygate/internal/middleware"
	"paygate/internal/repository"
	"paygate/internal/service"
)

type PaymentHandler struct {
	payments    *service.PaymentService
	paymentRepo *repository.PaymentRepository
	tokenRepo   *repository.TokenRepository
	log         *zap.Logger
}

func NewPaymentHandler(payments *service.PaymentService, paymentRepo *repository.PaymentRepository, tokenRepo *repository.TokenRepository, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, paymentRepo: paymentRepo, tokenRepo: tokenRepo, log: log}
}

// Process verifies a transaction and issues tokens.
// POST /api/v1/payments/process
func (h *PaymentHandler) Process(c *gin.Context) {
	var req struct {
		TransactionHash  string `json:"transactionHash" binding:"required"`
		ApiID            uint   `json:"apiId" binding:"required"`
		DeveloperAddress string `json:"developerAddress" binding:"required"`
		PaymentAmount    string `json:"paymentAmount" binding:"required"`
		Currency         string `json:"currency"`
		Network          string `json:"network" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, domain.ErrBadRequest().WithDetail("reason", err.Error()))
		return
	}
	if !common.IsHexAddress(req.DeveloperAddress) {
		respondError(c, h.log, domain.ErrBadRequest().WithDetail("reason", "developerAddress is not a valid address"))
		return
	}
	if req.Currency == "" {
		req.Currency = "ETH"
	}

	result, err := h.payments.Process(c.Request.Context(), service.ProcessRequest{
		TxHash:           req.TransactionHash,
		ApiID:            req.ApiID,
		DeveloperAddress: req.DeveloperAddress,
		PaymentAmount:    req.PaymentAmount,
		Currency:         req.Currency,
		Network:          req.Network,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	middleware.PaymentsProcessed.Inc()

	c.JSON(http.StatusCreated, gin.H{
		"payment":      result.Payment,
		"tokens":       result.Tokens,
		"feeBreakdown": result.Breakdown,
		"settlement":   result.Settlement,
	})
}

// Get returns a stored payment with its issued-token counts; resubmitting
// callers use this to recover their original issuance.
// GET /api/v1/payments/:txHash
func (h *PaymentHandler) Get(c *gin.Context) {
	txHash := c.Param("txHash")
	payment, err := h.paymentRepo.GetByTxHash(txHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, h.log, domain.ErrTxNotFound().WithDetail("tx_hash", txHash))
			return
		}
		respondError(c, h.log, err)
		return
	}
	unused, err := h.tokenRepo.CountUnused(payment.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment":      payment,
		"tokensIssued": payment.TokensIssued,
		"tokensUnused": unused,
	})
}
