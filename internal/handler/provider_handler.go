package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paygate/internal/middleware"
	"paygate/internal/models"
	"paygate/internal/repository"
	"paygate/internal/service"
)

// ProviderHandler is the dashboard surface: registration, login, and API
// listing management.
type ProviderHandler struct {
	providers    *service.ProviderService
	providerRepo *repository.ProviderRepository
	apiRepo      *repository.ApiRepository
	usageRepo    *repository.UsageRepository
	log          *zap.Logger
}

func NewProviderHandler(providers *service.ProviderService, providerRepo *repository.ProviderRepository, apiRepo *repository.ApiRepository, usageRepo *repository.UsageRepository, log *zap.Logger) *ProviderHandler {
	return &ProviderHandler{
		providers:    providers,
		providerRepo: providerRepo,
		apiRepo:      apiRepo,
		usageRepo:    usageRepo,
		log:          log,
	}
}

// Register creates a provider account.
// POST /api/v1/providers/register
func (h *ProviderHandler) Register(c *gin.Context) {
	var req struct {
		Name          string `json:"name" binding:"required"`
		Email         string `json:"email" binding:"required,email"`
		Password      string `json:"password" binding:"required,min=8"`
		WalletAddress string `json:"walletAddress" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	provider, token, err := h.providers.Register(req.Name, req.Email, req.Password, req.WalletAddress)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidWallet):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.log.Error("provider register", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"provider": provider, "token": token})
}

// Login authenticates a provider.
// POST /api/v1/providers/login
func (h *ProviderHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	provider, token, err := h.providers.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCreds) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("provider login", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": provider, "token": token})
}

// CreateApi lists a new endpoint for the authenticated provider.
// POST /api/v1/apis
func (h *ProviderHandler) CreateApi(c *gin.Context) {
	var req struct {
		Name             string `json:"name" binding:"required"`
		Description      string `json:"description"`
		PricePerCall     string `json:"pricePerCall" binding:"required"`
		Currency         string `json:"currency"`
		Endpoint         string `json:"endpoint" binding:"required,url"`
		InternalEndpoint string `json:"internalEndpoint"`
		FallbackEndpoint string `json:"fallbackEndpoint"`
		IsDirectRelay    bool   `json:"isDirectRelay"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Currency == "" {
		req.Currency = "ETH"
	}
	api := &models.Api{
		Name:             req.Name,
		Description:      req.Description,
		PricePerCall:     req.PricePerCall,
		Currency:         req.Currency,
		Endpoint:         req.Endpoint,
		InternalEndpoint: req.InternalEndpoint,
		FallbackEndpoint: req.FallbackEndpoint,
		IsDirectRelay:    req.IsDirectRelay,
	}
	if err := h.providers.CreateApi(middleware.GetProviderID(c), api); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"api": api})
}

// ListApis returns the provider's own listings, hidden endpoints included.
// GET /api/v1/apis
func (h *ProviderHandler) ListApis(c *gin.Context) {
	apis, err := h.apiRepo.ListByProvider(middleware.GetProviderID(c))
	if err != nil {
		h.log.Error("list apis", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list apis"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"apis": apis})
}

// DeactivateApi soft-disables a listing. Rows stay; unconsumed tokens keep
// their audit trail but new calls are refused.
// PATCH /api/v1/apis/:id/deactivate
func (h *ProviderHandler) DeactivateApi(c *gin.Context) {
	apiID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid api id"})
		return
	}
	if err := h.apiRepo.Deactivate(uint(apiID), middleware.GetProviderID(c)); err != nil {
		h.log.Error("deactivate api", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deactivated": true})
}

// ApiStats returns the rolling aggregates plus recent usage for one listing.
// GET /api/v1/apis/:id/stats
func (h *ProviderHandler) ApiStats(c *gin.Context) {
	apiID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid api id"})
		return
	}
	api, err := h.apiRepo.GetByID(uint(apiID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "api not found"})
			return
		}
		h.log.Error("api stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load api"})
		return
	}
	if api.ProviderID != middleware.GetProviderID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your api"})
		return
	}
	recent, err := h.usageRepo.ListByApi(api.ID, 50)
	if err != nil {
		h.log.Error("api usage", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load usage"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"api": gin.H{
			"id":                api.ID,
			"name":              api.Name,
			"totalCalls":        api.TotalCalls,
			"totalRevenue":      api.TotalRevenue,
			"avgResponseTimeMs": api.AvgResponseTime,
			"active":            api.Active,
		},
		"recentUsage": recent,
	})
}

// Me returns the authenticated provider's profile and lifetime earnings.
// GET /api/v1/providers/me
func (h *ProviderHandler) Me(c *gin.Context) {
	provider, err := h.providerRepo.GetByID(middleware.GetProviderID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "provider not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": provider})
}
