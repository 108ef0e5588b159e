package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paygate/internal/domain"
	"paygate/internal/models"
	"paygate/internal/service"
)

func newValidateFixture(t *testing.T) (*stubTokenStore, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	now := time.Now().UTC()

	tokens := &stubTokenStore{token: &models.Token{
		ID:               1,
		ApiID:            7,
		ProviderID:       3,
		DeveloperAddress: "0xdev",
		TokenHash:        "tkn_abc",
		NotBefore:        now.Add(-time.Minute),
		ExpiresAt:        now.Add(time.Hour),
	}}
	apis := &stubApiStore{api: &models.Api{
		ID:       7,
		Name:     "weather",
		Active:   true,
		Provider: models.Provider{ID: 3, Active: true},
	}}

	h := NewTokenHandler(service.NewTokenService(tokens, apis, zap.NewNop()), zap.NewNop())
	engine := gin.New()
	engine.POST("/api/v1/tokens/validate", h.Validate)
	return tokens, engine
}

func doValidate(engine *gin.Engine, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tokens/validate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestValidate_OKWithoutSpending(t *testing.T) {
	tokens, engine := newValidateFixture(t)
	w := doValidate(engine, gin.H{"tokenHash": "tkn_abc", "apiId": 7, "developerAddress": "0xDEV"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Valid bool `json:"valid"`
		Token struct {
			TokenHash string `json:"tokenHash"`
			ApiID     uint   `json:"apiId"`
		} `json:"token"`
		Api struct {
			Name string `json:"name"`
		} `json:"api"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Valid || resp.Token.TokenHash != "tkn_abc" || resp.Token.ApiID != 7 || resp.Api.Name != "weather" {
		t.Errorf("resp = %+v", resp)
	}
	if tokens.consumed != 0 {
		t.Error("validate must not spend the token")
	}
}

func TestValidate_ExpiredTokenMapsToGone(t *testing.T) {
	tokens, engine := newValidateFixture(t)
	tokens.token.ExpiresAt = time.Now().UTC().Add(-time.Second)

	w := doValidate(engine, gin.H{"tokenHash": "tkn_abc", "apiId": 7, "developerAddress": "0xdev"})
	if w.Code != http.StatusGone {
		t.Fatalf("status = %d, want 410", w.Code)
	}
	var resp struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
		WillRetry bool `json:"willRetry"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != domain.CodeTokenExpired {
		t.Errorf("code = %s", resp.Error.Code)
	}
	if resp.WillRetry {
		t.Error("expired tokens are not retryable")
	}
	if resp.Error.Details["expired_at"] == nil {
		t.Error("expired error should carry expired_at")
	}
}

func TestValidate_MissingFields(t *testing.T) {
	_, engine := newValidateFixture(t)
	w := doValidate(engine, gin.H{"tokenHash": "tkn_abc"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
