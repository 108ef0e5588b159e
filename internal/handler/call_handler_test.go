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
	"gorm.io/gorm"

	"paygate/internal/domain"
	"paygate/internal/middleware"
	"paygate/internal/models"
	"paygate/internal/service"
	"paygate/pkg/relay"
)

type stubTokenStore struct {
	token    *models.Token
	consumed int
}

func (s *stubTokenStore) GetByHash(hash string) (*models.Token, error) {
	if s.token == nil || s.token.TokenHash != hash {
		return nil, gorm.ErrRecordNotFound
	}
	return s.token, nil
}

func (s *stubTokenStore) Consume(t *models.Token, usage *models.UsageLog) error {
	s.consumed++
	usage.ID = 77
	return nil
}

type stubApiStore struct {
	api *models.Api
}

func (s *stubApiStore) GetWithProvider(id uint) (*models.Api, error) {
	return s.api, nil
}

type stubUsageStore struct {
	finalized bool
	status    int
	success   bool
}

func (s *stubUsageStore) Finalize(id uint, status int, elapsedMs, size int64, success bool, errMsg string) error {
	s.finalized = true
	s.status = status
	s.success = success
	return nil
}

type stubUsageApiStore struct{ calls int }

func (s *stubUsageApiStore) RecordCall(id uint, elapsedMs int64) error {
	s.calls++
	return nil
}

type stubUsageProviderStore struct{ calls int }

func (s *stubUsageProviderStore) IncrementCalls(id uint) error {
	s.calls++
	return nil
}

type callFixture struct {
	tokens    *stubTokenStore
	usage     *stubUsageStore
	apiCalls  *stubUsageApiStore
	provCalls *stubUsageProviderStore
	engine    *gin.Engine
}

func newCallFixture(t *testing.T, endpoint string) *callFixture {
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
		ID:            7,
		ProviderID:    3,
		Endpoint:      endpoint,
		IsDirectRelay: true,
		Active:        true,
		Provider:      models.Provider{ID: 3, Active: true},
	}}
	usage := &stubUsageStore{}
	apiCalls := &stubUsageApiStore{}
	provCalls := &stubUsageProviderStore{}

	tokenSvc := service.NewTokenService(tokens, apis, zap.NewNop())
	usageSvc := service.NewUsageService(usage, apiCalls, provCalls, zap.NewNop())
	dispatcher := relay.NewDispatcher("", "", relay.Options{Timeout: 5 * time.Second, BreakerFailures: 100})
	h := NewCallHandler(tokenSvc, usageSvc, dispatcher, zap.NewNop())

	engine := gin.New()
	engine.POST("/api/v1/apis/:id/call", middleware.RequireDeveloperAddress(), h.Call)
	return &callFixture{tokens: tokens, usage: usage, apiCalls: apiCalls, provCalls: provCalls, engine: engine}
}

func doCall(engine *gin.Engine, developer string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/apis/7/call", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if developer != "" {
		req.Header.Set(domain.HeaderDeveloperAddress, developer)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestCall_SuccessRedeemsTokenAndRelays(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"weather":"sunny"}`))
	}))
	defer upstream.Close()

	fx := newCallFixture(t, upstream.URL)
	w := doCall(fx.engine, "0xdev", gin.H{"tokenHash": "tkn_abc", "method": "GET"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success bool            `json:"success"`
		Status  int             `json:"status"`
		Data    json.RawMessage `json:"data"`
		Meta    struct {
			TokenConsumed bool   `json:"tokenConsumed"`
			TokenHash     string `json:"tokenHash"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Status != 200 {
		t.Errorf("success=%v status=%d", resp.Success, resp.Status)
	}
	if string(resp.Data) != `{"weather":"sunny"}` {
		t.Errorf("data = %s", resp.Data)
	}
	if !resp.Meta.TokenConsumed || resp.Meta.TokenHash != "tkn_abc" {
		t.Errorf("meta = %+v", resp.Meta)
	}
	if fx.tokens.consumed != 1 {
		t.Errorf("token consumed %d times", fx.tokens.consumed)
	}
	if !fx.usage.finalized || !fx.usage.success {
		t.Errorf("usage not finalized: %+v", fx.usage)
	}
	if fx.apiCalls.calls != 1 || fx.provCalls.calls != 1 {
		t.Errorf("aggregates: api=%d provider=%d", fx.apiCalls.calls, fx.provCalls.calls)
	}
}

func TestCall_UsedTokenIsGoneAndUpstreamUntouched(t *testing.T) {
	var upstreamHits int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamHits++
	}))
	defer upstream.Close()

	fx := newCallFixture(t, upstream.URL)
	usedAt := time.Now().UTC()
	fx.tokens.token.Used = true
	fx.tokens.token.UsedAt = &usedAt

	w := doCall(fx.engine, "0xdev", gin.H{"tokenHash": "tkn_abc", "method": "GET"})

	if w.Code != http.StatusGone {
		t.Fatalf("status = %d, want 410", w.Code)
	}
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != domain.CodeAlreadyUsed {
		t.Errorf("code = %s", resp.Error.Code)
	}
	if upstreamHits != 0 {
		t.Error("rejected call must never reach the upstream")
	}
	if fx.usage.finalized {
		t.Error("no usage log for a rejected call")
	}
}

func TestCall_UnreachableUpstreamStillSpendsToken(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close() // nothing listening

	fx := newCallFixture(t, upstream.URL)
	w := doCall(fx.engine, "0xdev", gin.H{"tokenHash": "tkn_abc", "method": "GET"})

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	var resp struct {
		Success bool `json:"success"`
		Status  int  `json:"status"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Success || resp.Status != 0 {
		t.Errorf("success=%v status=%d, want false/0", resp.Success, resp.Status)
	}
	if resp.Error.Code != domain.CodeUpstreamUnreachable {
		t.Errorf("code = %s", resp.Error.Code)
	}
	// The token is spent regardless; the failed outcome is still recorded.
	if fx.tokens.consumed != 1 {
		t.Errorf("token consumed %d times", fx.tokens.consumed)
	}
	if !fx.usage.finalized || fx.usage.success {
		t.Errorf("usage not finalized as failure: %+v", fx.usage)
	}
}

func TestCall_MissingDeveloperHeader(t *testing.T) {
	fx := newCallFixture(t, "http://127.0.0.1:0")
	w := doCall(fx.engine, "", gin.H{"tokenHash": "tkn_abc"})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if fx.tokens.consumed != 0 {
		t.Error("no token may be consumed without a developer identity")
	}
}
