package service

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paygate/internal/domain"
	"paygate/internal/models"
	"paygate/internal/repository"
)

type tokenStore interface {
	GetByHash(hash string) (*models.Token, error)
	Consume(t *models.Token, usage *models.UsageLog) error
}

type tokenApiStore interface {
	GetWithProvider(id uint) (*models.Api, error)
}

// CallMeta is the request context snapshot written into the placeholder
// usage log.
type CallMeta struct {
	RequestID string
	Method    string
	Headers   string
	Params    string
	Body      string
	ClientIP  string
	UserAgent string
}

// TokenService is the single-use token ledger. Consume is the only way a
// token's used flag ever flips.
type TokenService struct {
	tokens tokenStore
	apis   tokenApiStore
	log    *zap.Logger
}

func NewTokenService(tokens tokenStore, apis tokenApiStore, log *zap.Logger) *TokenService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenService{tokens: tokens, apis: apis, log: log}
}

// check runs the full validation chain without side effects. Each failure is
// a distinct user-visible class, in this exact order: exists → not used →
// not expired → api match → developer match → api and provider active.
func (s *TokenService) check(tokenHash string, apiID uint, developerAddress string) (*models.Token, *models.Api, error) {
	token, err := s.tokens.GetByHash(tokenHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.ErrTokenNotFound()
		}
		return nil, nil, domain.Wrap(domain.ErrInternal(), err)
	}
	if token.Used {
		e := domain.ErrAlreadyUsed()
		if token.UsedAt != nil {
			e.WithDetail("used_at", token.UsedAt.UTC().Format(time.RFC3339))
		}
		return nil, nil, e
	}
	now := time.Now().UTC()
	if token.Expired(now) {
		return nil, nil, domain.ErrTokenExpired().
			WithDetail("expired_at", token.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if now.Before(token.NotBefore) {
		return nil, nil, domain.ErrTokenNotYetValid().
			WithDetail("not_before", token.NotBefore.UTC().Format(time.RFC3339))
	}
	if token.ApiID != apiID {
		return nil, nil, domain.ErrInvalidToken().
			WithDetail("reason", "token was issued for a different api")
	}
	if !strings.EqualFold(token.DeveloperAddress, developerAddress) {
		return nil, nil, domain.ErrInvalidToken().
			WithDetail("reason", "token belongs to a different developer")
	}

	api, err := s.apis.GetWithProvider(token.ApiID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.ErrApiNotFound()
		}
		return nil, nil, domain.Wrap(domain.ErrInternal(), err)
	}
	if !api.Active {
		return nil, nil, domain.ErrApiInactive()
	}
	if !api.Provider.Active {
		return nil, nil, domain.ErrProviderInactive()
	}
	return token, api, nil
}

// Validate is the read-only precheck: same chain as Consume, no flip, no log.
func (s *TokenService) Validate(tokenHash string, apiID uint, developerAddress string) (*models.Token, *models.Api, error) {
	return s.check(tokenHash, apiID, developerAddress)
}

// Consume atomically flips used=false→true and creates the placeholder usage
// log in one transaction. Under N concurrent attempts exactly one succeeds;
// the losers get a conflict error carrying the winner's used_at.
func (s *TokenService) Consume(tokenHash string, apiID uint, developerAddress string, meta CallMeta) (*models.Token, *models.Api, *models.UsageLog, error) {
	token, api, err := s.check(tokenHash, apiID, developerAddress)
	if err != nil {
		return nil, nil, nil, err
	}

	usage := &models.UsageLog{
		ApiID:            token.ApiID,
		ProviderID:       token.ProviderID,
		DeveloperAddress: token.DeveloperAddress,
		RequestID:        meta.RequestID,
		Method:           meta.Method,
		RequestHeaders:   meta.Headers,
		RequestParams:    meta.Params,
		RequestBody:      meta.Body,
		ClientIP:         meta.ClientIP,
		UserAgent:        meta.UserAgent,
	}
	if err := s.tokens.Consume(token, usage); err != nil {
		if errors.Is(err, repository.ErrTokenConsumed) {
			e := domain.ErrTokenConflict()
			// Surface the winner's consumption time to the race loser.
			if fresh, gerr := s.tokens.GetByHash(tokenHash); gerr == nil && fresh.UsedAt != nil {
				e.WithDetail("used_at", fresh.UsedAt.UTC().Format(time.RFC3339))
			}
			return nil, nil, nil, e
		}
		return nil, nil, nil, domain.Wrap(domain.ErrInternal(), err)
	}
	return token, api, usage, nil
}
