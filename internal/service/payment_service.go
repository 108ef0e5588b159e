package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paygate/internal/domain"
	"paygate/internal/models"
	"paygate/pkg/chain"
)

// ChainVerifier confirms an on-chain transfer. pkg/chain.Verifier is the real
// implementation; tests substitute their own.
type ChainVerifier interface {
	Verify(ctx context.Context, network, txHash, expectedRecipient string, expectedAmount *big.Int) (*chain.VerifyResult, error)
}

type paymentStore interface {
	GetByTxHash(txHash string) (*models.Payment, error)
	CreateWithTokens(p *models.Payment, tokens []models.Token) error
}

type paymentApiStore interface {
	GetWithProvider(id uint) (*models.Api, error)
	AddRevenue(id uint, amount string) error
}

type paymentProviderStore interface {
	AddEarnings(id uint, amount string) error
}

// ProcessRequest is the validated input of one payment submission.
type ProcessRequest struct {
	TxHash           string
	ApiID            uint
	DeveloperAddress string
	PaymentAmount    string
	Currency         string
	Network          string
}

// ProcessResult bundles everything the payment response carries.
type ProcessResult struct {
	Payment    *models.Payment
	Tokens     []models.Token
	Breakdown  FeeBreakdown
	Settlement SettlementResult
}

// PaymentService verifies a transaction once and turns it into single-use
// call tokens.
type PaymentService struct {
	payments   paymentStore
	apis       paymentApiStore
	providers  paymentProviderStore
	verifier   ChainVerifier
	settlement *SettlementService
	feeBps     int64
	validity   time.Duration
	nbfSkew    time.Duration
	log        *zap.Logger
}

func NewPaymentService(
	payments paymentStore,
	apis paymentApiStore,
	providers paymentProviderStore,
	verifier ChainVerifier,
	settlement *SettlementService,
	feeBps int64,
	validity time.Duration,
	nbfSkew time.Duration,
	log *zap.Logger,
) *PaymentService {
	if log == nil {
		log = zap.NewNop()
	}
	if validity <= 0 {
		validity = 24 * time.Hour
	}
	return &PaymentService{
		payments:   payments,
		apis:       apis,
		providers:  providers,
		verifier:   verifier,
		settlement: settlement,
		feeBps:     feeBps,
		validity:   validity,
		nbfSkew:    nbfSkew,
		log:        log,
	}
}

// Process implements the full payment pipeline: duplicate check, API and
// provider lookup, on-chain verification, fee split, all-or-nothing token
// issuance, aggregate updates, then best-effort settlement.
func (s *PaymentService) Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	if existing, err := s.payments.GetByTxHash(req.TxHash); err == nil {
		return nil, domain.ErrAlreadyProcessed().
			WithDetail("payment_id", existing.ID).
			WithDetail("tokens_issued", existing.TokensIssued)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.Wrap(domain.ErrInternal(), err)
	}

	api, err := s.apis.GetWithProvider(req.ApiID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrApiNotFound().WithDetail("api_id", req.ApiID)
		}
		return nil, domain.Wrap(domain.ErrInternal(), err)
	}
	if !api.Active {
		return nil, domain.ErrApiInactive().WithDetail("api_id", api.ID)
	}
	if !api.Provider.Active {
		return nil, domain.ErrProviderInactive().WithDetail("provider_id", api.ProviderID)
	}

	amount, ok := models.ParseAmount(req.PaymentAmount)
	if !ok || amount.Sign() == 0 {
		return nil, domain.ErrBadRequest().WithDetail("payment_amount", req.PaymentAmount)
	}
	price, ok := models.ParseAmount(api.PricePerCall)
	if !ok || price.Sign() == 0 {
		return nil, domain.Wrap(domain.ErrInternal(), errors.New("api has invalid price"))
	}

	verified, err := s.verifier.Verify(ctx, req.Network, req.TxHash, api.Provider.WalletAddress, amount)
	if err != nil {
		return nil, mapVerifyError(err, api.Provider.WalletAddress, amount)
	}

	fee, share := ComputeBreakdown(amount, s.feeBps)
	tokenCount := new(big.Int).Quo(share, price)
	if tokenCount.Sign() == 0 {
		return nil, domain.ErrInsufficientPayment().
			WithDetail("provider_share", share.String()).
			WithDetail("price_per_call", price.String())
	}
	if !tokenCount.IsInt64() || tokenCount.Int64() > 1<<20 {
		return nil, domain.ErrBadRequest().WithDetail("token_count", tokenCount.String())
	}
	count := int(tokenCount.Int64())

	now := time.Now().UTC()
	payment := &models.Payment{
		TxHash:           verified.TxHash,
		PayerAddress:     verified.From,
		ApiID:            api.ID,
		ProviderID:       api.ProviderID,
		Amount:           amount.String(),
		Currency:         req.Currency,
		Network:          req.Network,
		FeeBps:           s.feeBps,
		PlatformFee:      fee.String(),
		ProviderShare:    share.String(),
		TokenCount:       count,
		Verified:         true,
		BlockNumber:      verified.BlockNumber,
		BlockTime:        verified.BlockTime,
		SettlementStatus: domain.SettlementPending,
	}

	tokens := make([]models.Token, count)
	for i := range tokens {
		hash, err := newTokenHash()
		if err != nil {
			return nil, domain.Wrap(domain.ErrInternal(), err)
		}
		tokens[i] = models.Token{
			ApiID:            api.ID,
			ProviderID:       api.ProviderID,
			DeveloperAddress: req.DeveloperAddress,
			TokenHash:        hash,
			NotBefore:        now.Add(-s.nbfSkew),
			ExpiresAt:        now.Add(s.validity),
		}
	}

	if err := s.payments.CreateWithTokens(payment, tokens); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the insert race to a concurrent submission of the same hash.
			if existing, gerr := s.payments.GetByTxHash(req.TxHash); gerr == nil {
				return nil, domain.ErrAlreadyProcessed().
					WithDetail("payment_id", existing.ID).
					WithDetail("tokens_issued", existing.TokensIssued)
			}
			return nil, domain.ErrAlreadyProcessed()
		}
		return nil, domain.Wrap(domain.ErrInternal(), err)
	}
	payment.TokensIssued = count

	// Aggregates accrue the provider share, not the gross amount. Best-effort:
	// the tokens are already issued.
	if err := s.apis.AddRevenue(api.ID, share.String()); err != nil {
		s.log.Warn("add api revenue", zap.Uint("api_id", api.ID), zap.Error(err))
	}
	if err := s.providers.AddEarnings(api.ProviderID, share.String()); err != nil {
		s.log.Warn("add provider earnings", zap.Uint("provider_id", api.ProviderID), zap.Error(err))
	}

	settlement := s.settlement.Settle(ctx, payment, &api.Provider)
	payment.SettlementStatus = settlement.Status
	payment.SettlementTxHash = settlement.TxHash

	return &ProcessResult{
		Payment: payment,
		Tokens:  tokens,
		Breakdown: FeeBreakdown{
			Total:         amount.String(),
			PlatformFee:   fee.String(),
			ProviderShare: share.String(),
			FeeBps:        s.feeBps,
		},
		Settlement: settlement,
	}, nil
}

func mapVerifyError(err error, expectedRecipient string, expectedAmount *big.Int) *domain.Error {
	switch {
	case errors.Is(err, chain.ErrTxNotFound):
		return domain.ErrTxNotFound()
	case errors.Is(err, chain.ErrTxFailed):
		return domain.ErrTxFailed()
	case errors.Is(err, chain.ErrWrongRecipient):
		return domain.ErrWrongRecipient().WithDetail("expected_recipient", expectedRecipient)
	case errors.Is(err, chain.ErrInsufficientAmount):
		return domain.ErrInsufficientAmount().WithDetail("expected_amount", expectedAmount.String())
	case errors.Is(err, chain.ErrUnknownNetwork):
		return domain.ErrUnknownNetwork()
	default:
		// Pending transactions and RPC errors are both transient.
		return domain.Wrap(domain.ErrVerificationFailed(), err)
	}
}

// newTokenHash mints the opaque bearer credential: 32 random bytes, hex.
func newTokenHash() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "tkn_" + hex.EncodeToString(buf), nil
}
