package service

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"paygate/internal/domain"
	"paygate/internal/models"
)

// Transferer executes the on-chain distribution transfer.
type Transferer interface {
	Transfer(ctx context.Context, network, to string, amount *big.Int) (string, error)
}

// FeeBreakdown is the exact integer split of a payment. PlatformFee +
// ProviderShare always equals Total; the floor on the fee side means any
// remainder goes to the provider.
type FeeBreakdown struct {
	Total         string `json:"total"`
	PlatformFee   string `json:"platform_fee"`
	ProviderShare string `json:"provider_share"`
	FeeBps        int64  `json:"fee_bps"`
}

// ComputeBreakdown splits amount into platform fee and provider share using
// basis points. Integer arithmetic only; no rounding loss.
func ComputeBreakdown(amount *big.Int, feeBps int64) (fee, share *big.Int) {
	fee = new(big.Int).Mul(amount, big.NewInt(feeBps))
	fee.Quo(fee, big.NewInt(10000))
	share = new(big.Int).Sub(amount, fee)
	return fee, share
}

// SettlementResult is reported alongside the payment response. WillRetry is
// set when the distribution failed but remains eligible for a later attempt.
type SettlementResult struct {
	Status    string `json:"status"`
	TxHash    string `json:"tx_hash,omitempty"`
	WillRetry bool   `json:"will_retry"`
	Error     string `json:"error,omitempty"`
}

type settlementPaymentStore interface {
	UpdateSettlement(id uint, status, settlementTxHash string) error
}

// SettlementService moves the provider share to the payout wallet. Failures
// here are never fatal to the payment flow: the developer has already paid on
// chain, so tokens stand regardless of distribution status.
type SettlementService struct {
	payments settlementPaymentStore
	transfer Transferer
	log      *zap.Logger
}

// NewSettlementService accepts a nil transfer executor; that disables
// on-chain distribution and records payments as direct peer-to-peer.
func NewSettlementService(payments settlementPaymentStore, transfer Transferer, log *zap.Logger) *SettlementService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SettlementService{payments: payments, transfer: transfer, log: log}
}

// Settle distributes payment.ProviderShare to the provider's wallet. The
// returned result is informational; the error is already folded into it.
func (s *SettlementService) Settle(ctx context.Context, payment *models.Payment, provider *models.Provider) SettlementResult {
	if s.transfer == nil || payment.FeeBps == 0 {
		// Peer-to-peer mode: the developer paid the provider wallet directly,
		// nothing to move.
		if err := s.payments.UpdateSettlement(payment.ID, domain.SettlementDirectP2P, ""); err != nil {
			s.log.Warn("record direct settlement", zap.Uint("payment_id", payment.ID), zap.Error(err))
		}
		return SettlementResult{Status: domain.SettlementDirectP2P}
	}

	share, ok := models.ParseAmount(payment.ProviderShare)
	if !ok {
		s.log.Error("unparseable provider share", zap.Uint("payment_id", payment.ID), zap.String("share", payment.ProviderShare))
		return SettlementResult{Status: domain.SettlementFailed, WillRetry: false, Error: "invalid provider share"}
	}

	txHash, err := s.transfer.Transfer(ctx, payment.Network, provider.WalletAddress, share)
	if err != nil {
		s.log.Warn("settlement transfer failed",
			zap.Uint("payment_id", payment.ID),
			zap.String("network", payment.Network),
			zap.Error(err))
		if uerr := s.payments.UpdateSettlement(payment.ID, domain.SettlementFailed, ""); uerr != nil {
			s.log.Warn("record failed settlement", zap.Uint("payment_id", payment.ID), zap.Error(uerr))
		}
		return SettlementResult{Status: domain.SettlementFailed, WillRetry: true, Error: err.Error()}
	}

	if err := s.payments.UpdateSettlement(payment.ID, domain.SettlementCompleted, txHash); err != nil {
		s.log.Warn("record completed settlement", zap.Uint("payment_id", payment.ID), zap.Error(err))
	}
	return SettlementResult{Status: domain.SettlementCompleted, TxHash: txHash}
}
