package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"paygate/internal/domain"
	"paygate/internal/models"
)

func TestComputeBreakdown(t *testing.T) {
	cases := []struct {
		name      string
		amount    string
		feeBps    int64
		wantFee   string
		wantShare string
	}{
		{"three percent of 1e15", "1000000000000000", 300, "30000000000000", "970000000000000"},
		{"zero fee", "1000000000000000", 0, "0", "1000000000000000"},
		{"full fee", "12345", 10000, "12345", "0"},
		{"rounding remainder goes to provider", "101", 300, "3", "98"},
		{"one wei", "1", 300, "0", "1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount, _ := new(big.Int).SetString(tc.amount, 10)
			fee, share := ComputeBreakdown(amount, tc.feeBps)
			if fee.String() != tc.wantFee {
				t.Errorf("fee = %s, want %s", fee, tc.wantFee)
			}
			if share.String() != tc.wantShare {
				t.Errorf("share = %s, want %s", share, tc.wantShare)
			}
			if sum := new(big.Int).Add(fee, share); sum.Cmp(amount) != 0 {
				t.Errorf("fee + share = %s, want exactly %s", sum, amount)
			}
		})
	}
}

type stubSettlementStore struct {
	status string
	txHash string
	err    error
}

func (s *stubSettlementStore) UpdateSettlement(id uint, status, settlementTxHash string) error {
	s.status = status
	s.txHash = settlementTxHash
	return s.err
}

type stubTransferer struct {
	txHash string
	err    error
	calls  int
}

func (s *stubTransferer) Transfer(ctx context.Context, network, to string, amount *big.Int) (string, error) {
	s.calls++
	return s.txHash, s.err
}

func TestSettle_DirectPeerToPeer(t *testing.T) {
	store := &stubSettlementStore{}
	svc := NewSettlementService(store, nil, nil)
	payment := &models.Payment{ID: 1, FeeBps: 300, ProviderShare: "970"}

	res := svc.Settle(context.Background(), payment, &models.Provider{ID: 2})
	if res.Status != domain.SettlementDirectP2P {
		t.Fatalf("status = %s, want %s", res.Status, domain.SettlementDirectP2P)
	}
	if res.WillRetry {
		t.Error("direct settlement must not be flagged for retry")
	}
	if store.status != domain.SettlementDirectP2P {
		t.Errorf("stored status = %s", store.status)
	}
}

func TestSettle_TransferSuccess(t *testing.T) {
	store := &stubSettlementStore{}
	transfer := &stubTransferer{txHash: "0xsettled"}
	svc := NewSettlementService(store, transfer, nil)
	payment := &models.Payment{ID: 1, FeeBps: 300, ProviderShare: "970", Network: "sepolia"}

	res := svc.Settle(context.Background(), payment, &models.Provider{WalletAddress: "0xabc"})
	if res.Status != domain.SettlementCompleted || res.TxHash != "0xsettled" {
		t.Fatalf("got %+v", res)
	}
	if transfer.calls != 1 {
		t.Errorf("transfer calls = %d, want 1", transfer.calls)
	}
	if store.status != domain.SettlementCompleted || store.txHash != "0xsettled" {
		t.Errorf("stored %s/%s", store.status, store.txHash)
	}
}

func TestSettle_TransferFailureIsRetryable(t *testing.T) {
	store := &stubSettlementStore{}
	transfer := &stubTransferer{err: errors.New("rpc down")}
	svc := NewSettlementService(store, transfer, nil)
	payment := &models.Payment{ID: 1, FeeBps: 300, ProviderShare: "970", Network: "sepolia"}

	res := svc.Settle(context.Background(), payment, &models.Provider{WalletAddress: "0xabc"})
	if res.Status != domain.SettlementFailed {
		t.Fatalf("status = %s, want %s", res.Status, domain.SettlementFailed)
	}
	if !res.WillRetry {
		t.Error("failed transfer must be flagged willRetry")
	}
	if store.status != domain.SettlementFailed {
		t.Errorf("stored status = %s", store.status)
	}
}
