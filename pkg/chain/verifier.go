package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Verification failure classes. Everything else coming out of Verify is a
// transport/RPC error and may be transient.
var (
	ErrTxNotFound         = errors.New("transaction not found")
	ErrTxFailed           = errors.New("transaction reverted")
	ErrTxPending          = errors.New("transaction not yet mined")
	ErrWrongRecipient     = errors.New("recipient mismatch")
	ErrInsufficientAmount = errors.New("transferred amount below expected")
)

// VerifyResult carries the audit fields of a confirmed transfer.
type VerifyResult struct {
	TxHash      string
	From        string
	To          string
	Amount      *big.Int
	BlockNumber uint64
	BlockTime   int64
}

// Verifier confirms that a native transfer exists, succeeded, paid the
// expected recipient, and carried at least the expected amount. It performs
// idempotent reads only.
type Verifier struct {
	pool    *Pool
	timeout time.Duration
}

func NewVerifier(pool *Pool, timeout time.Duration) *Verifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Verifier{pool: pool, timeout: timeout}
}

// Verify checks txHash on the given network. Overpayment is tolerated;
// underpayment fails with ErrInsufficientAmount. Recipient comparison is
// case-insensitive (EIP-55 checksums vary in the wild).
func (v *Verifier) Verify(ctx context.Context, network, txHash, expectedRecipient string, expectedAmount *big.Int) (*VerifyResult, error) {
	client, chainID, err := v.pool.Client(ctx, network)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	hash := common.HexToHash(txHash)
	receipt, err := client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrTxNotFound
		}
		return nil, fmt.Errorf("fetch receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, ErrTxFailed
	}

	tx, pending, err := client.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrTxNotFound
		}
		return nil, fmt.Errorf("fetch transaction: %w", err)
	}
	if pending {
		return nil, ErrTxPending
	}

	to := tx.To()
	if to == nil || !strings.EqualFold(to.Hex(), expectedRecipient) {
		return nil, ErrWrongRecipient
	}
	if tx.Value().Cmp(expectedAmount) < 0 {
		return nil, ErrInsufficientAmount
	}

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(chainID)), tx)
	if err != nil {
		return nil, fmt.Errorf("recover sender: %w", err)
	}

	result := &VerifyResult{
		TxHash:      hash.Hex(),
		From:        from.Hex(),
		To:          to.Hex(),
		Amount:      new(big.Int).Set(tx.Value()),
		BlockNumber: receipt.BlockNumber.Uint64(),
	}
	if header, err := client.HeaderByNumber(ctx, receipt.BlockNumber); err == nil {
		result.BlockTime = int64(header.Time)
	}
	return result, nil
}
