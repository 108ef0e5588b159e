package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const transferGasLimit = 21000

// TransferExecutor sends native transfers from the platform distribution
// account. It is only constructed when settlement is enabled.
type TransferExecutor struct {
	pool    *Pool
	key     *ecdsa.PrivateKey
	from    common.Address
	timeout time.Duration
}

func NewTransferExecutor(pool *Pool, privateKeyHex string, timeout time.Duration) (*TransferExecutor, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse settlement key: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TransferExecutor{
		pool:    pool,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		timeout: timeout,
	}, nil
}

// Transfer signs and broadcasts a native transfer, returning its hash. It
// does not wait for the transfer to be mined; settlement is asynchronous and
// a failed distribution is retried later.
func (t *TransferExecutor) Transfer(ctx context.Context, network, to string, amount *big.Int) (string, error) {
	client, chainID, err := t.pool.Client(ctx, network)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	nonce, err := client.PendingNonceAt(ctx, t.from)
	if err != nil {
		return "", fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, common.HexToAddress(to), amount, transferGasLimit, gasPrice, nil)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(chainID)), t.key)
	if err != nil {
		return "", fmt.Errorf("sign transfer: %w", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send transfer: %w", err)
	}
	return signed.Hash().Hex(), nil
}
