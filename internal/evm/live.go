package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
)

// LiveConfig configures the live chain client.
type LiveConfig struct {
	ChainID        int64         `yaml:"chain_id"`
	RPCEndpoint    string        `yaml:"rpc_endpoint"`
	PrivateKey     string        `yaml:"private_key"` // hex, no 0x prefix required
	GasLimit       uint64        `yaml:"gas_limit"`
	CallTimeout    time.Duration `yaml:"call_timeout"` // budget per read/simulate RPC
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	MaxGasGwei     int64         `yaml:"max_gas_gwei"` // 0 = no ceiling
}

// LiveClient implements Client against a real JSON-RPC node. The underlying
// connection is shared and stateless; any number of goroutines may simulate,
// send, and wait concurrently.
type LiveClient struct {
	ec      *ethclient.Client
	chainID *big.Int
	key     *ecdsa.PrivateKey
	from    common.Address

	gasLimit       uint64
	callTimeout    time.Duration
	confirmTimeout time.Duration
	pollInterval   time.Duration
	maxFeeWei      *big.Int // nil = no ceiling
}

var _ Client = (*LiveClient)(nil)

// NewLiveClient dials the RPC endpoint and derives the signing identity.
func NewLiveClient(ctx context.Context, cfg LiveConfig) (*LiveClient, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("evm: invalid private key: %w", err)
	}

	ec, err := ethclient.DialContext(ctx, cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("evm: dial %s: %w", cfg.RPCEndpoint, err)
	}

	if cfg.GasLimit == 0 {
		cfg.GasLimit = 1_500_000
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 2 * time.Minute
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}

	var maxFee *big.Int
	if cfg.MaxGasGwei > 0 {
		maxFee = gweiToWei(cfg.MaxGasGwei)
	}

	return &LiveClient{
		ec:             ec,
		chainID:        big.NewInt(cfg.ChainID),
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		gasLimit:       cfg.GasLimit,
		callTimeout:    cfg.CallTimeout,
		confirmTimeout: cfg.ConfirmTimeout,
		pollInterval:   cfg.PollInterval,
		maxFeeWei:      maxFee,
	}, nil
}

// From returns the signing address.
func (c *LiveClient) From() common.Address {
	return c.from
}

// Close releases the underlying RPC connection.
func (c *LiveClient) Close() {
	c.ec.Close()
}

// CallContract executes a read-only call at the latest block.
func (c *LiveClient) CallContract(ctx context.Context, call Call) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	msg := ethereum.CallMsg{
		From:  call.From,
		To:    &call.To,
		Value: call.Value,
		Data:  call.Data,
	}
	ret, err := c.ec.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("evm: call contract %s: %w", call.To.Hex(), err)
	}
	return ret, nil
}

// Simulate dry-runs the call via eth_call, then builds and signs the
// dynamic-fee transaction so Send can broadcast exactly what was simulated.
func (c *LiveClient) Simulate(ctx context.Context, call Call) (*SimResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	from := call.From
	if (from == common.Address{}) {
		from = c.from
	}

	msg := ethereum.CallMsg{
		From:  from,
		To:    &call.To,
		Value: call.Value,
		Gas:   c.gasLimit,
		Data:  call.Data,
	}
	ret, err := c.ec.CallContract(ctx, msg, nil)
	if err != nil {
		// Revert reasons arrive here, before any gas is spent.
		return nil, fmt.Errorf("evm: simulate %s: %w", call.To.Hex(), err)
	}

	nonce, err := c.ec.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("evm: pending nonce: %w", err)
	}

	tipCap, err := c.ec.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("evm: suggest tip cap: %w", err)
	}

	head, err := c.ec.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("evm: head header: %w", err)
	}

	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	tipCap, feeCap = boundFees(tipCap, feeCap, c.maxFeeWei)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       c.gasLimit,
		To:        &call.To,
		Value:     call.Value,
		Data:      call.Data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("evm: sign tx: %w", err)
	}

	return &SimResult{ReturnData: ret, Prepared: &PreparedTx{Tx: signed}}, nil
}

// boundFees clamps the fee cap to maxFee (nil = unbounded) and keeps the
// tip within the clamped cap, as the node rejects tip > fee cap.
func boundFees(tipCap, feeCap, maxFee *big.Int) (*big.Int, *big.Int) {
	if maxFee == nil {
		return tipCap, feeCap
	}
	if feeCap.Cmp(maxFee) > 0 {
		feeCap = new(big.Int).Set(maxFee)
	}
	if tipCap.Cmp(feeCap) > 0 {
		tipCap = new(big.Int).Set(feeCap)
	}
	return tipCap, feeCap
}

func gweiToWei(gwei int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(gwei), big.NewInt(1_000_000_000))
}

// Send broadcasts a prepared transaction.
func (c *LiveClient) Send(ctx context.Context, prepared *PreparedTx) (common.Hash, error) {
	if err := c.ec.SendTransaction(ctx, prepared.Tx); err != nil {
		return common.Hash{}, fmt.Errorf("evm: send tx %s: %w", prepared.Hash().Hex(), err)
	}

	hash := prepared.Hash()
	log.Debug().Str("tx_hash", hash.Hex()).Msg("evm: transaction broadcast")
	return hash, nil
}

// WaitForReceipt polls for the receipt until mined or the confirm budget
// runs out. Timeout is an UNKNOWN outcome, not a failure: the tx may still
// land, so the error wraps ErrConfirmTimeout and callers must re-query
// before any retry.
func (c *LiveClient) WaitForReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	deadline := time.Now().Add(c.confirmTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.ec.TransactionReceipt(ctx, txHash)
		if err == nil {
			return &Receipt{
				TxHash:      txHash,
				BlockNumber: receipt.BlockNumber.Uint64(),
				Status:      receipt.Status,
			}, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("evm: fetch receipt %s: %w", txHash.Hex(), err)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: tx %s", ErrConfirmTimeout, txHash.Hex())
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: tx %s: %v", ErrConfirmTimeout, txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
