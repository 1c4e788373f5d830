package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/talon-trading/talon/internal/evm"
	"github.com/talon-trading/talon/internal/storage"
)

// DeployParams carries the spending limits compiled into a new proxy wallet.
type DeployParams struct {
	MaxTradeAmount decimal.Decimal
	MaxSlippagePct decimal.Decimal
	DailyLimit     decimal.Decimal
}

// Manager deploys and looks up proxy wallets. Deployment is idempotent per
// (user address, owner identity): a second request for the same pair returns
// the stored wallet without touching the chain.
type Manager struct {
	chain   evm.Client
	wallets storage.WalletStore
	factory common.Address
}

func NewManager(chain evm.Client, wallets storage.WalletStore, factory string) *Manager {
	return &Manager{
		chain:   chain,
		wallets: wallets,
		factory: common.HexToAddress(factory),
	}
}

// Lookup returns the wallet for the pair, or storage.ErrNotFound.
func (m *Manager) Lookup(ctx context.Context, userAddress, identity string) (*storage.ProxyWallet, error) {
	return m.wallets.Get(ctx, userAddress, identity)
}

// Deploy creates a proxy wallet on chain for the given user. The write runs
// in three phases: simulate (which also yields the deployed address from the
// call's return value), send, and confirm. A simulate failure aborts before
// any gas is spent; send and confirm failures surface the broadcast tx hash
// in the returned PhaseError.
func (m *Manager) Deploy(ctx context.Context, userAddress, identity string, params DeployParams) (*storage.ProxyWallet, error) {
	if existing, err := m.wallets.Get(ctx, userAddress, identity); err == nil {
		log.Debug().
			Str("user", userAddress).
			Str("identity", identity).
			Str("proxy", existing.ProxyAddress).
			Msg("proxy wallet already deployed")
		return existing, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("wallet lookup: %w", err)
	}

	data, err := packDeployProxy(common.HexToAddress(userAddress), params.MaxTradeAmount, params.MaxSlippagePct, params.DailyLimit)
	if err != nil {
		return nil, fmt.Errorf("encode deployProxy: %w", err)
	}

	sim, err := m.chain.Simulate(ctx, evm.Call{To: m.factory, Data: data})
	if err != nil {
		return nil, phaseErr(PhaseSimulate, "", err)
	}
	proxyAddr, err := unpackDeployedAddress(sim.ReturnData)
	if err != nil {
		return nil, phaseErr(PhaseSimulate, "", err)
	}

	txHash, err := m.chain.Send(ctx, sim.Prepared)
	if err != nil {
		return nil, phaseErr(PhaseSend, "", err)
	}

	receipt, err := m.chain.WaitForReceipt(ctx, txHash)
	if err != nil {
		return nil, phaseErr(PhaseConfirm, txHash.Hex(), err)
	}
	if !receipt.Success() {
		return nil, phaseErr(PhaseConfirm, txHash.Hex(), fmt.Errorf("deploy transaction reverted"))
	}

	wallet := &storage.ProxyWallet{
		UserAddress:    userAddress,
		OwnerIdentity:  identity,
		ProxyAddress:   proxyAddr.Hex(),
		MaxTradeAmount: params.MaxTradeAmount,
		MaxSlippagePct: params.MaxSlippagePct,
		DailyLimit:     params.DailyLimit,
		IsActive:       true,
		DeployedAt:     time.Now(),
	}
	if err := m.wallets.Insert(ctx, wallet); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Lost a deploy race. The stored row wins.
			return m.wallets.Get(ctx, userAddress, identity)
		}
		return nil, fmt.Errorf("persist wallet: %w", err)
	}

	log.Info().
		Str("user", userAddress).
		Str("identity", identity).
		Str("proxy", wallet.ProxyAddress).
		Str("tx_hash", txHash.Hex()).
		Msg("proxy wallet deployed")

	return wallet, nil
}

// IsActiveOnChain reads the proxy contract's active flag directly.
func (m *Manager) IsActiveOnChain(ctx context.Context, proxyAddress string) (bool, error) {
	data, err := walletABI.Pack("isActive")
	if err != nil {
		return false, fmt.Errorf("encode isActive: %w", err)
	}
	ret, err := m.chain.CallContract(ctx, evm.Call{To: common.HexToAddress(proxyAddress), Data: data})
	if err != nil {
		return false, fmt.Errorf("call isActive: %w", err)
	}
	out, err := walletABI.Unpack("isActive", ret)
	if err != nil {
		return false, fmt.Errorf("decode isActive: %w", err)
	}
	active, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected isActive return type")
	}
	return active, nil
}
