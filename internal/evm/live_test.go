package evm

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundFees_NoCeiling(t *testing.T) {
	tip := big.NewInt(2_000_000_000)
	fee := big.NewInt(50_000_000_000)

	gotTip, gotFee := boundFees(tip, fee, nil)

	assert.Zero(t, gotTip.Cmp(tip))
	assert.Zero(t, gotFee.Cmp(fee))
}

func TestBoundFees_ClampsFeeCap(t *testing.T) {
	tip := big.NewInt(2_000_000_000)
	fee := big.NewInt(50_000_000_000)
	max := gweiToWei(10) // 10 gwei

	gotTip, gotFee := boundFees(tip, fee, max)

	assert.Zero(t, gotFee.Cmp(max), "fee cap must not exceed the ceiling")
	assert.Zero(t, gotTip.Cmp(tip), "tip below the clamped cap is untouched")
}

func TestBoundFees_TipNeverExceedsClampedCap(t *testing.T) {
	tip := big.NewInt(20_000_000_000)
	fee := big.NewInt(50_000_000_000)
	max := gweiToWei(5)

	gotTip, gotFee := boundFees(tip, fee, max)

	assert.Zero(t, gotFee.Cmp(max))
	assert.Zero(t, gotTip.Cmp(max), "node rejects tip above fee cap")
}

func TestGweiToWei(t *testing.T) {
	assert.Zero(t, gweiToWei(3).Cmp(big.NewInt(3_000_000_000)))
}
