package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talon-trading/talon/internal/sniper"
	"github.com/talon-trading/talon/internal/storage"
)

func TestWalletStore_OneWalletPerIdentity(t *testing.T) {
	s := NewWalletStore()
	ctx := context.Background()

	w := &storage.ProxyWallet{
		UserAddress:   "0xuser",
		OwnerIdentity: "tg:42",
		ProxyAddress:  "0xproxy",
		IsActive:      true,
		DeployedAt:    time.Now(),
	}
	require.NoError(t, s.Insert(ctx, w))

	err := s.Insert(ctx, w)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := s.Get(ctx, "0xuser", "tg:42")
	require.NoError(t, err)
	assert.Equal(t, "0xproxy", got.ProxyAddress)

	// Same user, different identity is a distinct wallet.
	_, err = s.Get(ctx, "0xuser", "tg:43")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWalletStore_SetActive(t *testing.T) {
	s := NewWalletStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, &storage.ProxyWallet{
		UserAddress: "0xuser", OwnerIdentity: "tg:42", IsActive: true,
	}))

	require.NoError(t, s.SetActive(ctx, "0xuser", "tg:42", false))
	got, err := s.Get(ctx, "0xuser", "tg:42")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, s.SetActive(ctx, "0xnobody", "tg:1", true), storage.ErrNotFound)
}

func TestTradeStore_DuplicateIDRejected(t *testing.T) {
	s := NewTradeStore()
	ctx := context.Background()

	trade := &storage.ProxyTrade{
		TradeID: "id-1", UserAddress: "0xuser",
		Status: storage.TradeExecuted, ExecutedAt: time.Now(),
	}
	require.NoError(t, s.Insert(ctx, trade))
	assert.ErrorIs(t, s.Insert(ctx, trade), storage.ErrDuplicateKey)
	assert.Equal(t, 1, s.Count())
}

func TestTradeStore_ListNewestFirst(t *testing.T) {
	s := NewTradeStore()
	ctx := context.Background()
	now := time.Now()

	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.Insert(ctx, &storage.ProxyTrade{
			TradeID:     id,
			UserAddress: "0xuser",
			ExecutedAt:  now.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := s.ListByUser(ctx, "0xuser", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].TradeID)
	assert.Equal(t, "mid", got[1].TradeID)
}

func TestApprovalStore_UpsertReplaces(t *testing.T) {
	s := NewApprovalStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, &storage.ProxyApproval{
		UserAddress: "0xuser", TokenAddress: "0xtok", Amount: decimal.NewFromInt(100),
	}))
	require.NoError(t, s.Upsert(ctx, &storage.ProxyApproval{
		UserAddress: "0xuser", TokenAddress: "0xtok", Amount: decimal.NewFromInt(250),
	}))

	got, err := s.ListByUser(ctx, "0xuser")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(250), got[0].Amount.IntPart())
}

func TestConfigStore_ListActiveOnly(t *testing.T) {
	s := NewConfigStore()
	s.Put(sniper.Config{ID: "a", IsActive: true})
	s.Put(sniper.Config{ID: "b", IsActive: false})
	s.Put(sniper.Config{ID: "c", IsActive: true})

	got, err := s.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestAlertStore_ListByIdentity(t *testing.T) {
	s := NewAlertStore()
	ctx := context.Background()

	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, s.Insert(ctx, &storage.Alert{ID: id, OwnerIdentity: "tg:42"}))
	}
	require.NoError(t, s.Insert(ctx, &storage.Alert{ID: "other", OwnerIdentity: "tg:99"}))

	got, err := s.ListByIdentity(ctx, "tg:42", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].ID)
}
