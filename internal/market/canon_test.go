package market

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func poolWithToken(address string, marketCap int64) Pool {
	return Pool{
		Chain:        "bsc",
		Exchange:     "pancakeswap",
		BaseToken:    Token{Address: address},
		MarketCapUSD: decimal.NewFromInt(marketCap),
	}
}

func TestDedup_CaseInsensitiveFirstWins(t *testing.T) {
	pools := []Pool{
		poolWithToken("0xAAAA", 100),
		poolWithToken("0xBBBB", 200),
		poolWithToken("0xaaaa", 300), // duplicate of first, different case
		poolWithToken("0xbbbb", 400),
	}

	out := Dedup(pools)

	require.Len(t, out, 2)
	assert.Equal(t, "0xAAAA", out[0].BaseToken.Address)
	assert.Equal(t, int64(100), out[0].MarketCapUSD.IntPart())
	assert.Equal(t, "0xBBBB", out[1].BaseToken.Address)
}

func TestSort_StableOnTies(t *testing.T) {
	pools := make([]Pool, 0, 6)
	for i := 0; i < 6; i++ {
		p := poolWithToken(fmt.Sprintf("0x%04d", i), 1000) // all tied on marketCap
		p.PairAddress = fmt.Sprintf("pair-%d", i)
		pools = append(pools, p)
	}

	first := append([]Pool(nil), pools...)
	Sort(first, SortByMarketCap, SortOrderDesc)

	second := append([]Pool(nil), pools...)
	Sort(second, SortByMarketCap, SortOrderDesc)

	for i := range first {
		assert.Equal(t, pools[i].PairAddress, first[i].PairAddress, "ties must keep input order")
		assert.Equal(t, first[i].PairAddress, second[i].PairAddress, "same input must sort identically")
	}
}

func TestSort_Keys(t *testing.T) {
	a := poolWithToken("0xa", 100)
	a.VolumeUSD = decimal.NewFromInt(5)
	a.HolderCount = 50
	a.CreatedAtUnix = 300

	b := poolWithToken("0xb", 200)
	b.VolumeUSD = decimal.NewFromInt(10)
	b.HolderCount = 10
	b.CreatedAtUnix = 100

	tests := []struct {
		sortBy    string
		sortOrder string
		wantFirst string
	}{
		{SortByMarketCap, SortOrderAsc, "0xa"},
		{SortByMarketCap, SortOrderDesc, "0xb"},
		{SortByVolume, SortOrderDesc, "0xb"},
		{SortByHolderCount, SortOrderDesc, "0xa"},
		{SortByCreatedAt, SortOrderAsc, "0xb"},
		{SortByCreatedAt, SortOrderDesc, "0xa"},
	}

	for _, tt := range tests {
		pools := []Pool{a, b}
		Sort(pools, tt.sortBy, tt.sortOrder)
		assert.Equal(t, tt.wantFirst, pools[0].BaseToken.Address,
			"sortBy=%s order=%s", tt.sortBy, tt.sortOrder)
	}
}

func TestPaginate_Boundaries(t *testing.T) {
	pools := make([]Pool, 137)
	for i := range pools {
		pools[i] = poolWithToken(fmt.Sprintf("0x%04d", i), int64(i))
	}

	page2 := Paginate(pools, 2, 50)
	assert.Len(t, page2.Pools, 50)
	assert.Equal(t, 137, page2.Total)
	assert.True(t, page2.HasMore)

	page3 := Paginate(pools, 3, 50)
	assert.Len(t, page3.Pools, 37)
	assert.False(t, page3.HasMore)

	page4 := Paginate(pools, 4, 50)
	assert.Empty(t, page4.Pools)
	assert.False(t, page4.HasMore)
}

func TestCanonicalize_EndToEnd(t *testing.T) {
	pools := []Pool{
		poolWithToken("0xaa", 300),
		poolWithToken("0xbb", 100),
		poolWithToken("0xAA", 999), // dup, dropped
		poolWithToken("0xcc", 200),
	}

	page := Canonicalize(pools, Query{SortBy: SortByMarketCap, SortOrder: SortOrderDesc, Page: 1, Limit: 2})

	require.Len(t, page.Pools, 2)
	assert.Equal(t, "0xaa", page.Pools[0].BaseToken.Address)
	assert.Equal(t, int64(300), page.Pools[0].MarketCapUSD.IntPart())
	assert.Equal(t, "0xcc", page.Pools[1].BaseToken.Address)
	assert.Equal(t, 3, page.Total)
	assert.True(t, page.HasMore)
}
