package evm

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testFactory = common.HexToAddress("0xca143ce32fe78f1f7019d7d551a6402fc5350c73")
	testWNative = common.HexToAddress("0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c")
	testToken   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testPair    = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func pairCreatedLog(token0, token1, pair common.Address, block uint64) LogEvent {
	data := make([]byte, 64)
	copy(data[12:32], pair.Bytes())

	return LogEvent{
		Address: testFactory,
		Topics: []common.Hash{
			common.HexToHash("0x0d3648bd0f6ba80134a33ba9275ac585d9d315f0ad8355cddefde31afa28d0e9"),
			common.BytesToHash(token0.Bytes()),
			common.BytesToHash(token1.Bytes()),
		},
		Data:        data,
		BlockNumber: block,
	}
}

func TestPairWatcher_AcceptsNativePair(t *testing.T) {
	source := NewStubSource()

	var got []PairCreated
	watcher := NewPairWatcher(source, testFactory, testWNative, func(e PairCreated) {
		got = append(got, e)
	}, nil)

	unsubscribe, err := watcher.Start()
	require.NoError(t, err)
	defer unsubscribe()

	source.Emit([]LogEvent{pairCreatedLog(testToken, testWNative, testPair, 100)})

	require.Len(t, got, 1)
	assert.Equal(t, testToken, got[0].TokenAddress)
	assert.Equal(t, testPair, got[0].Pair)
	assert.Equal(t, uint64(100), got[0].BlockNumber)

	accepted, dropped := watcher.Stats()
	assert.Equal(t, int64(1), accepted)
	assert.Equal(t, int64(0), dropped)
}

func TestPairWatcher_NativeFirstPosition(t *testing.T) {
	source := NewStubSource()

	var got []PairCreated
	watcher := NewPairWatcher(source, testFactory, testWNative, func(e PairCreated) {
		got = append(got, e)
	}, nil)

	_, err := watcher.Start()
	require.NoError(t, err)

	source.Emit([]LogEvent{pairCreatedLog(testWNative, testToken, testPair, 101)})

	require.Len(t, got, 1)
	assert.Equal(t, testToken, got[0].TokenAddress)
}

func TestPairWatcher_DropsNonNativePairs(t *testing.T) {
	source := NewStubSource()

	var got []PairCreated
	watcher := NewPairWatcher(source, testFactory, testWNative, func(e PairCreated) {
		got = append(got, e)
	}, nil)

	_, err := watcher.Start()
	require.NoError(t, err)

	other := common.HexToAddress("0x3333333333333333333333333333333333333333")
	source.Emit([]LogEvent{pairCreatedLog(testToken, other, testPair, 102)})

	assert.Empty(t, got)
	_, dropped := watcher.Stats()
	assert.Equal(t, int64(1), dropped)
}

func TestPairWatcher_MalformedLogDropped(t *testing.T) {
	source := NewStubSource()

	var got []PairCreated
	watcher := NewPairWatcher(source, testFactory, testWNative, func(e PairCreated) {
		got = append(got, e)
	}, nil)

	_, err := watcher.Start()
	require.NoError(t, err)

	source.Emit([]LogEvent{{Address: testFactory}}) // no topics, no data

	assert.Empty(t, got)
}

func TestPairWatcher_ErrorsForwardedNotThrown(t *testing.T) {
	source := NewStubSource()

	var streamErr error
	watcher := NewPairWatcher(source, testFactory, testWNative, func(PairCreated) {}, func(err error) {
		streamErr = err
	})

	_, err := watcher.Start()
	require.NoError(t, err)

	source.EmitError(errors.New("node unavailable"))
	assert.EqualError(t, streamErr, "node unavailable")
}

func TestStubSource_Unsubscribe(t *testing.T) {
	source := NewStubSource()

	watcher := NewPairWatcher(source, testFactory, testWNative, func(PairCreated) {}, nil)
	unsubscribe, err := watcher.Start()
	require.NoError(t, err)
	assert.Equal(t, 1, source.SubscriberCount())

	unsubscribe()
	assert.Equal(t, 0, source.SubscriberCount())
}
