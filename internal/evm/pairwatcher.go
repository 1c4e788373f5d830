package evm

import (
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// PairCreatedABI is the factory event fragment watched for new pools
// (UniswapV2-family factories).
const PairCreatedABI = `[{"anonymous":false,"inputs":[
	{"indexed":true,"internalType":"address","name":"token0","type":"address"},
	{"indexed":true,"internalType":"address","name":"token1","type":"address"},
	{"indexed":false,"internalType":"address","name":"pair","type":"address"},
	{"indexed":false,"internalType":"uint256","name":"","type":"uint256"}],
	"name":"PairCreated","type":"event"}]`

// PairCreatedEvent is the event name within PairCreatedABI.
const PairCreatedEvent = "PairCreated"

// PairCreated is a normalized pool creation event. TokenAddress is the
// non-native side of the pair.
type PairCreated struct {
	Factory      common.Address `json:"factory"`
	Token0       common.Address `json:"token0"`
	Token1       common.Address `json:"token1"`
	Pair         common.Address `json:"pair"`
	TokenAddress common.Address `json:"token_address"`
	BlockNumber  uint64         `json:"block_number"`
	TxHash       common.Hash    `json:"tx_hash"`
}

// OnPairCreated receives filtered creation events.
type OnPairCreated func(PairCreated)

// PairWatcher subscribes to a factory's PairCreated stream and forwards the
// events whose counter-asset is the configured wrapped native token. Pairs
// without a native side are dropped silently: they cannot be sniped through
// the native entry path.
type PairWatcher struct {
	source        Source
	factory       common.Address
	wrappedNative common.Address
	onPair        OnPairCreated
	onError       OnError

	accepted atomic.Int64
	dropped  atomic.Int64
}

// NewPairWatcher creates a watcher over the given log source.
func NewPairWatcher(source Source, factory, wrappedNative common.Address, onPair OnPairCreated, onError OnError) *PairWatcher {
	return &PairWatcher{
		source:        source,
		factory:       factory,
		wrappedNative: wrappedNative,
		onPair:        onPair,
		onError:       onError,
	}
}

// Start opens the subscription and returns its unsubscribe function.
func (w *PairWatcher) Start() (func(), error) {
	unsubscribe, err := w.source.Subscribe(w.factory, PairCreatedABI, PairCreatedEvent, w.handleLogs, w.handleError)
	if err != nil {
		return nil, fmt.Errorf("pairwatcher: subscribe: %w", err)
	}

	log.Info().
		Str("factory", w.factory.Hex()).
		Str("wrapped_native", w.wrappedNative.Hex()).
		Msg("pairwatcher: watching factory for new pairs")

	return unsubscribe, nil
}

func (w *PairWatcher) handleLogs(logs []LogEvent) {
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		event, ok := w.decode(lg)
		if !ok {
			w.dropped.Add(1)
			continue
		}

		w.accepted.Add(1)
		log.Info().
			Str("pair", event.Pair.Hex()).
			Str("token", event.TokenAddress.Hex()).
			Uint64("block", event.BlockNumber).
			Msg("pairwatcher: new pair detected")

		w.onPair(event)
	}
}

// decode unpacks a PairCreated log: token0/token1 are indexed topics, the
// pair address is the first data word. Returns ok=false for pairs without a
// wrapped-native side or malformed logs.
func (w *PairWatcher) decode(lg LogEvent) (PairCreated, bool) {
	if len(lg.Topics) < 3 || len(lg.Data) < 32 {
		return PairCreated{}, false
	}

	token0 := common.BytesToAddress(lg.Topics[1].Bytes()[12:])
	token1 := common.BytesToAddress(lg.Topics[2].Bytes()[12:])
	pair := common.BytesToAddress(lg.Data[12:32])

	var tokenAddress common.Address
	switch w.wrappedNative {
	case token0:
		tokenAddress = token1
	case token1:
		tokenAddress = token0
	default:
		// No native counter-asset; not a snipeable pair.
		return PairCreated{}, false
	}

	return PairCreated{
		Factory:      lg.Address,
		Token0:       token0,
		Token1:       token1,
		Pair:         pair,
		TokenAddress: tokenAddress,
		BlockNumber:  lg.BlockNumber,
		TxHash:       lg.TxHash,
	}, true
}

func (w *PairWatcher) handleError(err error) {
	log.Error().Err(err).Str("factory", w.factory.Hex()).Msg("pairwatcher: stream error")
	if w.onError != nil {
		w.onError(err)
	}
}

// Stats returns accepted/dropped event counts.
func (w *PairWatcher) Stats() (accepted, dropped int64) {
	return w.accepted.Load(), w.dropped.Load()
}
