package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// WebSocket Event Source — real-time contract log subscription via
// eth_subscribe("logs"). Reconnects with backoff; at-least-once delivery in
// block order while subscribed.
// ---------------------------------------------------------------------------

// LogEvent is one decoded-enough contract log: raw topics/data plus block
// placement. ABI decoding happens in the subscriber's callback.
type LogEvent struct {
	Address     common.Address `json:"address"`
	Topics      []common.Hash  `json:"topics"`
	Data        []byte         `json:"data"`
	BlockNumber uint64         `json:"block_number"`
	TxHash      common.Hash    `json:"tx_hash"`
	Removed     bool           `json:"removed"`
}

// OnLogs receives batches of matching logs.
type OnLogs func(logs []LogEvent)

// OnError receives node/stream errors. Errors are delivered here and never
// panic into the subscriber's stack; the subscriber decides whether to drop
// the subscription.
type OnError func(err error)

// Source is the contract log subscription interface.
type Source interface {
	// Subscribe watches the contract for the named event and returns an
	// unsubscribe function. The eventABI is the JSON ABI fragment
	// containing the event definition.
	Subscribe(contract common.Address, eventABI, eventName string, onLogs OnLogs, onError OnError) (func(), error)
}

// WSSourceConfig configures the websocket log source.
type WSSourceConfig struct {
	WSEndpoint       string `yaml:"ws_endpoint"`
	ReconnectDelayMs int    `yaml:"reconnect_delay_ms"`
	PingIntervalS    int    `yaml:"ping_interval_s"`
}

// DefaultWSSourceConfig returns mainnet-friendly defaults.
func DefaultWSSourceConfig(endpoint string) WSSourceConfig {
	return WSSourceConfig{
		WSEndpoint:       endpoint,
		ReconnectDelayMs: 1000,
		PingIntervalS:    30,
	}
}

// WSSource implements Source over a raw JSON-RPC websocket.
type WSSource struct {
	config WSSourceConfig

	messagesRecv atomic.Int64
	logsDetected atomic.Int64
	reconnects   atomic.Int64
}

var _ Source = (*WSSource)(nil)

// NewWSSource creates a websocket log source.
func NewWSSource(config WSSourceConfig) *WSSource {
	return &WSSource{config: config}
}

// Subscribe opens a dedicated websocket session for the (contract, event)
// pair. The session reconnects with exponential backoff until unsubscribed;
// every failure is also reported to onError.
func (s *WSSource) Subscribe(contract common.Address, eventABI, eventName string, onLogs OnLogs, onError OnError) (func(), error) {
	parsed, err := abi.JSON(strings.NewReader(eventABI))
	if err != nil {
		return nil, fmt.Errorf("eventsource: parse ABI: %w", err)
	}
	event, ok := parsed.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("eventsource: event %q not in ABI", eventName)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &wsSession{
		source:   s,
		contract: contract,
		topic0:   event.ID,
		onLogs:   onLogs,
		onError:  onError,
	}
	go sess.run(ctx)

	return cancel, nil
}

// wsSession is one live subscription: connection, read loop, reconnects.
type wsSession struct {
	source   *WSSource
	contract common.Address
	topic0   common.Hash
	onLogs   OnLogs
	onError  OnError

	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsSession) run(ctx context.Context) {
	cfg := w.source.config
	baseDelay := time.Duration(cfg.ReconnectDelayMs) * time.Millisecond
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	delay := baseDelay
	const maxDelay = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			w.closeConn()
			return
		default:
		}

		if err := w.connectAndStream(ctx); err != nil && ctx.Err() == nil {
			w.source.reconnects.Add(1)
			w.report(err)
			log.Warn().
				Err(err).
				Str("contract", w.contract.Hex()).
				Dur("retry_in", delay).
				Msg("eventsource: stream dropped, reconnecting")

			select {
			case <-time.After(delay):
				delay *= 2
				if delay > maxDelay {
					delay = maxDelay
				}
			case <-ctx.Done():
				return
			}
			continue
		}

		delay = baseDelay
	}
}

func (w *wsSession) report(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}

func (w *wsSession) closeConn() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}

// subscribeRequest is the eth_subscribe("logs") frame.
type subscribeRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcEnvelope struct {
	ID     int             `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Params *struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

// rawLog is the wire shape of a subscription log notification.
type rawLog struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
	Removed         bool     `json:"removed"`
}

func (w *wsSession) connectAndStream(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, w.source.config.WSEndpoint, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial %s: %w", w.source.config.WSEndpoint, err)
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
	defer w.closeConn()

	req := subscribeRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_subscribe",
		Params: []any{
			"logs",
			map[string]any{
				"address": []string{strings.ToLower(w.contract.Hex())},
				"topics":  [][]string{{w.topic0.Hex()}},
			},
		},
	}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("subscribe write: %w", err)
	}

	log.Info().
		Str("contract", w.contract.Hex()).
		Str("topic0", w.topic0.Hex()).
		Msg("eventsource: subscription active")

	// Keepalive pings so idle subscriptions survive aggressive proxies.
	pingInterval := time.Duration(w.source.config.PingIntervalS) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.mu.Lock()
				c := w.conn
				w.mu.Unlock()
				if c == nil {
					return
				}
				c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			case <-pingDone:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		var env rpcEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		w.source.messagesRecv.Add(1)

		if env.Error != nil {
			w.report(fmt.Errorf("eventsource: node error %d: %s", env.Error.Code, env.Error.Message))
			continue
		}
		if env.Method != "eth_subscription" || env.Params == nil {
			continue
		}

		var raw rawLog
		if err := json.Unmarshal(env.Params.Result, &raw); err != nil {
			w.report(fmt.Errorf("eventsource: malformed log: %w", err))
			continue
		}

		event, err := decodeRawLog(raw)
		if err != nil {
			w.report(err)
			continue
		}

		w.source.logsDetected.Add(1)
		w.onLogs([]LogEvent{event})
	}
}

func decodeRawLog(raw rawLog) (LogEvent, error) {
	data, err := hexutil.Decode(raw.Data)
	if err != nil && raw.Data != "" && raw.Data != "0x" {
		return LogEvent{}, fmt.Errorf("eventsource: decode log data: %w", err)
	}

	var blockNumber uint64
	if raw.BlockNumber != "" {
		n, err := hexutil.DecodeUint64(raw.BlockNumber)
		if err != nil {
			return LogEvent{}, fmt.Errorf("eventsource: decode block number: %w", err)
		}
		blockNumber = n
	}

	topics := make([]common.Hash, 0, len(raw.Topics))
	for _, t := range raw.Topics {
		topics = append(topics, common.HexToHash(t))
	}

	return LogEvent{
		Address:     common.HexToAddress(raw.Address),
		Topics:      topics,
		Data:        data,
		BlockNumber: blockNumber,
		TxHash:      common.HexToHash(raw.TransactionHash),
		Removed:     raw.Removed,
	}, nil
}

// Stats returns stream counters for observability.
func (s *WSSource) Stats() (messages, logs, reconnects int64) {
	return s.messagesRecv.Load(), s.logsDetected.Load(), s.reconnects.Load()
}

// ---------------------------------------------------------------------------
// Stub source (testing)
// ---------------------------------------------------------------------------

// StubSource is an in-memory Source for tests. Emit pushes logs to every
// active subscriber.
type StubSource struct {
	mu   sync.Mutex
	subs map[int]struct {
		onLogs  OnLogs
		onError OnError
	}
	nextID       int
	subscribeErr error
}

var _ Source = (*StubSource)(nil)

// NewStubSource creates an empty stub source.
func NewStubSource() *StubSource {
	return &StubSource{subs: make(map[int]struct {
		onLogs  OnLogs
		onError OnError
	})}
}

// FailSubscribe makes subsequent Subscribe calls return err.
func (s *StubSource) FailSubscribe(err error) {
	s.mu.Lock()
	s.subscribeErr = err
	s.mu.Unlock()
}

func (s *StubSource) Subscribe(_ common.Address, _, _ string, onLogs OnLogs, onError OnError) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = struct {
		onLogs  OnLogs
		onError OnError
	}{onLogs, onError}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}, nil
}

// Emit delivers logs to all subscribers.
func (s *StubSource) Emit(logs []LogEvent) {
	s.mu.Lock()
	subs := make([]OnLogs, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub.onLogs)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(logs)
	}
}

// EmitError delivers an error to all subscribers.
func (s *StubSource) EmitError(err error) {
	s.mu.Lock()
	subs := make([]OnError, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub.onError)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		if fn != nil {
			fn(err)
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (s *StubSource) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
