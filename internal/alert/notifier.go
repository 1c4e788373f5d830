// Package alert delivers and persists notifications for pool matches and
// trade outcomes. Delivery fans out to pluggable notifiers; every delivered
// alert is also stored with a full metadata snapshot for audit replay.
package alert

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/talon-trading/talon/internal/storage"
)

// Severity levels, ordered.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert type tags.
const (
	TypePoolMatch     = "pool_match"
	TypeTradeExecuted = "trade_executed"
	TypeTradeFailed   = "trade_failed"
)

// Notifier delivers one alert to a channel (log, chat, webhook). A delivery
// failure is the notifier's own problem: the emitter logs it and moves on.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, a *storage.Alert) error
}

// LogNotifier writes alerts to the structured log. Always configured; in
// stub and dry-run modes it is typically the only channel.
type LogNotifier struct{}

func (LogNotifier) Name() string { return "log" }

func (LogNotifier) Notify(_ context.Context, a *storage.Alert) error {
	log.Info().
		Str("alert_id", a.ID).
		Str("alert_type", a.Type).
		Str("severity", a.Severity).
		Str("identity", a.OwnerIdentity).
		Interface("metadata", a.Metadata).
		Msg(a.Message)
	return nil
}

// StubNotifier records alerts for test assertions.
type StubNotifier struct {
	mu     sync.Mutex
	alerts []storage.Alert
	err    error
}

func NewStubNotifier() *StubNotifier { return &StubNotifier{} }

func (s *StubNotifier) Name() string { return "stub" }

func (s *StubNotifier) Notify(_ context.Context, a *storage.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, *a)
	return nil
}

// Fail makes subsequent deliveries return err (nil restores success).
func (s *StubNotifier) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Delivered returns a copy of everything notified so far.
func (s *StubNotifier) Delivered() []storage.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}
