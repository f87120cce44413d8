// Package notify delivers intruder alerts after a captured break-in
// attempt. Delivery is fire-and-forget: failures are recorded in the
// alert history and logged, never retried or propagated back into the
// engine.
package notify

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/arjunrose/Personal-Locker/internal/alerts"
	"github.com/arjunrose/Personal-Locker/internal/config"
	"github.com/arjunrose/Personal-Locker/internal/metrics"
	"github.com/arjunrose/Personal-Locker/internal/model"
)

// Notifier is one delivery channel for intruder alerts.
type Notifier interface {
	Name() string
	Send(ctx context.Context, recipient string, entry model.IntruderLog) error
}

// Dispatcher fans captured entries out to the configured channels and
// records every delivery attempt.
type Dispatcher struct {
	logger  *slog.Logger
	history *alerts.Store
	metrics *metrics.Store

	mu       sync.RWMutex
	channels []Notifier
}

func NewDispatcher(cfg config.AlertsConfig, history *alerts.Store, met *metrics.Store, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{logger: logger, history: history, metrics: met}
	d.Update(cfg)
	return d
}

// Update swaps in the channel set from cfg and closes the replaced one.
func (d *Dispatcher) Update(cfg config.AlertsConfig) {
	chs := buildChannels(cfg, d.logger)
	d.mu.Lock()
	old := d.channels
	d.channels = chs
	d.mu.Unlock()
	closeAll(old)
}

func (d *Dispatcher) Close() {
	d.mu.Lock()
	old := d.channels
	d.channels = nil
	d.mu.Unlock()
	closeAll(old)
}

// Dispatch sends one captured entry to every channel. An empty recipient
// disables alerting entirely.
func (d *Dispatcher) Dispatch(ctx context.Context, recipient string, entry model.IntruderLog) {
	if strings.TrimSpace(recipient) == "" {
		return
	}
	d.mu.RLock()
	channels := d.channels
	d.mu.RUnlock()
	for _, ch := range channels {
		rec := model.AlertRecord{
			Timestamp:     time.Now().UTC(),
			Channel:       ch.Name(),
			Recipient:     recipient,
			LogID:         entry.ID,
			AttemptNumber: entry.AttemptNumber,
		}
		if err := ch.Send(ctx, recipient, entry); err != nil {
			rec.Err = err.Error()
			if d.metrics != nil {
				d.metrics.Inc(metrics.AlertFailures)
			}
			if d.logger != nil {
				d.logger.Warn("alert delivery failed", "channel", ch.Name(), "error", err)
			}
		} else if d.metrics != nil {
			d.metrics.Inc(metrics.AlertsSent)
		}
		if d.history != nil {
			d.history.Add(rec)
		}
	}
}

func buildChannels(cfg config.AlertsConfig, logger *slog.Logger) []Notifier {
	out := make([]Notifier, 0, len(cfg.Channels))
	for _, name := range cfg.Channels {
		switch name {
		case "log":
			out = append(out, NewLog(logger))
		case "email":
			out = append(out, NewEmail(cfg.Email))
		case "kafka":
			out = append(out, NewKafka(cfg.Kafka))
		}
	}
	return out
}

func closeAll(chs []Notifier) {
	for _, ch := range chs {
		if c, ok := ch.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

// Log writes the alert to the daemon log. It stands in for real delivery
// on installations with no mail or broker configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log { return &Log{logger: logger} }

func (l *Log) Name() string { return "log" }

func (l *Log) Send(ctx context.Context, recipient string, entry model.IntruderLog) error {
	if l.logger == nil {
		return nil
	}
	l.logger.Warn("intruder alert",
		"recipient", recipient,
		"log_id", entry.ID,
		"attempt", entry.AttemptNumber,
		"captured_at", time.UnixMilli(entry.Timestamp).UTC().Format(time.RFC3339),
	)
	return nil
}
