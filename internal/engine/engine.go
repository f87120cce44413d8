package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arjunrose/Personal-Locker/internal/analysis"
	"github.com/arjunrose/Personal-Locker/internal/camera"
	"github.com/arjunrose/Personal-Locker/internal/config"
	"github.com/arjunrose/Personal-Locker/internal/metrics"
	"github.com/arjunrose/Personal-Locker/internal/model"
	"github.com/arjunrose/Personal-Locker/internal/normalize"
	"github.com/arjunrose/Personal-Locker/internal/storage"
)

var (
	ErrUnknownLog      = errors.New("unknown intruder log")
	ErrAnalysisPending = errors.New("analysis already running")
)

// Notifier is the alert fan-out fired after a capture is persisted.
// *notify.Dispatcher satisfies it.
type Notifier interface {
	Dispatch(ctx context.Context, recipient string, entry model.IntruderLog)
}

// Engine owns the controller and executes its effects: store writes,
// camera acquire/release, timers, captures, analyses, alerts. Every
// event, wherever it comes from, runs to completion under one mutex, so
// effect execution keeps the order the controller asked for.
type Engine struct {
	logger   *slog.Logger
	metrics  *metrics.Store
	store    storage.Store
	camera   camera.Device
	analyzer analysis.Analyzer
	notifier Notifier

	queue   chan Event
	pending *PendingSet
	started time.Time

	mu   sync.Mutex
	ctrl *Controller

	// afterFunc is swapped out by tests to drive timers by hand.
	afterFunc func(d time.Duration, fn func())
}

func NewEngine(cfg *config.Config, logger *slog.Logger, metricsStore *metrics.Store, store storage.Store, cam camera.Device, analyzer analysis.Analyzer, notifier Notifier) *Engine {
	queueSize := cfg.Engine.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Engine{
		logger:   logger,
		metrics:  metricsStore,
		store:    store,
		camera:   cam,
		analyzer: analyzer,
		notifier: notifier,
		queue:    make(chan Event, queueSize),
		pending:  NewPendingSet(),
		started:  time.Now().UTC(),
		ctrl:     NewController(cfg.Timing),
		afterFunc: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
}

// Boot restores persisted state and re-arms the camera when the locker
// comes back locked. Call it once before Start.
func (e *Engine) Boot(ctx context.Context) error {
	var (
		code     string
		settings = model.DefaultSettings()
		logs     []model.IntruderLog
	)
	if e.store != nil {
		var err error
		code, err = e.store.LoadPasscode(ctx)
		if err != nil {
			return fmt.Errorf("load passcode: %w", err)
		}
		settings, err = e.store.LoadSettings(ctx)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		logs, err = e.store.LoadLogs(ctx)
		if err != nil {
			return fmt.Errorf("load intruder logs: %w", err)
		}
	}
	if code != "" && !normalize.Passcode(code) {
		if e.logger != nil {
			e.logger.Warn("stored passcode is malformed, falling back to setup mode")
		}
		code = ""
	}
	e.mu.Lock()
	e.ctrl.Restore(code, settings, logs)
	mode := e.ctrl.Mode()
	e.mu.Unlock()
	if e.logger != nil {
		e.logger.Info("locker state restored", "mode", mode, "intruder_logs", len(logs))
	}
	e.dispatch(Event{Kind: EventBoot})
	return nil
}

// Start runs the event loop until ctx is done.
func (e *Engine) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case ev := <-e.queue:
				e.dispatch(ev)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Submit queues ev and blocks while the queue is full. Timer, capture
// and analysis completions use it; they must never be lost.
func (e *Engine) Submit(ev Event) {
	e.queue <- ev
}

// TrySubmit queues ev unless the queue is full. Keypad input tolerates
// loss; a dropped key is a missed press, not corrupted state.
func (e *Engine) TrySubmit(ev Event) bool {
	select {
	case e.queue <- ev:
		return true
	default:
		if e.logger != nil {
			e.logger.Warn("event queue full, dropping event", "kind", ev.Kind)
		}
		if e.metrics != nil {
			e.metrics.Inc(metrics.DroppedEvents)
		}
		return false
	}
}

// dispatch is one run-to-completion step: apply the event, account for
// the transition, execute the effects. Everything happens under the
// mutex so steps from the queue loop and from API calls never interleave.
func (e *Engine) dispatch(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	preMode := e.ctrl.Mode()
	preStatus := e.ctrl.Status()
	effects := e.ctrl.Apply(ev)
	if ev.Kind == EventAnalysisResult {
		e.pending.Unmark(ev.LogID)
	}
	e.account(ev, preMode, preStatus)
	e.execute(effects)
}

func (e *Engine) account(ev Event, preMode model.Mode, preStatus model.Status) {
	if e.metrics == nil {
		return
	}
	status := e.ctrl.Status()
	if preStatus == model.StatusChecking && status == model.StatusGranted {
		e.metrics.Inc(metrics.Attempts)
	}
	if preStatus == model.StatusChecking && status == model.StatusBreach {
		e.metrics.Inc(metrics.Attempts)
		e.metrics.Inc(metrics.Failures)
	}
	if preMode != model.ModeUnlocked && e.ctrl.Mode() == model.ModeUnlocked {
		e.metrics.Inc(metrics.Unlocks)
	}
	if ev.Kind == EventCaptureResult {
		if ev.OK {
			e.metrics.Inc(metrics.Captures)
		} else {
			e.metrics.Inc(metrics.CaptureFailures)
		}
	}
	if ev.Kind == EventAnalysisResult {
		e.metrics.Inc(metrics.Analyses)
	}
}

func (e *Engine) execute(effects []Effect) {
	for _, eff := range effects {
		switch eff.Kind {
		case EffectScheduleTimer:
			e.scheduleTimer(eff)
		case EffectSavePasscode:
			if e.store != nil {
				if err := e.store.SavePasscode(context.Background(), eff.Passcode); err != nil {
					e.warn("persist passcode failed", err)
				}
			}
		case EffectSaveSettings:
			if e.store != nil {
				if err := e.store.SaveSettings(context.Background(), eff.Settings); err != nil {
					e.warn("persist settings failed", err)
				}
			}
		case EffectSaveLogs:
			if e.store != nil {
				if err := e.store.SaveLogs(context.Background(), eff.Logs); err != nil {
					e.warn("persist intruder logs failed", err)
				}
			}
		case EffectAcquireCamera:
			if e.camera != nil {
				if err := e.camera.Acquire(context.Background()); err != nil {
					e.warn("camera acquire failed", err)
				}
			}
		case EffectReleaseCamera:
			if e.camera != nil {
				e.camera.Release()
			}
		case EffectCapture:
			e.startCapture(eff.Attempt)
		case EffectNotify:
			e.startNotify(eff.Recipient, eff.Entry)
		}
	}
}

func (e *Engine) scheduleTimer(eff Effect) {
	timer := eff.Timer
	seq := eff.Seq
	e.afterFunc(eff.Delay, func() {
		e.Submit(Event{Kind: EventTimer, Timer: timer, Seq: seq})
	})
}

// startCapture grabs a still off the event loop. The result re-enters as
// an event; a failed grab comes back not-OK and the attempt leaves no
// trace.
func (e *Engine) startCapture(attempt int) {
	cam := e.camera
	go func() {
		ev := Event{Kind: EventCaptureResult, Attempt: attempt}
		if cam != nil {
			image, err := cam.CaptureStill(context.Background())
			if err != nil {
				if e.logger != nil {
					e.logger.Debug("capture skipped", "attempt", attempt, "reason", err)
				}
			} else {
				ev.Image = image
				ev.OK = true
			}
		}
		e.Submit(ev)
	}()
}

func (e *Engine) startNotify(recipient string, entry model.IntruderLog) {
	if e.notifier == nil {
		return
	}
	go e.notifier.Dispatch(context.Background(), recipient, entry)
}

func (e *Engine) warn(msg string, err error) {
	if e.logger != nil {
		e.logger.Warn(msg, "error", err)
	}
}

// UpdateConfig applies a reloaded config's timing to the controller.
func (e *Engine) UpdateConfig(cfg *config.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ctrl.UpdateTiming(cfg.Timing)
}

// Snapshot is the controller state exposed over the API.
type Snapshot struct {
	Mode           model.Mode     `json:"mode"`
	Status         model.Status   `json:"verification_status"`
	InputLength    int            `json:"input_length"`
	FailedAttempts int            `json:"failed_attempts"`
	Settings       model.Settings `json:"settings"`
	Notice         string         `json:"notice,omitempty"`
	CameraActive   bool           `json:"camera_active"`
	Analyzing      []string       `json:"analyzing,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{
		Mode:           e.ctrl.Mode(),
		Status:         e.ctrl.Status(),
		InputLength:    e.ctrl.InputLength(),
		FailedAttempts: e.ctrl.FailedAttempts(),
		Settings:       e.ctrl.Settings(),
		Notice:         e.ctrl.Notice(),
		Analyzing:      e.pending.List(),
		StartedAt:      e.started,
	}
	if e.camera != nil {
		snap.CameraActive = e.camera.Active()
	}
	return snap
}

// PressKey feeds one keypad key into the event queue.
func (e *Engine) PressKey(k normalize.Key) bool {
	switch k.Kind {
	case normalize.KeyDigit:
		return e.TrySubmit(Event{Kind: EventDigit, Digit: k.Digit})
	case normalize.KeyDelete:
		return e.TrySubmit(Event{Kind: EventDelete})
	case normalize.KeyRelock:
		return e.TrySubmit(Event{Kind: EventRelock})
	}
	return false
}

// Relock arms an unlocked locker again, synchronously.
func (e *Engine) Relock() Snapshot {
	e.dispatch(Event{Kind: EventRelock})
	return e.Snapshot()
}

// UpdateSettings normalizes, applies and persists new settings,
// returning what was stored.
func (e *Engine) UpdateSettings(s model.Settings) model.Settings {
	e.dispatch(Event{Kind: EventSettings, Settings: s})
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctrl.Settings()
}

// IntruderLogs returns up to limit entries, newest first.
func (e *Engine) IntruderLogs(limit int) []model.IntruderLog {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctrl.Logs(limit)
}

// ClearLogs empties the intruder log list and persists the empty list.
func (e *Engine) ClearLogs() {
	e.dispatch(Event{Kind: EventClearLogs})
}

// Analyze kicks off a description of the captured frame for id. The
// result re-enters the event loop; if the entry is gone by then the
// text is dropped.
func (e *Engine) Analyze(id string) error {
	e.mu.Lock()
	entry, ok := e.ctrl.logByID(id)
	e.mu.Unlock()
	if !ok {
		return ErrUnknownLog
	}
	if !e.pending.Mark(id) {
		return ErrAnalysisPending
	}
	go func() {
		text := analysis.FallbackDescription
		if e.analyzer != nil {
			text = e.analyzer.Describe(context.Background(), entry.ImageData)
		}
		e.Submit(Event{Kind: EventAnalysisResult, LogID: id, Analysis: text})
	}()
	return nil
}

// StartedAt reports when the engine was constructed, for uptime display.
func (e *Engine) StartedAt() time.Time {
	return e.started
}
