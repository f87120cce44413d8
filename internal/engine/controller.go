package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/arjunrose/Personal-Locker/internal/config"
	"github.com/arjunrose/Personal-Locker/internal/model"
	"github.com/arjunrose/Personal-Locker/internal/normalize"
)

// Controller is the locker's state machine. Apply mutates controller
// state only and returns the side effects the step asks for; it never
// blocks or touches I/O, so every delay in the unlock flow shows up as a
// schedule_timer effect. The controller is not safe for concurrent use;
// the engine serializes access.
type Controller struct {
	mode     model.Mode
	status   model.Status
	passcode string
	settings model.Settings
	logs     []model.IntruderLog
	input    []rune
	failed   int
	notice   string

	// phaseSeq stamps verify/grant/breach timers, noticeSeq the notice
	// expiry. A timer firing with an older seq is stale and ignored.
	phaseSeq  uint64
	noticeSeq uint64

	timing config.TimingConfig

	now   func() time.Time
	newID func() string
}

func NewController(timing config.TimingConfig) *Controller {
	return &Controller{
		mode:     model.ModeSetup,
		status:   model.StatusIdle,
		settings: model.DefaultSettings(),
		logs:     []model.IntruderLog{},
		timing:   timing,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Restore seeds the controller with persisted state before the first
// event. A non-empty passcode means the locker comes back armed.
func (c *Controller) Restore(passcode string, settings model.Settings, logs []model.IntruderLog) {
	c.passcode = passcode
	c.settings = normalize.Settings(settings)
	c.logs = normalize.Logs(logs)
	if c.passcode != "" {
		c.mode = model.ModeLocked
	} else {
		c.mode = model.ModeSetup
	}
	c.status = model.StatusIdle
	c.input = c.input[:0]
	c.failed = 0
}

func (c *Controller) UpdateTiming(t config.TimingConfig) {
	c.timing = t
}

func (c *Controller) Apply(ev Event) []Effect {
	switch ev.Kind {
	case EventBoot:
		return c.applyBoot()
	case EventDigit:
		return c.applyDigit(ev.Digit)
	case EventDelete:
		c.applyDelete()
		return nil
	case EventRelock:
		return c.applyRelock()
	case EventTimer:
		return c.applyTimer(ev)
	case EventCaptureResult:
		return c.applyCaptureResult(ev)
	case EventAnalysisResult:
		return c.applyAnalysisResult(ev)
	case EventSettings:
		return c.applySettings(ev.Settings)
	case EventClearLogs:
		return c.applyClearLogs()
	}
	return nil
}

func (c *Controller) applyBoot() []Effect {
	if c.mode == model.ModeLocked {
		return []Effect{{Kind: EffectAcquireCamera}}
	}
	return nil
}

func (c *Controller) applyDigit(d rune) []Effect {
	if d < '0' || d > '9' {
		return nil
	}
	if c.mode == model.ModeUnlocked || c.status != model.StatusIdle {
		return nil
	}
	if len(c.input) >= model.PasscodeLength {
		return nil
	}
	c.input = append(c.input, d)
	if len(c.input) < model.PasscodeLength {
		return nil
	}
	switch c.mode {
	case model.ModeSetup:
		return c.completeSetup(string(c.input))
	case model.ModeLocked:
		return c.beginVerify()
	}
	return nil
}

func (c *Controller) applyDelete() {
	if c.mode == model.ModeUnlocked || c.status != model.StatusIdle {
		return
	}
	if n := len(c.input); n > 0 {
		c.input = c.input[:n-1]
	}
}

// completeSetup stores the chosen passcode and arms the locker.
func (c *Controller) completeSetup(code string) []Effect {
	c.passcode = code
	c.mode = model.ModeLocked
	c.input = c.input[:0]
	c.noticeSeq++
	c.notice = "passcode set"
	return []Effect{
		{Kind: EffectSavePasscode, Passcode: code},
		{Kind: EffectAcquireCamera},
		{Kind: EffectScheduleTimer, Timer: TimerNotice, Delay: c.timing.NoticeTTL.Std(), Seq: c.noticeSeq},
	}
}

// beginVerify enters the checking phase. The verdict lands when the
// verify timer fires; until then further input is ignored.
func (c *Controller) beginVerify() []Effect {
	c.status = model.StatusChecking
	c.phaseSeq++
	return []Effect{{
		Kind:  EffectScheduleTimer,
		Timer: TimerVerify,
		Delay: c.timing.VerifyDelay.Std(),
		Seq:   c.phaseSeq,
	}}
}

func (c *Controller) applyRelock() []Effect {
	if c.mode != model.ModeUnlocked {
		return nil
	}
	c.mode = model.ModeLocked
	c.status = model.StatusIdle
	c.input = c.input[:0]
	return []Effect{{Kind: EffectAcquireCamera}}
}

func (c *Controller) applyTimer(ev Event) []Effect {
	switch ev.Timer {
	case TimerNotice:
		if ev.Seq == c.noticeSeq {
			c.notice = ""
		}
		return nil
	case TimerVerify, TimerGrant, TimerBreach:
		if ev.Seq != c.phaseSeq {
			return nil
		}
	default:
		return nil
	}
	switch ev.Timer {
	case TimerVerify:
		return c.finishVerify()
	case TimerGrant:
		return c.finishGrant()
	case TimerBreach:
		c.finishBreach()
	}
	return nil
}

// finishVerify compares the buffered digits against the stored passcode.
// The comparison is plain string equality on the stored plaintext, same
// as the rest of the product's passcode handling.
func (c *Controller) finishVerify() []Effect {
	if c.status != model.StatusChecking {
		return nil
	}
	if string(c.input) == c.passcode {
		c.status = model.StatusGranted
		c.failed = 0
		c.phaseSeq++
		return []Effect{{
			Kind:  EffectScheduleTimer,
			Timer: TimerGrant,
			Delay: c.timing.GrantDelay.Std(),
			Seq:   c.phaseSeq,
		}}
	}
	c.status = model.StatusBreach
	c.failed++
	c.phaseSeq++
	effects := make([]Effect, 0, 2)
	if c.settings.EnableCapture && c.failed >= c.settings.TriggerThreshold {
		effects = append(effects, Effect{Kind: EffectCapture, Attempt: c.failed})
	}
	effects = append(effects, Effect{
		Kind:  EffectScheduleTimer,
		Timer: TimerBreach,
		Delay: c.timing.BreachDelay.Std(),
		Seq:   c.phaseSeq,
	})
	return effects
}

func (c *Controller) finishGrant() []Effect {
	if c.status != model.StatusGranted {
		return nil
	}
	c.mode = model.ModeUnlocked
	c.status = model.StatusIdle
	c.input = c.input[:0]
	return []Effect{{Kind: EffectReleaseCamera}}
}

func (c *Controller) finishBreach() {
	if c.status != model.StatusBreach {
		return
	}
	c.status = model.StatusIdle
	c.input = c.input[:0]
}

// applyCaptureResult turns a finished capture into a new intruder log
// entry. The entry is persisted before the notify effect runs, and a
// failed capture leaves no trace.
func (c *Controller) applyCaptureResult(ev Event) []Effect {
	if !ev.OK {
		return nil
	}
	entry := model.IntruderLog{
		ID:            c.newID(),
		Timestamp:     c.now().UnixMilli(),
		ImageData:     ev.Image,
		AttemptNumber: ev.Attempt,
	}
	c.logs = append([]model.IntruderLog{entry}, c.logs...)
	effects := []Effect{
		{Kind: EffectSaveLogs, Logs: c.logsSnapshot()},
		{Kind: EffectNotify, Entry: entry, Recipient: c.settings.AlertEmail},
	}
	if c.settings.AlertEmail != "" {
		c.noticeSeq++
		c.notice = "alert sent to " + c.settings.AlertEmail
		effects = append(effects, Effect{
			Kind:  EffectScheduleTimer,
			Timer: TimerNotice,
			Delay: c.timing.NoticeTTL.Std(),
			Seq:   c.noticeSeq,
		})
	}
	return effects
}

// applyAnalysisResult attaches a description to the entry it was
// requested for. A result for an entry that has since been cleared is
// dropped.
func (c *Controller) applyAnalysisResult(ev Event) []Effect {
	for i := range c.logs {
		if c.logs[i].ID == ev.LogID {
			c.logs[i].AIAnalysis = ev.Analysis
			return []Effect{{Kind: EffectSaveLogs, Logs: c.logsSnapshot()}}
		}
	}
	return nil
}

func (c *Controller) applySettings(s model.Settings) []Effect {
	c.settings = normalize.Settings(s)
	return []Effect{{Kind: EffectSaveSettings, Settings: c.settings}}
}

func (c *Controller) applyClearLogs() []Effect {
	c.logs = []model.IntruderLog{}
	return []Effect{{Kind: EffectSaveLogs, Logs: c.logsSnapshot()}}
}

func (c *Controller) logsSnapshot() []model.IntruderLog {
	out := make([]model.IntruderLog, len(c.logs))
	copy(out, c.logs)
	return out
}

func (c *Controller) Mode() model.Mode { return c.mode }

func (c *Controller) Status() model.Status { return c.status }

func (c *Controller) InputLength() int { return len(c.input) }

func (c *Controller) FailedAttempts() int { return c.failed }

func (c *Controller) Settings() model.Settings { return c.settings }

func (c *Controller) Notice() string { return c.notice }

// Logs returns up to limit entries, newest first. limit <= 0 means all.
func (c *Controller) Logs(limit int) []model.IntruderLog {
	if limit <= 0 || limit > len(c.logs) {
		limit = len(c.logs)
	}
	out := make([]model.IntruderLog, limit)
	copy(out, c.logs[:limit])
	return out
}

func (c *Controller) logByID(id string) (model.IntruderLog, bool) {
	for _, l := range c.logs {
		if l.ID == id {
			return l, true
		}
	}
	return model.IntruderLog{}, false
}
