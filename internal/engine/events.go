package engine

import (
	"time"

	"github.com/arjunrose/Personal-Locker/internal/model"
)

type EventKind string

const (
	EventBoot           EventKind = "boot"
	EventDigit          EventKind = "digit"
	EventDelete         EventKind = "delete"
	EventRelock         EventKind = "relock"
	EventTimer          EventKind = "timer"
	EventCaptureResult  EventKind = "capture_result"
	EventAnalysisResult EventKind = "analysis_result"
	EventSettings       EventKind = "settings"
	EventClearLogs      EventKind = "clear_logs"
)

type TimerKind string

const (
	TimerVerify TimerKind = "verify"
	TimerGrant  TimerKind = "grant"
	TimerBreach TimerKind = "breach"
	TimerNotice TimerKind = "notice"
)

// Event is the single message type the controller consumes. Only the
// fields its Kind calls for are set.
type Event struct {
	Kind EventKind

	// EventDigit
	Digit rune

	// EventTimer. Seq is the controller's sequence at schedule time; a
	// mismatch on delivery means the timer was superseded.
	Timer TimerKind
	Seq   uint64

	// EventCaptureResult
	Attempt int
	Image   string
	OK      bool

	// EventAnalysisResult
	LogID    string
	Analysis string

	// EventSettings
	Settings model.Settings
}

type EffectKind string

const (
	EffectScheduleTimer EffectKind = "schedule_timer"
	EffectSavePasscode  EffectKind = "save_passcode"
	EffectSaveSettings  EffectKind = "save_settings"
	EffectSaveLogs      EffectKind = "save_logs"
	EffectAcquireCamera EffectKind = "acquire_camera"
	EffectReleaseCamera EffectKind = "release_camera"
	EffectCapture       EffectKind = "capture"
	EffectNotify        EffectKind = "notify"
)

// Effect is one side effect requested by the controller. The engine
// executes a returned effect list strictly in slice order, which is how
// a capture's log entry is persisted before its alert goes out.
type Effect struct {
	Kind EffectKind

	// EffectScheduleTimer
	Timer TimerKind
	Delay time.Duration
	Seq   uint64

	// EffectSavePasscode
	Passcode string

	// EffectSaveSettings
	Settings model.Settings

	// EffectSaveLogs: a snapshot of the full list, newest first.
	Logs []model.IntruderLog

	// EffectCapture
	Attempt int

	// EffectNotify
	Entry     model.IntruderLog
	Recipient string
}
