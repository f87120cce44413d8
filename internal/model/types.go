package model

import "time"

// Mode is the locker's persistent lifecycle state. It survives restarts:
// a locker with a stored passcode always boots into ModeLocked.
type Mode string

const (
	ModeSetup    Mode = "setup"
	ModeLocked   Mode = "locked"
	ModeUnlocked Mode = "unlocked"
)

// Status is the transient verification phase shown while a passcode
// submission is in flight. It is never persisted.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusChecking Status = "checking"
	StatusBreach   Status = "breach_detected"
	StatusGranted  Status = "granted"
)

// PasscodeLength is the fixed number of digits in a passcode. Submission
// fires exactly when the input buffer reaches this length.
const PasscodeLength = 4

const (
	ThresholdMin = 1
	ThresholdMax = 5
)

// Settings is the user-tunable alerting configuration. Every change is
// written through to the store immediately.
type Settings struct {
	AlertEmail       string `json:"alert_email"`
	TriggerThreshold int    `json:"trigger_threshold"`
	EnableCapture    bool   `json:"enable_capture"`
}

func DefaultSettings() Settings {
	return Settings{
		AlertEmail:       "",
		TriggerThreshold: 1,
		EnableCapture:    true,
	}
}

// IntruderLog is one captured failed-attempt record. ImageData holds the
// raw base64 frame; AIAnalysis is empty until a description is attached.
type IntruderLog struct {
	ID            string `json:"id"`
	Timestamp     int64  `json:"timestamp"`
	ImageData     string `json:"image_data"`
	AttemptNumber int    `json:"attempt_number"`
	AIAnalysis    string `json:"ai_analysis,omitempty"`
}

// AlertRecord is one delivery attempt on one notification channel, kept
// in the in-memory alert ring for inspection over the API.
type AlertRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	Channel       string    `json:"channel"`
	Recipient     string    `json:"recipient"`
	LogID         string    `json:"log_id"`
	AttemptNumber int       `json:"attempt_number"`
	Err           string    `json:"error,omitempty"`
}
