// Package camera models the locker's capture hardware as an exclusive
// resource: acquired while the locker is armed, released once it opens,
// and asked for a still frame when a failed attempt crosses the alert
// threshold.
package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arjunrose/Personal-Locker/internal/config"
)

var (
	ErrNotActive = errors.New("camera not active")
	ErrNoFrame   = errors.New("no usable frame")
	ErrDisabled  = errors.New("camera disabled")
)

// Device is the capture hardware as the engine sees it. Acquire and
// Release are idempotent; CaptureStill returns a base64 still and only
// works while the device is active.
type Device interface {
	Acquire(ctx context.Context) error
	Release()
	CaptureStill(ctx context.Context) (string, error)
	Active() bool
}

func NewDevice(cfg config.CameraConfig, logger *slog.Logger) (Device, error) {
	switch cfg.Mode {
	case "spool":
		return NewSpool(cfg, logger), nil
	case "stub", "":
		return NewStub(), nil
	case "off":
		return Disabled(), nil
	default:
		return nil, fmt.Errorf("unknown camera mode %q", cfg.Mode)
	}
}
