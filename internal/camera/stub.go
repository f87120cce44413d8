package camera

import (
	"context"
	"sync"
)

// stubFrame is a 1x1 PNG, already base64, served by the stub device.
const stubFrame = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// Stub is the development device: it always acquires and every capture
// returns the same embedded frame.
type Stub struct {
	mu     sync.Mutex
	active bool
}

func NewStub() *Stub { return &Stub{} }

func (s *Stub) Acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	return nil
}

func (s *Stub) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

func (s *Stub) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Stub) CaptureStill(ctx context.Context) (string, error) {
	if !s.Active() {
		return "", ErrNotActive
	}
	return stubFrame, nil
}

// Disabled returns the device used for camera.mode "off": acquisition
// always fails, so every capture attempt is skipped.
func Disabled() Device { return disabledDevice{} }

type disabledDevice struct{}

func (disabledDevice) Acquire(context.Context) error { return ErrDisabled }

func (disabledDevice) Release() {}

func (disabledDevice) Active() bool { return false }

func (disabledDevice) CaptureStill(context.Context) (string, error) {
	return "", ErrNotActive
}
