package camera

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arjunrose/Personal-Locker/internal/config"
	"github.com/arjunrose/Personal-Locker/internal/timex"
)

func spoolConfig(dir string) config.CameraConfig {
	return config.CameraConfig{
		Mode:          "spool",
		SpoolDir:      dir,
		StaleAfter:    timex.Duration(time.Minute),
		MaxFrameBytes: 1 << 20,
	}
}

func writeFrame(t *testing.T, dir, name string, data []byte, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if age > 0 {
		old := time.Now().Add(-age)
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("age frame: %v", err)
		}
	}
	return path
}

func TestSpoolCapturesNewestFrame(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "older.jpg", []byte("old-frame"), 30*time.Second)
	writeFrame(t, dir, "newest.jpg", []byte("new-frame"), 0)
	writeFrame(t, dir, "notes.txt", []byte("not a frame"), 0)

	s := NewSpool(spoolConfig(dir), nil)
	ctx := context.Background()
	if err := s.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	got, err := s.CaptureStill(ctx)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	want := base64.StdEncoding.EncodeToString([]byte("new-frame"))
	if got != want {
		t.Fatalf("captured wrong frame: %q", got)
	}
}

func TestSpoolSkipsStaleFrames(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "ancient.jpg", []byte("x"), 10*time.Minute)

	s := NewSpool(spoolConfig(dir), nil)
	ctx := context.Background()
	if err := s.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := s.CaptureStill(ctx); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame, got %v", err)
	}
}

func TestSpoolRejectsOversizeFrame(t *testing.T) {
	dir := t.TempDir()
	cfg := spoolConfig(dir)
	cfg.MaxFrameBytes = 4
	writeFrame(t, dir, "big.jpg", []byte("way too large"), 0)

	s := NewSpool(cfg, nil)
	ctx := context.Background()
	if err := s.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := s.CaptureStill(ctx); err == nil {
		t.Fatal("oversize frame accepted")
	}
}

func TestSpoolLifecycle(t *testing.T) {
	dir := t.TempDir()
	s := NewSpool(spoolConfig(dir), nil)
	ctx := context.Background()

	if _, err := s.CaptureStill(ctx); !errors.Is(err, ErrNotActive) {
		t.Fatalf("capture before acquire: %v", err)
	}
	if err := s.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	// second acquire is a no-op
	if err := s.Acquire(ctx); err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	if !s.Active() {
		t.Fatal("not active after acquire")
	}
	s.Release()
	s.Release()
	if s.Active() {
		t.Fatal("active after release")
	}
}

func TestSpoolAcquireMissingDir(t *testing.T) {
	cfg := spoolConfig(filepath.Join(t.TempDir(), "nope"))
	s := NewSpool(cfg, nil)
	if err := s.Acquire(context.Background()); err == nil {
		t.Fatal("acquire on missing dir succeeded")
	}
}

func TestStubDevice(t *testing.T) {
	s := NewStub()
	ctx := context.Background()
	if _, err := s.CaptureStill(ctx); !errors.Is(err, ErrNotActive) {
		t.Fatalf("capture before acquire: %v", err)
	}
	if err := s.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	frame, err := s.CaptureStill(ctx)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if frame != stubFrame {
		t.Fatal("stub returned unexpected frame")
	}
}

func TestDisabledDevice(t *testing.T) {
	d := Disabled()
	if err := d.Acquire(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if d.Active() {
		t.Fatal("disabled device reports active")
	}
}

func TestNewDevice(t *testing.T) {
	if _, err := NewDevice(config.CameraConfig{Mode: "stub"}, nil); err != nil {
		t.Fatalf("stub: %v", err)
	}
	if _, err := NewDevice(config.CameraConfig{Mode: "off"}, nil); err != nil {
		t.Fatalf("off: %v", err)
	}
	if _, err := NewDevice(config.CameraConfig{Mode: "webcam9000"}, nil); err == nil {
		t.Fatal("unknown mode accepted")
	}
}
