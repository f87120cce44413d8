package camera

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/arjunrose/Personal-Locker/internal/config"
)

// Spool reads stills dropped into a directory by an external frame
// grabber (fswebcam, motion, or similar). A capture picks the newest
// frame no older than the staleness cutoff.
type Spool struct {
	dir           string
	staleAfter    time.Duration
	maxFrameBytes int64
	logger        *slog.Logger

	mu     sync.Mutex
	active bool
}

func NewSpool(cfg config.CameraConfig, logger *slog.Logger) *Spool {
	return &Spool{
		dir:           cfg.SpoolDir,
		staleAfter:    cfg.StaleAfter.Std(),
		maxFrameBytes: cfg.MaxFrameBytes,
		logger:        logger,
	}
}

func (s *Spool) Acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return nil
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("camera spool dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("camera spool path %q is not a directory", s.dir)
	}
	s.active = true
	if s.logger != nil {
		s.logger.Info("camera acquired", "mode", "spool", "dir", s.dir)
	}
	return nil
}

func (s *Spool) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	if s.logger != nil {
		s.logger.Info("camera released", "mode", "spool")
	}
}

func (s *Spool) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Spool) CaptureStill(ctx context.Context) (string, error) {
	if !s.Active() {
		return "", ErrNotActive
	}
	path, err := s.newestFrame()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if int64(len(data)) > s.maxFrameBytes {
		return "", fmt.Errorf("frame %s exceeds %d bytes", filepath.Base(path), s.maxFrameBytes)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (s *Spool) newestFrame() (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", err
	}
	var newest string
	var newestTime time.Time
	cutoff := time.Now().Add(-s.staleAfter)
	for _, entry := range entries {
		if entry.IsDir() || !isFrameName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			continue
		}
		if info.ModTime().After(newestTime) {
			newestTime = info.ModTime()
			newest = filepath.Join(s.dir, entry.Name())
		}
	}
	if newest == "" {
		return "", ErrNoFrame
	}
	return newest, nil
}

func isFrameName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
