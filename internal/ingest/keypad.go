// Package ingest feeds keypad input into the engine. The bridge accepts
// plain TCP connections carrying one key token per line, which is how
// the physical keypad controller talks to the daemon.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/arjunrose/Personal-Locker/internal/config"
	"github.com/arjunrose/Personal-Locker/internal/normalize"
)

// Keypad is the engine surface the bridge feeds. *engine.Engine
// satisfies it.
type Keypad interface {
	PressKey(k normalize.Key) bool
}

func StartKeypad(ctx context.Context, cfg *config.Manager, keypad Keypad, logger *slog.Logger) {
	current := cfg.Get().Keypad
	if !current.Enabled {
		if logger != nil {
			logger.Info("keypad bridge disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("keypad bridge enabled", "addr", current.Addr)
	}
	ln, err := net.Listen("tcp", current.Addr)
	if err != nil {
		if logger != nil {
			logger.Error("keypad bridge listen error", "err", err)
		}
		return
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				if logger != nil {
					logger.Warn("keypad bridge accept error", "err", err)
				}
				continue
			}
			go handleKeypadConn(ctx, conn, keypad, logger)
		}
	}()
}

func handleKeypadConn(ctx context.Context, conn net.Conn, keypad Keypad, logger *slog.Logger) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024), 64*1024)
	for scanner.Scan() {
		key, err := normalize.ParseKey(scanner.Text())
		if err != nil {
			if !errors.Is(err, normalize.ErrEmptyKey) && logger != nil {
				logger.Warn("keypad bridge dropped token", "err", err)
			}
			continue
		}
		// the engine logs and counts dropped presses
		keypad.PressKey(key)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
	if err := scanner.Err(); err != nil && logger != nil {
		logger.Warn("keypad bridge connection error", "err", err)
	}
}
