package ingest

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"

	"github.com/arjunrose/Personal-Locker/internal/normalize"
)

type fakeKeypad struct {
	mu   sync.Mutex
	keys []normalize.Key
}

func (f *fakeKeypad) PressKey(k normalize.Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, k)
	return true
}

func (f *fakeKeypad) pressed() []normalize.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]normalize.Key, len(f.keys))
	copy(out, f.keys)
	return out
}

func TestKeypadConnTokens(t *testing.T) {
	client, server := net.Pipe()
	fake := &fakeKeypad{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	done := make(chan struct{})
	go func() {
		handleKeypadConn(context.Background(), server, fake, logger)
		close(done)
	}()

	// unknown tokens and blank lines are skipped, the rest go through
	if _, err := client.Write([]byte("5\n\ndel\nbogus\nRELOCK\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	client.Close()
	<-done

	keys := fake.pressed()
	if len(keys) != 3 {
		t.Fatalf("keys = %+v", keys)
	}
	if keys[0].Kind != normalize.KeyDigit || keys[0].Digit != '5' {
		t.Fatalf("first key = %+v", keys[0])
	}
	if keys[1].Kind != normalize.KeyDelete {
		t.Fatalf("second key = %+v", keys[1])
	}
	if keys[2].Kind != normalize.KeyRelock {
		t.Fatalf("third key = %+v", keys[2])
	}
}
