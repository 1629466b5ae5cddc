package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe for the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerDraws(t *testing.T) {
	var out syncBuffer
	s := newSpinner("stylizing cat-starry")
	s.out = &out
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	if !strings.Contains(out.String(), "stylizing cat-starry") {
		t.Errorf("output %q should contain the message", out.String())
	}
	if !s.Cancelled() {
		t.Error("Cancelled should report true after Stop")
	}
}

func TestSpinnerContextCancel(t *testing.T) {
	tests := []struct {
		name string
		ctx  func() (context.Context, context.CancelFunc)
	}{
		{"cancel", func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) }},
		{"timeout", func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), 20*time.Millisecond)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.ctx()
			s := newSpinnerWithContext(ctx, "working")
			s.out = &syncBuffer{}
			s.Start()
			if tt.name == "cancel" {
				cancel()
			}
			select {
			case <-s.stopped:
			case <-time.After(time.Second):
				t.Fatal("spinner did not stop after its context ended")
			}
			cancel()
			if !s.Cancelled() {
				t.Error("Cancelled should report true")
			}
		})
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinner("stopping")
	s.out = &syncBuffer{}
	s.Start()
	s.Stop()
	s.Stop()
}
