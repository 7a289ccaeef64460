package bridge

import (
	"context"
	"testing"
	"time"
)

func TestWaitReadyImmediate(t *testing.T) {
	ready := make(chan struct{})
	close(ready)

	waited := false
	if err := WaitReady(context.Background(), ready, time.Second, func() { waited = true }); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if waited {
		t.Fatal("onWait must not fire when the signal beats the grace period")
	}
}

func TestWaitReadyAfterGrace(t *testing.T) {
	ready := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(ready)
	}()

	waited := false
	if err := WaitReady(context.Background(), ready, 5*time.Millisecond, func() { waited = true }); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !waited {
		t.Fatal("expected onWait after the grace period elapsed")
	}
}

func TestWaitReadyContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitReady(ctx, make(chan struct{}), time.Second, nil); err == nil {
		t.Fatal("expected context error")
	}
}
