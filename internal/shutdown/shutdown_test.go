package shutdown

import (
	"testing"
	"time"
)

func TestTriggerIdempotent(t *testing.T) {
	s := New()
	s.Trigger()
	s.Trigger() // must not panic on double-close
	if !s.IsTerminated() {
		t.Fatal("expected terminated after Trigger")
	}
}

func TestWaitResolvesAfterTrigger(t *testing.T) {
	s := New()
	done := make(chan struct{})
	go func() {
		<-s.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("wait resolved before trigger")
	case <-time.After(20 * time.Millisecond):
	}

	s.Trigger()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not resolve after trigger")
	}
}

func TestWaitAlreadyTriggered(t *testing.T) {
	s := New()
	s.Trigger()
	select {
	case <-s.Wait():
	default:
		t.Fatal("expected already-closed channel to be immediately ready")
	}
}

func TestIsTerminatedFalseInitially(t *testing.T) {
	s := New()
	if s.IsTerminated() {
		t.Fatal("expected not terminated initially")
	}
}
