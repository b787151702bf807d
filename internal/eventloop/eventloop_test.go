package eventloop

import (
	"testing"
	"time"
)

func TestTimerFiresOnce(t *testing.T) {
	l := New(1)
	defer l.Close()
	h := l.Handle()

	fired := 0
	h.Timer(1*time.Millisecond, false, func() { fired++ })

	deadline := time.Now().Add(time.Second)
	for fired == 0 && time.Now().Before(deadline) {
		l.Poll()
	}
	if fired != 1 {
		t.Fatalf("expected timer to fire once, fired %d times", fired)
	}
	if l.HasPendingEvents() {
		t.Fatal("expected no pending events after one-shot timer fires")
	}
}

func TestTimerRepeats(t *testing.T) {
	l := New(1)
	defer l.Close()
	h := l.Handle()

	fired := 0
	id := h.Timer(1*time.Millisecond, true, func() { fired++ })

	deadline := time.Now().Add(time.Second)
	for fired < 3 && time.Now().Before(deadline) {
		l.Poll()
	}
	h.RemoveTimer(id)
	if fired < 3 {
		t.Fatalf("expected repeating timer to fire at least 3 times, got %d", fired)
	}
}

func TestRemoveTimerPreventsFire(t *testing.T) {
	l := New(1)
	defer l.Close()
	h := l.Handle()

	fired := false
	id := h.Timer(50*time.Millisecond, false, func() { fired = true })
	h.RemoveTimer(id)

	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		l.Poll()
	}
	if fired {
		t.Fatal("expected removed timer not to fire")
	}
}

func TestSpawnDeliversResultOnLoopThread(t *testing.T) {
	l := New(2)
	defer l.Close()
	h := l.Handle()

	resultCh := make(chan any, 1)
	h.Spawn(func() any { return 42 }, func(result any) {
		resultCh <- result
	})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		l.Poll()
		select {
		case r := <-resultCh:
			if r != 42 {
				t.Fatalf("expected 42, got %v", r)
			}
			return
		default:
		}
	}
	t.Fatal("spawned work never completed")
}

func TestInterruptWakesPoll(t *testing.T) {
	l := New(1)
	defer l.Close()
	h := l.Handle()

	h.Timer(time.Hour, false, func() {})

	done := make(chan struct{})
	go func() {
		l.Poll()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	h.Interrupt()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Poll did not wake up on Interrupt")
	}
}
