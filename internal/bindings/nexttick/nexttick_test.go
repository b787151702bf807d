package nexttick

import (
	"strings"
	"testing"

	"github.com/dunerun/dune/internal/bindings"
)

type fakeEngine struct {
	funcs map[string]any
	evals []string
}

func newFakeEngine() *fakeEngine { return &fakeEngine{funcs: make(map[string]any)} }

func (e *fakeEngine) RegisterFunc(name string, fn any) error {
	e.funcs[name] = fn
	return nil
}

func (e *fakeEngine) Eval(source, filename string) error {
	e.evals = append(e.evals, source)
	return nil
}

type fakePusher struct {
	pushed []func()
}

func (p *fakePusher) NextTickPush(fn func()) { p.pushed = append(p.pushed, fn) }

func TestScheduleQueuesOntoPusherWithoutFiringImmediately(t *testing.T) {
	eng := newFakeEngine()
	reg := bindings.NewRegistry(eng)
	pusher := &fakePusher{}

	if err := Install(reg, pusher); err != nil {
		t.Fatalf("Install: %v", err)
	}

	schedule := eng.funcs["__nextTickSchedule"].(func(int))
	schedule(5)

	if len(pusher.pushed) != 1 {
		t.Fatalf("expected exactly one pushed callback, got %d", len(pusher.pushed))
	}
	if len(eng.evals) != 0 {
		t.Fatalf("expected no callback to fire before the pusher drains, got %v", eng.evals)
	}

	pusher.pushed[0]()

	found := false
	for _, s := range eng.evals {
		if strings.Contains(s, "__invokeCallback(5,") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the callback to fire once the pusher drains it, got %v", eng.evals)
	}
}
