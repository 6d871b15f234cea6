package framesync

import (
	"context"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// traceScenario runs frames on a fresh harness with every state transition
// interleaved into the collaborator call log, and compares the result with
// testdata/golden/<name>.golden.
func traceScenario(t *testing.T, name string, frames int, script func(h *harness)) {
	t.Helper()

	h := newHarness(3)
	script(h)
	c, err := h.controller(
		WithFramesInFlight(2),
		WithTraceHook(func(ev TraceEvent) { h.log.add("%s", ev) }),
	)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	for i := range frames {
		if _, err := c.RenderFrame(context.Background()); err != nil {
			t.Fatalf("RenderFrame %d: %v", i, err)
		}
	}
	trace := strings.Join(h.log.snapshot(), "\n") + "\n"
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(trace))
}

func TestGoldenTrace_SteadyState(t *testing.T) {
	traceScenario(t, "steady_state", 3, func(*harness) {})
}

func TestGoldenTrace_OutOfDateOnAcquire(t *testing.T) {
	traceScenario(t, "out_of_date_on_acquire", 4, func(h *harness) {
		h.provider.acquireScript[2] = SurfaceOutOfDate
	})
}

func TestGoldenTrace_SuboptimalOnPresent(t *testing.T) {
	traceScenario(t, "suboptimal_on_present", 3, func(h *harness) {
		h.provider.presentScript[1] = SurfaceSuboptimal
	})
}
