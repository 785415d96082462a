package intent

import (
	"context"
	"testing"

	"github.com/Movenanter/Rescue/internal/session"
)

type stubStrategy struct {
	in    session.Intent
	ok    bool
	calls int
}

func (s *stubStrategy) Classify(context.Context, string, session.Phase) (session.Intent, bool) {
	s.calls++
	return s.in, s.ok
}

func TestTiered_FirstNonUnknownWins(t *testing.T) {
	first := &stubStrategy{in: session.Intent{Kind: session.IntentCheckHands}, ok: true}
	second := &stubStrategy{in: session.Intent{Kind: session.IntentStart}, ok: true}
	got := NewTiered(first, second).Classify(context.Background(), "check hands", session.PhaseCompressions)
	if got.Kind != session.IntentCheckHands {
		t.Fatalf("got %s", got.Kind)
	}
	if second.calls != 0 {
		t.Fatal("second strategy should not run")
	}
}

func TestTiered_FallsThroughOnFailureAndUnknown(t *testing.T) {
	failed := &stubStrategy{ok: false}
	unknown := &stubStrategy{in: session.Unknown(), ok: true}
	rules := &stubStrategy{in: session.Intent{Kind: session.IntentConfirmSafety}, ok: true}
	got := NewTiered(failed, unknown, rules).Classify(context.Background(), "safe", session.PhaseSafetyCheck)
	if got.Kind != session.IntentConfirmSafety {
		t.Fatalf("got %s", got.Kind)
	}
	if failed.calls != 1 || unknown.calls != 1 {
		t.Fatal("earlier strategies must each get one attempt")
	}
}

func TestTiered_UnknownIsValidTerminal(t *testing.T) {
	got := NewTiered(&stubStrategy{ok: false}).Classify(context.Background(), "mumble", session.PhaseCompressions)
	if got.Kind != session.IntentUnknown {
		t.Fatalf("got %s", got.Kind)
	}
}

func TestTiered_RemoteThenRulesEndToEnd(t *testing.T) {
	// Remote strategy that always fails, as on a device with no connectivity.
	offline := &stubStrategy{ok: false}
	tiered := NewTiered(offline, Rules{})
	got := tiered.Classify(context.Background(), "not good", session.PhaseSafetyCheck)
	if got.Kind != session.IntentHazardPresent {
		t.Fatalf("got %s", got.Kind)
	}
}
