package intent

import (
	"context"
	"strings"

	"github.com/Movenanter/Rescue/internal/session"
)

// Rules is the deterministic fallback classifier. It is phase-aware: inside
// the responsiveness check, short negations and affirmations resolve to
// ResponsiveNo/ResponsiveYes before any generic pattern gets a look,
// because the same words mean something else in other phases. Outside that
// override a fixed priority order applies, hazard phrases first.
type Rules struct{}

type pattern struct {
	kind    session.IntentKind
	phrases []string
	slots   map[string]string
}

// patterns in priority order. Substring matching, so broader phrases must
// outrank the narrower words they contain (e.g. hazard's "not safe" before
// safety confirmation's "safe").
var patterns = []pattern{
	{kind: session.IntentHazardPresent, phrases: []string{
		"not safe", "unsafe", "danger", "hazard", "traffic", "fire", "smoke", "not good", "not clear",
	}},
	{kind: session.IntentStart, phrases: []string{
		"start over", "restart", "start", "begin", "new session",
	}},
	{kind: session.IntentConfirmSafety, phrases: []string{
		"scene is safe", "it is safe", "it's safe", "looks safe", "all clear", "safe", "clear",
	}},
	{kind: session.IntentEmergencyCalled, phrases: []string{
		"called 911", "calling 911", "911", "112", "emergency called", "called emergency",
		"ambulance", "help is on the way", "on the way", "they are coming", "called for help",
	}},
	{kind: session.IntentResponsiveNo, phrases: []string{
		"not responding", "no response", "unresponsive", "not breathing", "not moving", "not waking",
	}},
	{kind: session.IntentResponsiveYes, phrases: []string{
		"responding", "they are awake", "awake", "conscious", "woke up", "breathing",
	}},
	{kind: session.IntentCheckHands, phrases: []string{
		"check my hands", "check hands", "check my hand", "hand position", "hand placement", "are my hands",
	}},
	{kind: session.IntentChangeBpm, phrases: []string{"faster", "speed up"}, slots: map[string]string{"direction": "up"}},
	{kind: session.IntentChangeBpm, phrases: []string{"slower", "slow down"}, slots: map[string]string{"direction": "down"}},
	{kind: session.IntentChangeBpm, phrases: []string{
		"change speed", "change the speed", "change pace", "change tempo", "change rate", "different speed",
	}},
	{kind: session.IntentOpenSettings, phrases: []string{"settings", "options", "menu"}},
	{kind: session.IntentBackToCompressions, phrases: []string{
		"back to compressions", "go back", "back", "resume", "continue",
	}},
}

var shortNegations = []string{"no", "nope", "nah"}
var shortAffirmations = []string{"yes", "yeah", "yep", "yup"}

func (Rules) Classify(_ context.Context, utterance string, phase session.Phase) (session.Intent, bool) {
	utt := strings.TrimSpace(utterance)
	if utt == "" {
		return session.Unknown(), true
	}

	if phase == session.PhaseResponsivenessCheck {
		if kind, ok := responsivenessOverride(utt); ok {
			return session.Intent{Kind: kind}, true
		}
	}

	for _, p := range patterns {
		for _, phrase := range p.phrases {
			if strings.Contains(utt, phrase) {
				return session.Intent{Kind: p.kind, Slots: p.slots}, true
			}
		}
	}
	return session.Unknown(), true
}

// responsivenessOverride resolves short yes/no style answers inside the
// responsiveness check. Negations are checked first: "not breathing"
// contains "breathing".
func responsivenessOverride(utt string) (session.IntentKind, bool) {
	for _, w := range shortNegations {
		if utt == w {
			return session.IntentResponsiveNo, true
		}
	}
	for _, w := range shortAffirmations {
		if utt == w {
			return session.IntentResponsiveYes, true
		}
	}
	for _, phrase := range []string{"not responding", "no response", "unresponsive", "not breathing", "not moving", "nothing"} {
		if strings.Contains(utt, phrase) {
			return session.IntentResponsiveNo, true
		}
	}
	for _, phrase := range []string{"responding", "awake", "conscious", "moving", "breathing"} {
		if strings.Contains(utt, phrase) {
			return session.IntentResponsiveYes, true
		}
	}
	return session.IntentUnknown, false
}
