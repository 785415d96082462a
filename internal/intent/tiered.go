// Package intent classifies normalized utterances into the closed CPR
// intent vocabulary. Classification is tiered: a remote language-model
// strategy is tried first under a bounded timeout, then deterministic
// phase-aware rules. The first strategy returning a non-Unknown intent wins.
package intent

import (
	"context"

	"github.com/Movenanter/Rescue/internal/session"
)

// Strategy is one classification attempt. ok=false means the strategy could
// not produce a usable result (failure, timeout, out-of-vocabulary) and the
// next strategy should run.
type Strategy interface {
	Classify(ctx context.Context, utterance string, phase session.Phase) (session.Intent, bool)
}

// Tiered runs strategies in order and short-circuits on the first
// non-Unknown result. It implements session.Classifier. Unknown is a valid
// terminal outcome, never an error.
type Tiered struct {
	strategies []Strategy
}

func NewTiered(strategies ...Strategy) *Tiered {
	return &Tiered{strategies: strategies}
}

func (t *Tiered) Classify(ctx context.Context, utterance string, phase session.Phase) session.Intent {
	for _, s := range t.strategies {
		in, ok := s.Classify(ctx, utterance, phase)
		if ok && in.Kind != session.IntentUnknown {
			return in
		}
	}
	return session.Unknown()
}
