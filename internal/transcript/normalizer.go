// Package transcript normalizes raw speech-recognition text before intent
// classification. Recognition itself happens on the device; this package
// only cleans up what arrives over the device channel.
package transcript

import "strings"

// Utterance is one normalized speech result. Only final utterances drive
// the state machine; partials are surfaced for display at most.
type Utterance struct {
	Text  string
	Final bool
}

// Normalize lower-cases, trims and collapses internal whitespace in a raw
// recognition result and tags it with finality.
func Normalize(raw string, final bool) Utterance {
	return Utterance{Text: strings.Join(strings.Fields(strings.ToLower(raw)), " "), Final: final}
}
