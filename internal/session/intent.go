package session

// IntentKind is the closed set of meanings a recognized utterance can carry.
type IntentKind int

const (
	IntentUnknown IntentKind = iota
	IntentStart
	IntentConfirmSafety
	IntentHazardPresent
	IntentEmergencyCalled
	IntentResponsiveYes
	IntentResponsiveNo
	IntentCheckHands
	IntentChangeBpm
	IntentOpenSettings
	IntentBackToCompressions
)

var intentNames = map[IntentKind]string{
	IntentUnknown:            "unknown",
	IntentStart:              "start",
	IntentConfirmSafety:      "confirm_safety",
	IntentHazardPresent:      "hazard_present",
	IntentEmergencyCalled:    "emergency_called",
	IntentResponsiveYes:      "responsive_yes",
	IntentResponsiveNo:       "responsive_no",
	IntentCheckHands:         "check_hands",
	IntentChangeBpm:          "change_bpm",
	IntentOpenSettings:       "open_settings",
	IntentBackToCompressions: "back_to_compressions",
}

func (k IntentKind) String() string { return intentNames[k] }

// ParseIntentKind maps a wire-level intent name to its kind. Anything
// outside the vocabulary resolves to IntentUnknown.
func ParseIntentKind(s string) (IntentKind, bool) {
	for k, name := range intentNames {
		if name == s {
			return k, k != IntentUnknown || s == "unknown"
		}
	}
	return IntentUnknown, false
}

// Intent is a classified utterance: a kind from the closed vocabulary plus
// optional slot metadata (e.g. a speed-change direction).
type Intent struct {
	Kind  IntentKind
	Slots map[string]string
}

// Slot returns the named slot value or "" when absent.
func (in Intent) Slot(name string) string {
	if in.Slots == nil {
		return ""
	}
	return in.Slots[name]
}

// Unknown is the terminal "could not classify" result. It is a valid
// outcome, not an error.
func Unknown() Intent { return Intent{Kind: IntentUnknown} }
