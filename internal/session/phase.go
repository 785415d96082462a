package session

// Phase is the current stage of the CPR protocol. A session is in exactly
// one phase at a time and moves between phases only through the edges the
// state machine defines.
type Phase int

const (
	PhaseWelcome Phase = iota
	PhaseSafetyCheck
	PhaseResponsivenessCheck
	PhaseCompressions
	PhaseSettings
)

func (p Phase) String() string {
	switch p {
	case PhaseWelcome:
		return "welcome"
	case PhaseSafetyCheck:
		return "safety_check"
	case PhaseResponsivenessCheck:
		return "responsiveness_check"
	case PhaseCompressions:
		return "compressions"
	case PhaseSettings:
		return "settings"
	}
	return "unknown"
}

// ParsePhase maps a phase name back to its Phase value. Unrecognized names
// resolve to PhaseWelcome.
func ParsePhase(s string) Phase {
	switch s {
	case "safety_check":
		return PhaseSafetyCheck
	case "responsiveness_check":
		return PhaseResponsivenessCheck
	case "compressions":
		return PhaseCompressions
	case "settings":
		return PhaseSettings
	}
	return PhaseWelcome
}
