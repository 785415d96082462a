package session

import (
	"context"
	"fmt"
	"time"

	"github.com/Movenanter/Rescue/internal/transcript"
)

// entryAnnouncements is spoken once on every transition into a phase.
var entryAnnouncements = map[Phase]string{
	PhaseWelcome:             "Welcome to Rescue. I will guide you through CPR. Say start when you are ready.",
	PhaseSafetyCheck:         "First, check the scene. Is the area safe for you to help?",
	PhaseResponsivenessCheck: "Check the person. Shout, are you okay, and tap their shoulders. Are they responding?",
	PhaseCompressions:        "Begin compressions. Push hard and fast in the center of the chest. Follow the beat.",
	PhaseSettings:            "Settings. Say change speed to adjust the pace, or say back to continue compressions.",
}

// clarifyPrompts re-prompts the rescuer when an utterance could not be
// classified. The phase is unchanged in that case.
var clarifyPrompts = map[Phase]string{
	PhaseWelcome:             "Say start to begin CPR guidance.",
	PhaseSafetyCheck:         "Is the scene safe? Say safe, or say not safe.",
	PhaseResponsivenessCheck: "Is the person responding? Say yes or no.",
	PhaseCompressions:        "Keep pushing. You can say check hands, change speed, or settings.",
	PhaseSettings:            "Say change speed, or say back to return to compressions.",
}

const hazardAnnouncement = "Do not approach until it is safe. Call emergency services now, and tell me when you have called."

// HandleTranscript normalizes one raw speech result and, if it is a final
// non-empty utterance, classifies it against the current phase and applies
// the resulting intent. Partial transcripts are ignored.
func (s *Session) HandleTranscript(ctx context.Context, raw string, final bool) {
	utt := transcript.Normalize(raw, final)
	if !utt.Final || utt.Text == "" {
		return
	}
	phase := s.Phase()
	in := s.classifier.Classify(ctx, utt.Text, phase)
	s.recorder.Record(s.ID, "intent", in.Kind.String())
	s.Apply(ctx, in)
}

// Apply drives the state machine with one classified intent. Side effects
// (announcements, captures, metronome changes) are fire-and-forget relative
// to the caller.
func (s *Session) Apply(ctx context.Context, in Intent) {
	// Intents honored from any phase.
	switch in.Kind {
	case IntentStart:
		s.reset()
		s.transitionTo(PhaseSafetyCheck)
		return
	case IntentEmergencyCalled:
		s.mu.Lock()
		s.emergencyConfirmed = true
		s.mu.Unlock()
		s.transitionTo(PhaseResponsivenessCheck)
		return
	case IntentCheckHands:
		if s.Phase() != PhaseCompressions {
			s.transitionTo(PhaseCompressions)
		}
		s.mu.Lock()
		s.lastHandCheck = time.Now()
		s.mu.Unlock()
		go s.capturer.CaptureAndGuide(ctx)
		return
	}

	switch s.Phase() {
	case PhaseWelcome:
		// Any utterance moves the rescuer out of the welcome screen.
		s.transitionTo(PhaseSafetyCheck)
	case PhaseSafetyCheck:
		switch in.Kind {
		case IntentConfirmSafety:
			s.transitionTo(PhaseResponsivenessCheck)
		case IntentHazardPresent:
			s.announcer.Enqueue(hazardAnnouncement)
			s.recorder.Record(s.ID, "hazard", "")
		default:
			s.clarify()
		}
	case PhaseResponsivenessCheck:
		switch in.Kind {
		case IntentResponsiveNo:
			s.transitionTo(PhaseCompressions)
		case IntentResponsiveYes:
			s.transitionTo(PhaseSafetyCheck)
		default:
			s.clarify()
		}
	case PhaseCompressions:
		switch in.Kind {
		case IntentOpenSettings:
			s.transitionTo(PhaseSettings)
		case IntentChangeBpm:
			s.changeBPM(in.Slot("direction"))
		default:
			s.clarify()
		}
	case PhaseSettings:
		switch in.Kind {
		case IntentBackToCompressions:
			s.transitionTo(PhaseCompressions)
		case IntentChangeBpm:
			s.changeBPM(in.Slot("direction"))
		default:
			s.clarify()
		}
	}
}

// reset clears transient counters for a fresh run. BPM and the save-photo
// toggle are preserved.
func (s *Session) reset() {
	s.metronome.Stop()
	s.metronome.ResetCount()
	s.mu.Lock()
	s.emergencyConfirmed = false
	s.startTime = time.Now()
	s.lastHandCheck = time.Time{}
	s.mu.Unlock()
	s.recorder.Record(s.ID, "reset", "")
}

func (s *Session) transitionTo(p Phase) {
	s.mu.Lock()
	from := s.phase
	s.phase = p
	bpm := s.bpm
	s.mu.Unlock()

	switch {
	case p == PhaseCompressions:
		if !s.metronome.Running() {
			s.metronome.Start(bpm)
		}
	case p == PhaseSettings:
		// Settings is a brief interlude; compressions keep their beat.
	default:
		s.metronome.Stop()
	}

	s.announcer.Enqueue(entryAnnouncements[p])
	s.recorder.Record(s.ID, "phase", fmt.Sprintf("%s->%s", from, p))
}

func (s *Session) clarify() {
	s.announcer.Enqueue(clarifyPrompts[s.Phase()])
}

// changeBPM picks the next supported rate and restarts the metronome at it.
// A plain request cycles through the supported rates with wraparound;
// "up"/"down" move one step and stop at the extremes.
func (s *Session) changeBPM(direction string) {
	s.mu.Lock()
	cur := s.bpm
	s.mu.Unlock()

	idx := 0
	for i, b := range SupportedBPMs {
		if b == cur {
			idx = i
			break
		}
	}
	switch direction {
	case "up":
		if idx < len(SupportedBPMs)-1 {
			idx++
		}
	case "down":
		if idx > 0 {
			idx--
		}
	default:
		idx = (idx + 1) % len(SupportedBPMs)
	}
	next := SupportedBPMs[idx]
	s.SetBPM(next)
	s.announcer.Enqueue(fmt.Sprintf("Speed set to %d beats per minute.", next))
	s.recorder.Record(s.ID, "bpm", fmt.Sprintf("%d", next))
}
