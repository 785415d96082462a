package session

import (
	"log"
	"sync"
	"time"
)

// SupportedBPMs are the compression rates the protocol allows, in cycling
// order: a plain "change speed" request moves to the next entry, wrapping.
var SupportedBPMs = []int{100, 110, 120}

// DefaultBPM is used when the device profile carries no rate.
const DefaultBPM = 110

// Deps are the collaborators a session orchestrates. Announcer, Metronome
// and Capturer are required; Recorder and StopAudio may be nil.
type Deps struct {
	Classifier Classifier
	Announcer  Announcer
	Metronome  Metronome
	Capturer   Capturer
	Recorder   Recorder
	// StopAudio halts all device playback immediately; called on Close.
	StopAudio func()
}

// Session is the per-connection orchestrator state. It is created on
// connect, owned exclusively by that connection's handler, and destroyed on
// disconnect. All exported methods are safe for concurrent use, but
// transcripts are expected to arrive one at a time in finalization order.
type Session struct {
	ID string

	classifier Classifier
	announcer  Announcer
	metronome  Metronome
	capturer   Capturer
	recorder   Recorder
	stopAudio  func()

	mu                 sync.Mutex
	phase              Phase
	bpm                int
	saveForQA          bool
	emergencyConfirmed bool
	startTime          time.Time
	lastHandCheck      time.Time
	closed             bool
	cleanups           []func()
}

// New creates a session in the Welcome phase and enqueues the welcome
// announcement.
func New(id string, bpm int, saveForQA bool, deps Deps) *Session {
	if !validBPM(bpm) {
		bpm = DefaultBPM
	}
	rec := deps.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	s := &Session{
		ID:         id,
		classifier: deps.Classifier,
		announcer:  deps.Announcer,
		metronome:  deps.Metronome,
		capturer:   deps.Capturer,
		recorder:   rec,
		stopAudio:  deps.StopAudio,
		phase:      PhaseWelcome,
		bpm:        bpm,
		saveForQA:  saveForQA,
		startTime:  time.Now(),
	}
	s.announcer.Enqueue(entryAnnouncements[PhaseWelcome])
	s.recorder.Record(id, "session_started", "")
	return s
}

func validBPM(bpm int) bool {
	for _, b := range SupportedBPMs {
		if b == bpm {
			return true
		}
	}
	return false
}

// Phase returns the current protocol phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// BPM returns the configured compression rate.
func (s *Session) BPM() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bpm
}

// SetBPM updates the configured rate. If the metronome is running it is
// restarted at the new rate; the compression count is preserved.
func (s *Session) SetBPM(bpm int) {
	if !validBPM(bpm) {
		return
	}
	s.mu.Lock()
	s.bpm = bpm
	running := s.metronome.Running()
	s.mu.Unlock()
	if running {
		s.metronome.Stop()
		s.metronome.Start(bpm)
	}
}

// SaveForQA reports whether captured photos should be persisted.
func (s *Session) SaveForQA() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveForQA
}

// SetSaveForQA updates the photo persistence toggle.
func (s *Session) SetSaveForQA(on bool) {
	s.mu.Lock()
	s.saveForQA = on
	s.mu.Unlock()
}

// EmergencyConfirmed reports whether the rescuer confirmed that emergency
// services were called.
func (s *Session) EmergencyConfirmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emergencyConfirmed
}

// CompressionCount returns the number of compressions this session.
func (s *Session) CompressionCount() int64 { return s.metronome.Count() }

// LastHandCheck returns when the last hand-position check was invoked.
func (s *Session) LastHandCheck() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHandCheck
}

// AddCleanup registers a function to run on Close, e.g. a settings
// subscription release. Cleanups run in reverse registration order.
func (s *Session) AddCleanup(fn func()) {
	s.mu.Lock()
	s.cleanups = append(s.cleanups, fn)
	s.mu.Unlock()
}

// Close releases everything the session owns: the metronome, device audio
// and any registered subscriptions. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cleanups := s.cleanups
	s.cleanups = nil
	s.mu.Unlock()

	s.metronome.Stop()
	if s.stopAudio != nil {
		s.stopAudio()
	}
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	s.recorder.Record(s.ID, "session_closed", "")
	log.Printf("session %s closed", s.ID)
}
