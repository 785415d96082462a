package session

import "context"

// Classifier maps a finalized utterance plus the current phase to one
// intent from the closed vocabulary.
type Classifier interface {
	Classify(ctx context.Context, utterance string, phase Phase) Intent
}

// Announcer queues spoken feedback for the rescuer. Delivery is FIFO and
// must never block the caller.
type Announcer interface {
	Enqueue(text string)
}

// Metronome is the compression beat scheduler owned by a session. Start
// fully cancels any previous run before launching a new one; the
// compression count survives Start/Stop cycles until ResetCount.
type Metronome interface {
	Start(bpm int)
	Stop()
	Running() bool
	Count() int64
	ResetCount()
}

// Capturer turns one hand-check request into a photo, analysis and a single
// spoken guidance line. Implementations must be safe to invoke concurrently;
// at most one capture runs at a time.
type Capturer interface {
	CaptureAndGuide(ctx context.Context)
}

// Recorder receives best-effort session events for the on-device journal.
type Recorder interface {
	Record(sessionID, kind, detail string)
}

type nopRecorder struct{}

func (nopRecorder) Record(string, string, string) {}
