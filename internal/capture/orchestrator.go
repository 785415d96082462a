// Package capture turns one "check hands" request into a photo, an external
// analysis call and exactly one spoken guidance line. Nothing here may ever
// stall the metronome: the orchestrator runs on its own goroutine and all
// failures resolve to a safe spoken fallback.
package capture

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/Movenanter/Rescue/internal/analysis"
)

// SizeHint asks the camera for a particular capture size. The first attempt
// uses the small, low-latency size; the retry falls back to the default.
type SizeHint string

const (
	SizeSmall   SizeHint = "small"
	SizeDefault SizeHint = "default"
)

// Photo is one captured frame. A zero Photo means the capture produced
// nothing usable.
type Photo struct {
	Bytes    []byte
	MimeType string
}

func (p Photo) Empty() bool { return len(p.Bytes) == 0 }

// Camera requests one photo from the device.
type Camera interface {
	RequestPhoto(ctx context.Context, hint SizeHint) (Photo, error)
}

// Analyzer maps a photo to a hand-position result.
type Analyzer interface {
	AnalyzeHands(ctx context.Context, photo []byte, mimeType string) (analysis.Result, error)
}

// PhotoStore persists captures for QA review. Best-effort only.
type PhotoStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
}

// Announcer queues the single spoken outcome of a capture.
type Announcer interface {
	Enqueue(text string)
	Guard(d time.Duration)
}

// guidance is the fixed position-to-speech lookup. Keys are the closed
// position set; nothing outside it is ever announced.
var guidance = map[analysis.Position]string{
	analysis.PositionGood:      "Hands are centered perfectly. Keep going!",
	analysis.PositionHigh:      "Hands are too high. Move down toward the center of the chest.",
	analysis.PositionLow:       "Hands are too low. Move up toward the center of the chest.",
	analysis.PositionLeft:      "Move hands slightly to the right, toward the center of the chest.",
	analysis.PositionRight:     "Move hands slightly to the left, toward the center of the chest.",
	analysis.PositionUncertain: "Hand position unclear. Try to center hands on the chest.",
	analysis.PositionNoCPR:     "No compressions detected. Place your hands on the center of the chest and push hard and fast.",
}

const (
	announceChecking  = "Hold on, checking your hand position."
	announceBusy      = "Still checking your hand position."
	announceNoCamera  = "This device has no camera. Keep doing compressions, I will keep the beat."
	announceFailed    = "Could not check hand position. Keep doing compressions."
	checkingGuard     = 2 * time.Second
	defaultRetryDelay = 300 * time.Millisecond
)

// Orchestrator runs hand-position checks for one session. At most one
// capture is in flight at a time; concurrent requests get a "still
// processing" line instead of a second capture.
type Orchestrator struct {
	camera   Camera // nil when the device has no camera capability
	analyzer Analyzer
	store    PhotoStore // nil disables persistence
	ann      Announcer

	sessionID string
	saveForQA func() bool

	// RetryDelay is the backoff before the single default-size retry.
	// Overridable in tests.
	RetryDelay time.Duration

	inFlight atomic.Bool
}

// NewOrchestrator wires a capture orchestrator for one session. saveForQA
// is read at guidance time so a toggled setting applies immediately.
func NewOrchestrator(sessionID string, camera Camera, analyzer Analyzer, store PhotoStore, ann Announcer, saveForQA func() bool) *Orchestrator {
	if saveForQA == nil {
		saveForQA = func() bool { return false }
	}
	return &Orchestrator{
		camera:     camera,
		analyzer:   analyzer,
		store:      store,
		ann:        ann,
		sessionID:  sessionID,
		saveForQA:  saveForQA,
		RetryDelay: defaultRetryDelay,
	}
}

// CaptureAndGuide performs one full check: capture, analyze, speak. It
// never returns an error; every failure path ends in a spoken fallback.
func (o *Orchestrator) CaptureAndGuide(ctx context.Context) {
	if o.camera == nil {
		o.ann.Enqueue(announceNoCamera)
		return
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		o.ann.Enqueue(announceBusy)
		return
	}
	defer o.inFlight.Store(false)

	o.ann.Enqueue(announceChecking)
	o.ann.Guard(checkingGuard)

	photo := o.capture(ctx)
	if photo.Empty() {
		o.ann.Enqueue(announceFailed)
		return
	}

	res, err := o.analyzer.AnalyzeHands(ctx, photo.Bytes, photo.MimeType)
	if err != nil {
		log.Printf("hand analysis failed for session %s: %v", o.sessionID, err)
		o.ann.Enqueue(announceFailed)
		return
	}
	line, ok := guidance[res.Position]
	if !ok {
		line = "Continue with compressions."
	}
	o.ann.Enqueue(line)
	log.Printf("hand check session=%s position=%s confidence=%.2f", o.sessionID, res.Position, res.Confidence)

	if o.saveForQA() && o.store != nil {
		// Persistence must never block or fail the guidance path.
		go o.persist(photo)
	}
}

// capture requests a low-latency photo first and retries once at default
// settings after a short backoff.
func (o *Orchestrator) capture(ctx context.Context) Photo {
	photo, err := o.camera.RequestPhoto(ctx, SizeSmall)
	if err == nil && !photo.Empty() {
		return photo
	}
	if err != nil {
		log.Printf("photo capture failed for session %s: %v", o.sessionID, err)
	}

	select {
	case <-ctx.Done():
		return Photo{}
	case <-time.After(o.RetryDelay):
	}

	photo, err = o.camera.RequestPhoto(ctx, SizeDefault)
	if err != nil {
		log.Printf("photo capture retry failed for session %s: %v", o.sessionID, err)
		return Photo{}
	}
	return photo
}

func (o *Orchestrator) persist(photo Photo) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	key := fmt.Sprintf("cpr_photo_%s_%s.jpg", o.sessionID, time.Now().Format("20060102_150405"))
	mime := photo.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	if err := o.store.Save(ctx, key, photo.Bytes, mime); err != nil {
		log.Printf("photo save failed for session %s: %v", o.sessionID, err)
	}
}
