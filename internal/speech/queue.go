// Package speech serializes spoken feedback for one session. Announcements
// play strictly in enqueue order with one in-flight playback at a time, and
// the queue exposes a guard window so the metronome can tell when the
// device is currently speaking.
package speech

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
)

// Speaker delivers one line of speech to the device. Implementations may
// return before playback completes; the queue paces delivery from its own
// duration estimate.
type Speaker interface {
	Speak(text string) error
}

// interItemPause separates consecutive announcements so the device audio
// pipeline is never handed back-to-back utterances.
const interItemPause = 150 * time.Millisecond

// queueCapacity bounds memory if the device stops draining speech. On
// overflow the newest item is dropped and logged; the queue never blocks
// and never halts.
const queueCapacity = 128

// Announcement is one spoken feedback item.
type Announcement struct {
	Text     string
	Enqueued time.Time
}

// Queue is a per-session FIFO of announcements with a single worker.
type Queue struct {
	speaker Speaker

	// Estimate predicts playback duration for a line of text. Overridable
	// in tests; defaults to EstimateDuration.
	Estimate func(text string) time.Duration

	items chan Announcement

	mu         sync.Mutex
	guardUntil time.Time
	speaking   bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewQueue creates the queue and starts its worker.
func NewQueue(speaker Speaker) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		speaker:  speaker,
		Estimate: EstimateDuration,
		items:    make(chan Announcement, queueCapacity),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go q.run(ctx)
	return q
}

// Enqueue appends one announcement. Never blocks; a full queue drops the
// item with a log line rather than stalling the caller.
func (q *Queue) Enqueue(text string) {
	if text == "" {
		return
	}
	select {
	case q.items <- Announcement{Text: text, Enqueued: time.Now()}:
	default:
		log.Printf("speech queue full, dropping announcement: %q", text)
	}
}

// Speaking reports whether the guard window is open, i.e. the device is
// (estimated to be) mid-playback. The metronome consults this before
// queueing a spoken count.
func (q *Queue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speaking || time.Now().Before(q.guardUntil)
}

// Guard extends the guard window to at least now+d. Used by the metronome
// around spoken counts.
func (q *Queue) Guard(d time.Duration) {
	until := time.Now().Add(d)
	q.mu.Lock()
	if until.After(q.guardUntil) {
		q.guardUntil = until
	}
	q.mu.Unlock()
}

// Close stops the worker. Pending announcements are discarded.
func (q *Queue) Close() {
	q.cancel()
	<-q.done
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-q.items:
			q.play(ctx, item)
		}
	}
}

// play delivers one announcement. The guard is set before playback starts;
// a failed playback is logged and the queue advances, since a stuck queue
// would permanently silence guidance.
func (q *Queue) play(ctx context.Context, item Announcement) {
	est := q.Estimate(item.Text)
	q.mu.Lock()
	q.speaking = true
	if until := time.Now().Add(est); until.After(q.guardUntil) {
		q.guardUntil = until
	}
	q.mu.Unlock()

	if err := q.speaker.Speak(item.Text); err != nil {
		log.Printf("speech playback failed: %v", err)
	} else {
		q.sleep(ctx, est)
	}

	q.mu.Lock()
	q.speaking = false
	q.mu.Unlock()
	q.sleep(ctx, interItemPause)
}

func (q *Queue) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// EstimateDuration predicts how long the device will take to speak text,
// tuned to a typical on-device TTS rate of roughly 170 words per minute.
func EstimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words < 1 {
		words = 1
	}
	d := 400*time.Millisecond + time.Duration(words)*350*time.Millisecond
	if d > 12*time.Second {
		d = 12 * time.Second
	}
	return d
}
