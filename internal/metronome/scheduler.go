// Package metronome drives the compression beat for one session. Beats are
// timed from a fixed anchor plus integer multiples of the period, never
// chained off the previous actual fire, so per-beat jitter cannot
// accumulate into drift. Ticks are never suppressed for speech: only
// announcements yield to the beat, never the reverse.
package metronome

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// TickPlayer plays the beat sound on the device. It must not block; the
// scheduler fires it and moves on, so a slow or failed audio call cannot
// delay future beats.
type TickPlayer interface {
	PlayTick(url string, volume float64)
}

// Announcer receives the scheduler's spoken counts and reminders. Speaking
// reports whether the device is mid-announcement; the scheduler skips a
// spoken count rather than queueing one that would arrive stale.
type Announcer interface {
	Enqueue(text string)
	Guard(d time.Duration)
	Speaking() bool
}

// countInterval is how often the current compression count is spoken.
const countInterval = 10

// reassessInterval is how often the rescuer is reminded to reassess:
// every 220 compressions, about two minutes at 110 BPM.
const reassessInterval = 220

// countGuard is the short speech guard set around a spoken count.
const countGuard = 1200 * time.Millisecond

const reassessReminder = "Two minutes of compressions. Check if the person is responding, and switch rescuers if you can."

// Scheduler is the per-session metronome. At most one beat loop runs at a
// time; Start cancels any previous loop before launching a new one. The
// compression count survives Start/Stop (a rate change is stop/start) and
// only ResetCount clears it.
type Scheduler struct {
	tick    TickPlayer
	ann     Announcer
	tickURL string
	volume  float64

	count atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(tick TickPlayer, ann Announcer, tickURL string, volume float64) *Scheduler {
	return &Scheduler{tick: tick, ann: ann, tickURL: tickURL, volume: volume}
}

// Start launches the beat loop at bpm. Any running loop is fully cancelled
// first, so two loops can never tick the same session.
func (s *Scheduler) Start(bpm int) {
	if bpm <= 0 {
		return
	}
	s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.run(ctx, done, beatPeriod(bpm))
}

// Stop cancels the beat loop and waits for it to exit. No-op when idle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// beatPeriod is the beat interval at nanosecond precision. Rounding to
// whole milliseconds would shift every beat at rates that do not divide
// 60000 evenly, and the absolute anchor would carry that shift forever.
func beatPeriod(bpm int) time.Duration {
	return time.Minute / time.Duration(bpm)
}

// Running reports whether a beat loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Count returns the compressions counted so far.
func (s *Scheduler) Count() int64 { return s.count.Load() }

// ResetCount zeroes the compression count.
func (s *Scheduler) ResetCount() { s.count.Store(0) }

func (s *Scheduler) run(ctx context.Context, done chan struct{}, period time.Duration) {
	defer close(done)

	expected := time.Now().Add(period)
	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// Fire-and-forget: the beat sound must never delay the next beat.
		go s.tick.PlayTick(s.tickURL, s.volume)

		n := s.count.Add(1)
		// A count queued behind an in-flight announcement would be stale
		// by the time it plays; the next multiple of ten restates it.
		if n%countInterval == 0 && !s.ann.Speaking() {
			s.ann.Enqueue(strconv.FormatInt(n, 10))
			s.ann.Guard(countGuard)
		}
		if n%reassessInterval == 0 {
			s.ann.Enqueue(reassessReminder)
		}

		expected = expected.Add(period)
		wait := time.Until(expected)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}
