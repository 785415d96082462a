package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Movenanter/Rescue/internal/analysis"
)

type fakeCamera struct {
	mu       sync.Mutex
	requests []SizeHint
	photos   map[SizeHint]Photo
	err      error
	block    chan struct{} // when set, RequestPhoto waits on it
}

func (f *fakeCamera) RequestPhoto(ctx context.Context, hint SizeHint) (Photo, error) {
	f.mu.Lock()
	f.requests = append(f.requests, hint)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.err != nil {
		return Photo{}, f.err
	}
	return f.photos[hint], nil
}

func (f *fakeCamera) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeAnalyzer struct {
	res analysis.Result
	err error
}

func (f fakeAnalyzer) AnalyzeHands(context.Context, []byte, string) (analysis.Result, error) {
	return f.res, f.err
}

type fakeStore struct {
	saves atomic.Int32
	err   error
}

func (f *fakeStore) Save(context.Context, string, []byte, string) error {
	f.saves.Add(1)
	return f.err
}

type fakeAnnouncer struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeAnnouncer) Enqueue(text string) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
}

func (f *fakeAnnouncer) Guard(time.Duration) {}

func (f *fakeAnnouncer) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

func goodPhoto() Photo { return Photo{Bytes: []byte{0xff, 0xd8, 1, 2}, MimeType: "image/jpeg"} }

func TestNoCameraSpeaksFallbackWithoutCapture(t *testing.T) {
	ann := &fakeAnnouncer{}
	o := NewOrchestrator("s1", nil, fakeAnalyzer{}, nil, ann, nil)
	o.CaptureAndGuide(context.Background())

	texts := ann.all()
	if len(texts) != 1 || texts[0] != announceNoCamera {
		t.Fatalf("expected single no-camera fallback, got %v", texts)
	}
}

func TestConcurrentCaptureOnlyOneInFlight(t *testing.T) {
	block := make(chan struct{})
	cam := &fakeCamera{photos: map[SizeHint]Photo{SizeSmall: goodPhoto()}, block: block}
	ann := &fakeAnnouncer{}
	o := NewOrchestrator("s1", cam, fakeAnalyzer{res: analysis.Result{Position: analysis.PositionGood, Confidence: 0.95}}, nil, ann, nil)

	done := make(chan struct{})
	go func() {
		o.CaptureAndGuide(context.Background())
		close(done)
	}()
	// Wait for the first capture to be in flight.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && cam.attempts() == 0 {
		time.Sleep(time.Millisecond)
	}

	o.CaptureAndGuide(context.Background())
	close(block)
	<-done

	if cam.attempts() != 1 {
		t.Fatalf("expected one in-flight capture, camera saw %d requests", cam.attempts())
	}
	var busy int
	for _, text := range ann.all() {
		if text == announceBusy {
			busy++
		}
	}
	if busy != 1 {
		t.Fatalf("expected one busy line, got %d", busy)
	}
}

func TestRetryOnceAtDefaultThenFallback(t *testing.T) {
	cam := &fakeCamera{photos: map[SizeHint]Photo{}} // both attempts empty
	ann := &fakeAnnouncer{}
	o := NewOrchestrator("s1", cam, fakeAnalyzer{}, nil, ann, nil)
	o.RetryDelay = time.Millisecond

	o.CaptureAndGuide(context.Background())

	cam.mu.Lock()
	reqs := append([]SizeHint(nil), cam.requests...)
	cam.mu.Unlock()
	if len(reqs) != 2 || reqs[0] != SizeSmall || reqs[1] != SizeDefault {
		t.Fatalf("expected small then default, got %v", reqs)
	}
	texts := ann.all()
	if texts[len(texts)-1] != announceFailed {
		t.Fatalf("expected generic failure line, got %v", texts)
	}
}

func TestRetrySucceedsAtDefault(t *testing.T) {
	cam := &fakeCamera{photos: map[SizeHint]Photo{SizeDefault: goodPhoto()}}
	ann := &fakeAnnouncer{}
	o := NewOrchestrator("s1", cam, fakeAnalyzer{res: analysis.Result{Position: analysis.PositionHigh, Confidence: 0.87}}, nil, ann, nil)
	o.RetryDelay = time.Millisecond

	o.CaptureAndGuide(context.Background())

	texts := ann.all()
	if texts[len(texts)-1] != guidance[analysis.PositionHigh] {
		t.Fatalf("expected high-hands guidance, got %v", texts)
	}
}

func TestAnalysisFailureSpeaksFallback(t *testing.T) {
	cam := &fakeCamera{photos: map[SizeHint]Photo{SizeSmall: goodPhoto()}}
	ann := &fakeAnnouncer{}
	o := NewOrchestrator("s1", cam, fakeAnalyzer{err: errors.New("model offline")}, nil, ann, nil)

	o.CaptureAndGuide(context.Background())

	texts := ann.all()
	if texts[len(texts)-1] != announceFailed {
		t.Fatalf("expected failure line, got %v", texts)
	}
}

func TestGuidanceTableCoversClosedSet(t *testing.T) {
	positions := []analysis.Position{
		analysis.PositionGood, analysis.PositionHigh, analysis.PositionLow,
		analysis.PositionLeft, analysis.PositionRight, analysis.PositionUncertain,
		analysis.PositionNoCPR,
	}
	for _, p := range positions {
		if guidance[p] == "" {
			t.Fatalf("no guidance line for %s", p)
		}
	}
	if len(guidance) != len(positions) {
		t.Fatalf("guidance table has %d entries, want %d", len(guidance), len(positions))
	}
}

func TestSaveForQAIsBestEffort(t *testing.T) {
	cam := &fakeCamera{photos: map[SizeHint]Photo{SizeSmall: goodPhoto()}}
	ann := &fakeAnnouncer{}
	store := &fakeStore{err: errors.New("bucket gone")}
	o := NewOrchestrator("s1", cam, fakeAnalyzer{res: analysis.Result{Position: analysis.PositionGood, Confidence: 0.95}}, store, ann, func() bool { return true })

	o.CaptureAndGuide(context.Background())

	// Guidance must be spoken regardless of storage failing.
	texts := ann.all()
	if texts[len(texts)-1] != guidance[analysis.PositionGood] {
		t.Fatalf("expected guidance despite store failure, got %v", texts)
	}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && store.saves.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	if store.saves.Load() != 1 {
		t.Fatal("expected one save attempt")
	}
}

func TestSaveSkippedWhenToggleOff(t *testing.T) {
	cam := &fakeCamera{photos: map[SizeHint]Photo{SizeSmall: goodPhoto()}}
	store := &fakeStore{}
	o := NewOrchestrator("s1", cam, fakeAnalyzer{res: analysis.Result{Position: analysis.PositionGood, Confidence: 0.95}}, store, &fakeAnnouncer{}, func() bool { return false })

	o.CaptureAndGuide(context.Background())
	time.Sleep(20 * time.Millisecond)
	if store.saves.Load() != 0 {
		t.Fatal("save must not run with the toggle off")
	}
}
