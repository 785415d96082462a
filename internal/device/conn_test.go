package device

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Movenanter/Rescue/internal/capture"
)

// testDevice is the client half of the protocol: a simulated wearable.
type testDevice struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (d *testDevice) send(t *testing.T, m message) {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ws.WriteJSON(m); err != nil {
		t.Fatalf("device write: %v", err)
	}
}

func dialTestConn(t *testing.T, camera bool) (*Conn, *testDevice, func()) {
	t.Helper()
	connCh := make(chan *Conn, 1)
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		c := NewConn(ws)
		if err := c.Handshake(); err != nil {
			t.Errorf("handshake: %v", err)
			return
		}
		connCh <- c
		<-done // keep the handler alive; Run happens test-side
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	dev := &testDevice{ws: ws}
	dev.send(t, message{Type: "hello", Camera: camera})

	conn := <-connCh
	cleanup := func() {
		_ = ws.Close()
		_ = conn.Close()
		close(done)
		srv.Close()
	}
	return conn, dev, cleanup
}

func TestConn_HandshakeCapability(t *testing.T) {
	conn, _, cleanup := dialTestConn(t, true)
	defer cleanup()
	if !conn.HasCamera() {
		t.Fatal("camera capability lost in handshake")
	}
}

func TestConn_TranscriptDispatch(t *testing.T) {
	conn, dev, cleanup := dialTestConn(t, false)
	defer cleanup()

	type heard struct {
		text  string
		final bool
	}
	got := make(chan heard, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = conn.Run(ctx, func(text string, final bool) {
			got <- heard{text, final}
		})
	}()

	dev.send(t, message{Type: "transcript", Text: "check my hands", Final: true})
	dev.send(t, message{Type: "transcript", Text: "check my", Final: false})

	first := <-got
	if first.text != "check my hands" || !first.final {
		t.Fatalf("got %+v", first)
	}
	second := <-got
	if second.final {
		t.Fatalf("partial marked final: %+v", second)
	}
}

func TestConn_PhotoRoundTrip(t *testing.T) {
	conn, dev, cleanup := dialTestConn(t, true)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = conn.Run(ctx, nil) }()

	// Device side answers photo requests.
	go func() {
		for {
			var m message
			if err := dev.ws.ReadJSON(&m); err != nil {
				return
			}
			if m.Type == "photo_request" {
				dev.send(t, message{
					Type:     "photo",
					ID:       m.ID,
					Data:     base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8}),
					MimeType: "image/jpeg",
				})
			}
		}
	}()

	photo, err := conn.RequestPhoto(ctx, capture.SizeSmall)
	if err != nil {
		t.Fatalf("request photo: %v", err)
	}
	if photo.Empty() || photo.MimeType != "image/jpeg" {
		t.Fatalf("got %+v", photo)
	}
}

func TestConn_PhotoTimeoutWhenDeviceSilent(t *testing.T) {
	conn, _, cleanup := dialTestConn(t, true)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	go func() { _ = conn.Run(context.Background(), nil) }()

	if _, err := conn.RequestPhoto(ctx, capture.SizeSmall); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestConn_SpeakAndTickFrames(t *testing.T) {
	conn, dev, cleanup := dialTestConn(t, false)
	defer cleanup()

	frames := make(chan message, 4)
	go func() {
		for {
			var m message
			if err := dev.ws.ReadJSON(&m); err != nil {
				return
			}
			frames <- m
		}
	}()

	if err := conn.Speak("hold on"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	conn.PlayTick("tick.wav", 0.8)
	conn.StopAll()

	want := []string{"speak", "tick", "stop_audio"}
	for _, typ := range want {
		select {
		case m := <-frames:
			if m.Type != typ {
				t.Fatalf("got frame %q want %q", m.Type, typ)
			}
		case <-time.After(time.Second):
			t.Fatalf("frame %q never arrived", typ)
		}
	}
}
