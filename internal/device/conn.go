// Package device speaks the wearable's JSON websocket protocol. One Conn
// per connected device carries finalized transcripts inbound and
// speak/tick/photo commands outbound, and implements the audio and camera
// collaborator contracts the session core consumes.
package device

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Movenanter/Rescue/internal/capture"
)

// Upgrader accepts device connections. Origins are unrestricted: the
// wearable connects directly, not through a browser.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// helloTimeout bounds the wait for the device capability frame.
const helloTimeout = 5 * time.Second

// photoTimeout bounds one photo round-trip to the device camera.
const photoTimeout = 10 * time.Second

// message is the single frame shape both directions use.
// Inbound types: "hello", "transcript", "photo".
// Outbound types: "speak", "tick", "stop_audio", "photo_request".
type message struct {
	Type     string  `json:"type"`
	Camera   bool    `json:"camera,omitempty"`
	Text     string  `json:"text,omitempty"`
	Final    bool    `json:"final,omitempty"`
	URL      string  `json:"url,omitempty"`
	Volume   float64 `json:"volume,omitempty"`
	ID       string  `json:"id,omitempty"`
	SizeHint string  `json:"size_hint,omitempty"`
	Data     string  `json:"data,omitempty"`
	MimeType string  `json:"mime_type,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Conn is one connected device.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	mu        sync.Mutex
	hasCamera bool
	pending   map[string]chan capture.Photo
}

func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws, pending: make(map[string]chan capture.Photo)}
}

// Handshake reads the device hello frame, which declares capabilities.
func (c *Conn) Handshake() error {
	_ = c.ws.SetReadDeadline(time.Now().Add(helloTimeout))
	defer func() { _ = c.ws.SetReadDeadline(time.Time{}) }()

	var m message
	if err := c.ws.ReadJSON(&m); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if m.Type != "hello" {
		return fmt.Errorf("expected hello frame, got %q", m.Type)
	}
	c.mu.Lock()
	c.hasCamera = m.Camera
	c.mu.Unlock()
	return nil
}

// HasCamera reports whether the device declared a camera capability.
func (c *Conn) HasCamera() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasCamera
}

// Speak sends one line of speech to the device TTS.
func (c *Conn) Speak(text string) error {
	return c.write(message{Type: "speak", Text: text})
}

// PlayTick plays the metronome sound. Fire-and-forget: a write failure is
// logged and dropped so the beat loop never notices.
func (c *Conn) PlayTick(url string, volume float64) {
	if err := c.write(message{Type: "tick", URL: url, Volume: volume}); err != nil {
		log.Printf("tick write failed: %v", err)
	}
}

// StopAll halts all device playback immediately.
func (c *Conn) StopAll() {
	if err := c.write(message{Type: "stop_audio"}); err != nil {
		log.Printf("stop_audio write failed: %v", err)
	}
}

// RequestPhoto asks the device camera for one frame and waits for the
// correlated reply.
func (c *Conn) RequestPhoto(ctx context.Context, hint capture.SizeHint) (capture.Photo, error) {
	id := uuid.NewString()
	ch := make(chan capture.Photo, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(message{Type: "photo_request", ID: id, SizeHint: string(hint)}); err != nil {
		return capture.Photo{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, photoTimeout)
	defer cancel()
	select {
	case <-ctx.Done():
		return capture.Photo{}, ctx.Err()
	case photo := <-ch:
		return photo, nil
	}
}

// Run reads device frames until the connection drops or ctx is cancelled.
// Transcripts are delivered to onTranscript in arrival order; photo replies
// resolve their pending request.
func (c *Conn) Run(ctx context.Context, onTranscript func(text string, final bool)) error {
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.ws.Close()
		case <-readDone:
		}
	}()

	for {
		var m message
		if err := c.ws.ReadJSON(&m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		switch m.Type {
		case "transcript":
			if onTranscript != nil {
				onTranscript(m.Text, m.Final)
			}
		case "photo":
			c.resolvePhoto(m)
		default:
			log.Printf("device frame ignored: type=%q", m.Type)
		}
	}
}

func (c *Conn) resolvePhoto(m message) {
	c.mu.Lock()
	ch := c.pending[m.ID]
	c.mu.Unlock()
	if ch == nil {
		log.Printf("photo reply with no pending request: id=%s", m.ID)
		return
	}
	var photo capture.Photo
	if m.Error == "" && m.Data != "" {
		data, err := base64.StdEncoding.DecodeString(m.Data)
		if err != nil {
			log.Printf("photo decode failed: %v", err)
		} else {
			photo = capture.Photo{Bytes: data, MimeType: m.MimeType}
		}
	}
	// Empty photo signals a failed capture; the orchestrator retries.
	select {
	case ch <- photo:
	default:
	}
}

// Close tears the websocket down.
func (c *Conn) Close() error { return c.ws.Close() }

func (c *Conn) write(m message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}
