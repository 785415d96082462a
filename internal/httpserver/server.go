// Package httpserver exposes the device endpoint and the QA surface, and
// wires one full session core per device connection.
package httpserver

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Movenanter/Rescue/internal/capture"
	"github.com/Movenanter/Rescue/internal/config"
	"github.com/Movenanter/Rescue/internal/device"
	"github.com/Movenanter/Rescue/internal/infra/storage"
	"github.com/Movenanter/Rescue/internal/journal"
	"github.com/Movenanter/Rescue/internal/metronome"
	"github.com/Movenanter/Rescue/internal/session"
	"github.com/Movenanter/Rescue/internal/speech"
)

// Deps are the process-wide collaborators shared across sessions. Sessions
// themselves share no mutable state with each other.
type Deps struct {
	Config     config.Config
	Settings   *config.Settings
	Registry   *session.Registry
	Classifier session.Classifier
	Analyzer   capture.Analyzer
	Store      storage.PhotoStore // may be nil: persistence disabled
	Local      *storage.Local     // QA listing; may be nil
	Journal    *journal.Journal   // may be nil: journaling disabled
}

// New creates the configured Echo server instance.
func New(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/photos", listPhotos(deps.Local))
	e.POST("/profile/reload", reloadProfile(deps.Settings))
	e.GET("/session", handleSession(deps))
	return e
}

// reloadProfile re-reads the device profile so changed settings reach live
// sessions through their OnChange subscriptions.
func reloadProfile(settings *config.Settings) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := settings.Reload(); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true})
	}
}

// listPhotos serves the QA photo listing, newest first.
func listPhotos(local *storage.Local) echo.HandlerFunc {
	return func(c echo.Context) error {
		if local == nil {
			return c.JSON(http.StatusOK, map[string]any{"success": true, "photos": []storage.PhotoInfo{}, "count": 0})
		}
		photos, err := local.List()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]any{"success": false})
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true, "photos": photos, "count": len(photos)})
	}
}

// handleSession upgrades a device connection and runs its session to
// completion. Everything built here is torn down on disconnect.
func handleSession(deps Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		ws, err := device.Upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			log.Printf("ws upgrade error: %v", err)
			return nil
		}
		conn := device.NewConn(ws)
		defer func() { _ = conn.Close() }()

		if err := conn.Handshake(); err != nil {
			log.Printf("device handshake failed: %v", err)
			return nil
		}

		id := uuid.NewString()
		queue := speech.NewQueue(conn)
		sched := metronome.NewScheduler(conn, queue, deps.Config.TickSoundURL, deps.Config.TickVolume)

		bpm := deps.Settings.GetInt(config.KeyBPM, session.DefaultBPM)
		saveForQA := deps.Settings.GetBool(config.KeySaveForQA, false)

		var camera capture.Camera
		if conn.HasCamera() {
			camera = conn
		}
		// The orchestrator reads the toggle through the session so profile
		// changes apply to captures already scheduled.
		var sess *session.Session
		orch := capture.NewOrchestrator(id, camera, deps.Analyzer, deps.Store, queue, func() bool {
			return sess.SaveForQA()
		})

		sessDeps := session.Deps{
			Classifier: deps.Classifier,
			Announcer:  queue,
			Metronome:  sched,
			Capturer:   orch,
			StopAudio:  conn.StopAll,
		}
		if deps.Journal != nil {
			sessDeps.Recorder = deps.Journal
		}
		sess = session.New(id, bpm, saveForQA, sessDeps)
		sess.AddCleanup(queue.Close)
		sess.AddCleanup(deps.Settings.OnChange(config.KeyBPM, func(v any) {
			if n, ok := asInt(v); ok {
				sess.SetBPM(n)
			}
		}))
		sess.AddCleanup(deps.Settings.OnChange(config.KeySaveForQA, func(v any) {
			if b, ok := v.(bool); ok {
				sess.SetSaveForQA(b)
			}
		}))
		deps.Registry.Add(sess)
		defer deps.Registry.Remove(id)

		log.Printf("session %s connected (camera=%v)", id, conn.HasCamera())
		ctx := c.Request().Context()
		err = conn.Run(ctx, func(text string, final bool) {
			sess.HandleTranscript(ctx, text, final)
		})
		log.Printf("session %s disconnected: %v", id, err)
		return nil
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
