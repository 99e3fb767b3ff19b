package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/turquoise5/hand-music/internal/app"
	"github.com/turquoise5/hand-music/internal/detector"
	"github.com/turquoise5/hand-music/internal/performance"
	"github.com/turquoise5/hand-music/internal/store"
	"github.com/turquoise5/hand-music/internal/synth"
	"github.com/turquoise5/hand-music/pkg/logger"
)

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestAPI_SessionWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	hub := NewEventHub(logger.Nop())
	a, err := app.New(app.Config{
		Store:       st,
		Performance: performance.DefaultConfig(),
		Sink:        synth.NewFanout(hub),
		Logger:      logger.Nop(),
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	defer a.Close(context.Background())

	ts := httptest.NewServer(New(Config{Store: st, Engine: a, Events: hub, Logger: logger.Nop()}))
	defer ts.Close()
	client := ts.Client()

	// 1. Create a preset
	body := `{"name": "D dorian", "scale": "dorian", "key": "D", "timbre": "triangle"}`
	resp, err := client.Post(ts.URL+"/api/presets", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /api/presets error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var preset struct {
		ID string `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&preset)
	resp.Body.Close()

	// 2. Start a session with it
	resp, err = client.Post(ts.URL+"/api/session/start", "application/json",
		bytes.NewBufferString(`{"preset_id": "`+preset.ID+`"}`))
	if err != nil {
		t.Fatalf("POST /api/session/start error = %v", err)
	}
	var status app.Status
	json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !status.Running {
		t.Fatalf("start status = %d, running = %v", resp.StatusCode, status.Running)
	}
	if status.Settings.Scale != "dorian" || status.Settings.Key != "D" || status.Settings.PresetID != preset.ID {
		t.Errorf("unexpected settings %+v", status.Settings)
	}

	// 3. Subscribe to events and push a frame
	events := dial(t, ts, "/api/events")
	waitUntil(t, func() bool { return hub.Clients() == 1 })

	landmarks := dial(t, ts, "/api/landmarks")
	frame, _ := json.Marshal(detector.Frame{
		Hands:     []detector.HandLandmarks{detector.PointingHand(0.5, 0.5)},
		Timestamp: 1000,
	})
	if err := landmarks.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	events.SetReadDeadline(time.Now().Add(2 * time.Second))
	var batch struct {
		Events []performance.Event `json:"events"`
	}
	if err := events.ReadJSON(&batch); err != nil {
		t.Fatalf("read events: %v", err)
	}
	if len(batch.Events) == 0 || batch.Events[0].Type != performance.EventAttack {
		t.Fatalf("expected a melody attack, got %+v", batch.Events)
	}

	// 4. Malformed frames are answered, not fatal
	landmarks.WriteMessage(websocket.TextMessage, []byte("{nope"))
	landmarks.SetReadDeadline(time.Now().Add(2 * time.Second))
	var wsErr wsError
	if err := landmarks.ReadJSON(&wsErr); err != nil || wsErr.Error == "" {
		t.Errorf("expected an error message, got %+v (%v)", wsErr, err)
	}

	// 5. Stop, then stop again
	resp, _ = client.Post(ts.URL+"/api/session/stop", "application/json", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if err := events.ReadJSON(&batch); err != nil {
		t.Fatalf("read release: %v", err)
	}
	if batch.Events[0].Type != performance.EventRelease {
		t.Errorf("expected release on stop, got %+v", batch.Events)
	}

	resp, _ = client.Post(ts.URL+"/api/session/stop", "application/json", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second stop status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	// 6. History
	resp, _ = client.Get(ts.URL + "/api/sessions")
	var history struct {
		Sessions []store.Session `json:"sessions"`
	}
	json.NewDecoder(resp.Body).Decode(&history)
	resp.Body.Close()
	if len(history.Sessions) != 1 || history.Sessions[0].PresetID != preset.ID {
		t.Fatalf("unexpected history %+v", history.Sessions)
	}
	if history.Sessions[0].Frames != 1 || history.Sessions[0].StoppedAt == nil {
		t.Errorf("unexpected session stats %+v", history.Sessions[0])
	}
}

func TestEventHub_CloseDisconnects(t *testing.T) {
	hub := NewEventHub(logger.Nop())
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn := dial(t, ts, "")
	waitUntil(t, func() bool { return hub.Clients() == 1 })

	hub.Close()
	if hub.Clients() != 0 {
		t.Errorf("expected no clients after close, got %d", hub.Clients())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}
	if err := hub.Send(context.Background(), []performance.Event{performance.ReleaseEvent(performance.VoiceMelody, []int{60})}); err != nil {
		t.Errorf("Send() after close = %v", err)
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
