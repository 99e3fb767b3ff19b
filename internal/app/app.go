// Package app runs tracking sessions for the hand-music instrument. Frames
// from the local camera or an external detector pass through the performance
// state machine and the resulting events are delivered to the sinks.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turquoise5/hand-music/internal/capture"
	"github.com/turquoise5/hand-music/internal/detector"
	"github.com/turquoise5/hand-music/internal/music"
	"github.com/turquoise5/hand-music/internal/performance"
	"github.com/turquoise5/hand-music/internal/store"
	"github.com/turquoise5/hand-music/internal/synth"
	"github.com/turquoise5/hand-music/pkg/logger"
	"github.com/turquoise5/hand-music/pkg/metrics"
)

// Settings is the musical selection of a session.
type Settings struct {
	PresetID string `json:"preset_id,omitempty"`
	Scale    string `json:"scale"`
	Key      string `json:"key"`
	Timbre   string `json:"timbre"`
}

// DefaultSettings is C ionian on a sine voice.
func DefaultSettings() Settings {
	return Settings{Scale: "ionian", Key: "C", Timbre: synth.DefaultTimbre}
}

// merge fills empty fields of s from cur.
func (s Settings) merge(cur Settings) Settings {
	if s.Scale == "" {
		s.Scale = cur.Scale
	}
	if s.Key == "" {
		s.Key = cur.Key
	}
	if s.Timbre == "" {
		s.Timbre = cur.Timbre
	}
	return s
}

// Config holds the collaborators of an App. Only Performance is required;
// without a Camera frames arrive through HandleFrame alone.
type Config struct {
	Store          *store.Store
	Camera         capture.Camera
	Detector       detector.Detector
	DetectorConfig detector.Config
	FPS            int
	Performance    performance.Config
	Settings       Settings
	Sink           synth.Sink
	Metrics        *metrics.Manager
	Logger         logger.Logger

	// Clock stamps session times and frames without a timestamp.
	Clock func() time.Time
}

// Status describes the current session.
type Status struct {
	Running   bool        `json:"running"`
	SessionID string      `json:"session_id,omitempty"`
	StartedAt *time.Time  `json:"started_at,omitempty"`
	Settings  Settings    `json:"settings"`
	Stats     store.Stats `json:"stats"`
}

// App owns the session lifecycle and the frame pipeline.
type App struct {
	cfg     Config
	log     logger.Logger
	metrics *metrics.Manager
	sink    synth.Sink
	now     func() time.Time

	mu        sync.RWMutex
	settings  Settings
	running   bool
	sessionID string
	startedAt time.Time
	cancel    context.CancelFunc
	box       *mailbox
	wg        sync.WaitGroup

	// engineMu serializes every use of machine.
	engineMu sync.Mutex
	machine  *performance.Machine

	statsMu sync.Mutex
	stats   store.Stats
	latency runningMean
}

// runningMean keeps a session-long mean in constant space.
type runningMean struct {
	sum float64
	n   int64
}

func (m *runningMean) add(v float64) {
	m.sum += v
	m.n++
}

func (m *runningMean) mean() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

// New creates an App with the session stopped.
func New(cfg Config) (*App, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.Named("app")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewManager()
	}
	if cfg.Sink == nil {
		cfg.Sink = synth.NewFanout()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.FPS <= 0 {
		cfg.FPS = capture.DefaultFPS
	}
	if cfg.DetectorConfig == (detector.Config{}) {
		cfg.DetectorConfig = detector.DefaultConfig()
	}
	cfg.Settings = cfg.Settings.merge(DefaultSettings())

	scale, err := music.Resolve(cfg.Settings.Scale, cfg.Settings.Key)
	if err != nil {
		return nil, err
	}
	if _, err := synth.Program(cfg.Settings.Timbre); err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		sink:     cfg.Sink,
		now:      cfg.Clock,
		settings: cfg.Settings,
	}
	a.machine, err = performance.NewMachine(cfg.Performance, scale,
		performance.WithLogger(cfg.Logger.Named("performance")),
		performance.WithRecorder(a),
		performance.WithClock(cfg.Clock),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Start begins a session: the machine is reset and the initial volume sent,
// the camera producer and the consumer are started and a history row is
// opened.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return ErrAlreadyRunning
	}
	if a.cfg.Camera != nil && a.cfg.Detector == nil {
		return ErrNoDetector
	}

	if a.cfg.Camera != nil {
		if err := a.cfg.Camera.Open(); err != nil {
			return fmt.Errorf("open camera: %w", err)
		}
		a.cfg.Camera.SetFPS(a.cfg.FPS)
	}

	a.applyTimbre(ctx, a.settings.Timbre)

	a.statsMu.Lock()
	a.stats = store.Stats{}
	a.latency = runningMean{}
	a.statsMu.Unlock()

	a.engineMu.Lock()
	a.deliver(ctx, a.machine.Begin())
	a.engineMu.Unlock()

	a.sessionID = uuid.New().String()
	a.startedAt = a.now()
	if a.cfg.Store != nil {
		err := a.cfg.Store.Sessions().Start(&store.Session{
			ID:        a.sessionID,
			PresetID:  a.settings.PresetID,
			Scale:     a.settings.Scale,
			Key:       a.settings.Key,
			Timbre:    a.settings.Timbre,
			StartedAt: a.startedAt,
		})
		if err != nil {
			a.log.Warn(ctx, "failed to record session start", logger.Error(err))
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.box = newMailbox()

	a.wg.Add(1)
	go a.consume(runCtx, a.box)
	if a.cfg.Camera != nil {
		a.wg.Add(1)
		go a.capture(runCtx, a.box)
	}

	a.running = true
	a.metrics.SetSessionActive(true)
	a.log.Info(ctx, "session started",
		logger.String("session", a.sessionID),
		logger.String("scale", a.settings.Scale),
		logger.String("key", a.settings.Key),
		logger.String("timbre", a.settings.Timbre),
		logger.Bool("camera", a.cfg.Camera != nil))
	return nil
}

// Stop ends the session. Producers stop first, then the consumer drains;
// afterwards every sounding voice is released to the sinks before Stop
// returns.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return ErrNotRunning
	}

	a.cancel()
	a.wg.Wait()

	if a.cfg.Camera != nil {
		if err := a.cfg.Camera.Close(); err != nil {
			a.log.Warn(ctx, "failed to close camera", logger.Error(err))
		}
	}

	a.engineMu.Lock()
	a.deliver(ctx, a.machine.Flush(ctx))
	a.engineMu.Unlock()

	stats := a.Stats()
	if a.cfg.Store != nil {
		if err := a.cfg.Store.Sessions().Finish(a.sessionID, a.now(), stats); err != nil {
			a.log.Warn(ctx, "failed to record session stop", logger.Error(err))
		}
	}

	a.log.Info(ctx, "session stopped",
		logger.String("session", a.sessionID),
		logger.Any("frames", stats.Frames),
		logger.Any("dropped", stats.Dropped),
		logger.Any("events", stats.Events),
		logger.Float64("mean_latency_ms", stats.MeanLatencyMs))

	a.running = false
	a.cancel = nil
	a.box = nil
	a.metrics.SetSessionActive(false)
	return nil
}

// HandleFrame delivers a frame from an external detector. Hands below the
// configured confidence are dropped first.
func (a *App) HandleFrame(frame detector.Frame) error {
	a.mu.RLock()
	box, running := a.box, a.running
	a.mu.RUnlock()

	if !running {
		return ErrNotRunning
	}
	a.enqueue(box, frame)
	return nil
}

// Configure applies new session settings. Empty fields keep their current
// value. Sounding voices are released because their pitches belong to the
// previous scale.
func (a *App) Configure(ctx context.Context, s Settings) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := s.merge(a.settings)
	scale, err := music.Resolve(next.Scale, next.Key)
	if err != nil {
		return err
	}
	if _, err := synth.Program(next.Timbre); err != nil {
		return err
	}

	a.engineMu.Lock()
	events, err := a.machine.SetScale(ctx, scale)
	if err == nil {
		a.deliver(ctx, events)
	}
	a.engineMu.Unlock()
	if err != nil {
		return err
	}

	if a.running && next.Timbre != a.settings.Timbre {
		a.applyTimbre(ctx, next.Timbre)
	}
	if a.cfg.Store != nil && next.PresetID != "" {
		if err := a.cfg.Store.Settings().Set(store.SettingLastPreset, next.PresetID); err != nil {
			a.log.Warn(ctx, "failed to remember preset", logger.Error(err))
		}
	}

	a.settings = next
	a.log.Info(ctx, "settings applied",
		logger.String("scale", next.Scale),
		logger.String("key", next.Key),
		logger.String("timbre", next.Timbre))
	return nil
}

// Settings returns the current selection.
func (a *App) Settings() Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

// IsRunning reports whether a session is active.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// Status returns a snapshot of the session.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st := Status{Running: a.running, Settings: a.settings}
	if a.running {
		started := a.startedAt
		st.SessionID = a.sessionID
		st.StartedAt = &started
		st.Stats = a.Stats()
	}
	return st
}

// Stats returns the counters of the current or last session.
func (a *App) Stats() store.Stats {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()

	s := a.stats
	s.MeanLatencyMs = a.latency.mean()
	return s
}

// Snapshot returns the state machine's current state.
func (a *App) Snapshot() performance.State {
	a.engineMu.Lock()
	defer a.engineMu.Unlock()
	return a.machine.Snapshot()
}

// Close stops a running session, then closes the sinks and the detector.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Stop(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
		errs = append(errs, err)
	}
	if err := a.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sinks: %w", err))
	}
	if a.cfg.Detector != nil {
		if err := a.cfg.Detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close detector: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Camera returns the configured camera, or nil.
func (a *App) Camera() capture.Camera {
	return a.cfg.Camera
}

// Detector returns the configured hand detector, or nil.
func (a *App) Detector() detector.Detector {
	return a.cfg.Detector
}

// RecordClassificationFailure implements performance.Recorder.
func (a *App) RecordClassificationFailure(reason string) {
	a.metrics.RecordClassificationFailure(reason)
	a.statsMu.Lock()
	a.stats.Failures++
	a.statsMu.Unlock()
}

// RecordEvent implements performance.Recorder.
func (a *App) RecordEvent(eventType string) {
	a.metrics.RecordEvent(eventType)
	a.statsMu.Lock()
	a.stats.Events++
	a.statsMu.Unlock()
}

func (a *App) applyTimbre(ctx context.Context, name string) {
	ts, ok := a.sink.(synth.TimbreSetter)
	if !ok {
		return
	}
	if err := ts.SetTimbre(name); err != nil {
		a.metrics.RecordSinkError()
		a.log.Warn(ctx, "failed to set timbre", logger.String("timbre", name), logger.Error(err))
	}
}
