package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/turquoise5/hand-music/internal/app"
	"github.com/turquoise5/hand-music/internal/capture"
	"github.com/turquoise5/hand-music/internal/config"
	"github.com/turquoise5/hand-music/internal/detector"
	"github.com/turquoise5/hand-music/internal/server"
	"github.com/turquoise5/hand-music/internal/store"
	"github.com/turquoise5/hand-music/internal/synth"
	"github.com/turquoise5/hand-music/internal/tray"
	"github.com/turquoise5/hand-music/pkg/logger"
	"github.com/turquoise5/hand-music/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	logger.Init(os.Stderr)
	log := logger.Named("main")
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hand-music: %v\n", err)
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "hand-music: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "hand-music failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	mgr := metrics.NewManager()
	hub := server.NewEventHub(logger.Named("events"))
	menu := tray.New(cfg.Session.Scale, cfg.Session.Key)

	sinks := synth.NewFanout(hub)
	if cfg.Tray {
		sinks.Add(menu)
	}
	if out, err := synth.OpenMIDI(cfg.MIDI); err != nil {
		log.Warn(ctx, "MIDI output unavailable, logging events instead", logger.Error(err))
		sinks.Add(synth.NewLogSink(logger.Named("synth")))
	} else {
		sinks.Add(out)
	}

	appCfg := app.Config{
		Store:          st,
		DetectorConfig: cfg.Detector,
		FPS:            cfg.FPS,
		Performance:    cfg.PerformanceConfig(),
		Settings:       app.Settings{Scale: cfg.Session.Scale, Key: cfg.Session.Key, Timbre: cfg.Session.Timbre},
		Sink:           sinks,
		Metrics:        mgr,
		Logger:         logger.Named("app"),
	}
	if cfg.Camera {
		det, err := detector.NewMediaPipeDetector(cfg.Detector)
		if err != nil {
			log.Warn(ctx, "hand detector unavailable, camera disabled", logger.Error(err))
		} else {
			appCfg.Detector = det
			appCfg.Camera = capture.NewCamera(cfg.CameraID, capture.WithFPS(cfg.FPS))
		}
	}
	if id, err := st.Settings().Get(store.SettingLastPreset); err == nil {
		if p, err := st.Presets().GetByID(id); err == nil {
			appCfg.Settings = app.Settings{PresetID: p.ID, Scale: p.Scale, Key: p.Key, Timbre: p.Timbre}
			menu.SetSelection(p.Scale, p.Key)
		}
	}

	engine, err := app.New(appCfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := engine.Close(closeCtx); err != nil {
			log.Warn(ctx, "shutdown incomplete", logger.Error(err))
		}
	}()

	webDir := findWebDir()
	if webDir != "" {
		log.Info(ctx, "serving static files", logger.String("dir", webDir))
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Engine:    engine,
		Events:    hub,
		Metrics:   mgr.Handler(),
		Logger:    logger.Named("server"),
	}).HTTPServer(cfg.Addr)

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tray {
		wireTray(ctx, menu, engine, cfg.Addr, log)
		go func() {
			select {
			case <-sigCtx.Done():
			case err := <-serveErr:
				if err != nil {
					log.Error(ctx, "server failed", logger.Error(err))
				}
			}
			menu.Quit()
		}()
		go syncTray(sigCtx, menu, engine)
		menu.Run()
	} else {
		select {
		case <-sigCtx.Done():
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("server: %w", err)
			}
		}
	}

	log.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn(ctx, "server shutdown", logger.Error(err))
	}
	return nil
}

// wireTray connects the tray menu to the engine.
func wireTray(ctx context.Context, menu *tray.Tray, engine *app.App, addr string, log logger.Logger) {
	menu.OnToggle(func(start bool) error {
		var err error
		if start {
			err = engine.Start(ctx)
		} else {
			err = engine.Stop(ctx)
		}
		if err != nil {
			log.Warn(ctx, "session toggle failed", logger.Bool("start", start), logger.Error(err))
		}
		return err
	})
	menu.OnSelect(func(scale, key string) error {
		err := engine.Configure(ctx, app.Settings{Scale: scale, Key: key})
		if err != nil {
			log.Warn(ctx, "selection rejected", logger.Error(err))
		}
		return err
	})
	menu.OnSettings(func() {
		if err := openBrowser(settingsURL(addr)); err != nil {
			log.Warn(ctx, "failed to open browser", logger.Error(err))
		}
	})
}

// syncTray mirrors sessions started or reconfigured over HTTP into the menu.
func syncTray(ctx context.Context, menu *tray.Tray, engine *app.App) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if running := engine.IsRunning(); running != menu.IsRunning() {
				menu.SetRunning(running)
			}
			s := engine.Settings()
			if scale, key := menu.Selection(); scale != s.Scale || key != s.Key {
				menu.SetSelection(s.Scale, s.Key)
			}
		}
	}
}

func settingsURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.hand-music/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	homeWebDir := filepath.Join(homeDir, ".hand-music", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}
