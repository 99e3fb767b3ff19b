package app

import (
	"context"
	"time"

	"github.com/turquoise5/hand-music/internal/detector"
	"github.com/turquoise5/hand-music/internal/performance"
	"github.com/turquoise5/hand-music/pkg/logger"
)

// capture reads camera frames at the configured rate, runs the detector and
// posts the result to the mailbox.
func (a *App) capture(ctx context.Context, box *mailbox) {
	defer a.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(a.cfg.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mat, err := a.cfg.Camera.ReadFrame()
			if err != nil {
				a.log.Debug(ctx, "camera read failed", logger.Error(err))
				continue
			}

			hands, err := a.cfg.Detector.Detect(mat)
			mat.Close()
			if err != nil {
				a.log.Warn(ctx, "hand detection failed", logger.Error(err))
				continue
			}

			a.enqueue(box, detector.Frame{Hands: hands, Timestamp: a.now().UnixMilli()})
		}
	}
}

// consume is the only goroutine that runs frames through the machine while a
// session is active.
func (a *App) consume(ctx context.Context, box *mailbox) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-box.recv():
			a.process(ctx, env)
		}
	}
}

func (a *App) enqueue(box *mailbox, frame detector.Frame) {
	frame.Hands = detector.FilterHands(frame.Hands, a.cfg.DetectorConfig)
	if box.put(envelope{frame: frame, received: time.Now()}) {
		a.metrics.RecordDropped()
		a.statsMu.Lock()
		a.stats.Dropped++
		a.statsMu.Unlock()
	}
}

func (a *App) process(ctx context.Context, env envelope) {
	a.engineMu.Lock()
	events := a.machine.Process(ctx, env.frame)
	a.deliver(ctx, events)
	a.engineMu.Unlock()

	elapsed := time.Since(env.received)
	a.metrics.RecordFrame(elapsed)

	a.statsMu.Lock()
	a.stats.Frames++
	a.latency.add(float64(elapsed) / float64(time.Millisecond))
	a.statsMu.Unlock()
}

// deliver sends one batch to the sinks. Failures are logged and counted; the
// pipeline keeps running.
func (a *App) deliver(ctx context.Context, events []performance.Event) {
	if len(events) == 0 {
		return
	}
	if err := a.sink.Send(ctx, events); err != nil {
		a.metrics.RecordSinkError()
		a.log.Warn(ctx, "sink delivery failed", logger.Error(err))
	}
}
