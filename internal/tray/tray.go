// Package tray provides the system tray menu of hand-music: session
// start/stop, scale and key selection, and the last note played.
package tray

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/getlantern/systray"

	"github.com/turquoise5/hand-music/internal/music"
	"github.com/turquoise5/hand-music/internal/performance"
)

// Tray represents the system tray application. It also implements
// synth.Sink so it can show the last note of the running session.
type Tray struct {
	mu         sync.RWMutex
	onToggle   func(start bool) error
	onSelect   func(scale, key string) error
	onSettings func()
	onQuit     func()

	running  bool
	scale    string
	key      string
	lastNote string

	// Menu items stored for later updates
	menuToggle    *systray.MenuItem
	menuSelection *systray.MenuItem
	menuLastNote  *systray.MenuItem
	scaleItems    map[string]*systray.MenuItem
	keyItems      map[string]*systray.MenuItem
}

// New creates a Tray showing the given selection with the session stopped.
func New(scale, key string) *Tray {
	return &Tray{scale: scale, key: key}
}

// OnToggle sets the callback run when the user starts or stops the session.
// The menu only changes state when the callback succeeds.
func (t *Tray) OnToggle(fn func(start bool) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSelect sets the callback run when the user picks a scale or key.
func (t *Tray) OnSelect(fn func(scale, key string) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSelect = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("♪")
	systray.SetTooltip("hand-music")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.running), "Start or stop hand tracking")
	systray.AddSeparator()

	t.menuSelection = systray.AddMenuItem(selectionTitle(t.scale, t.key), "Current scale and key")
	t.menuSelection.Disable()
	t.menuLastNote = systray.AddMenuItem(noteTitle(t.lastNote), "Last note played")
	t.menuLastNote.Disable()
	systray.AddSeparator()

	scaleMenu := systray.AddMenuItem("Scale", "Choose the scale")
	t.scaleItems = make(map[string]*systray.MenuItem)
	for _, name := range music.Names() {
		item := scaleMenu.AddSubMenuItem(name, "")
		t.scaleItems[name] = item
		go t.watch(item, func() { t.handleSelect(name, "") })
	}

	keyMenu := systray.AddMenuItem("Key", "Choose the key")
	t.keyItems = make(map[string]*systray.MenuItem)
	for _, name := range music.Keys() {
		item := keyMenu.AddSubMenuItem(name, "")
		t.keyItems[name] = item
		go t.watch(item, func() { t.handleSelect("", name) })
	}
	t.refreshChecks()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit hand-music")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) watch(item *systray.MenuItem, fn func()) {
	for range item.ClickedCh {
		fn()
	}
}

func (t *Tray) handleToggle() {
	t.mu.RLock()
	start := !t.running
	callback := t.onToggle
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		if err := callback(start); err != nil {
			return
		}
	}
	t.SetRunning(start)
}

func (t *Tray) handleSelect(scale, key string) {
	t.mu.RLock()
	if scale == "" {
		scale = t.scale
	}
	if key == "" {
		key = t.key
	}
	callback := t.onSelect
	t.mu.RUnlock()

	if callback != nil {
		if err := callback(scale, key); err != nil {
			return
		}
	}
	t.SetSelection(scale, key)
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetRunning reflects a session started or stopped elsewhere.
func (t *Tray) SetRunning(running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.running = running
	if !running {
		t.lastNote = ""
		if t.menuLastNote != nil {
			t.menuLastNote.SetTitle(noteTitle(""))
		}
	}
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(running))
	}
}

// SetSelection updates the displayed scale and key.
func (t *Tray) SetSelection(scale, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.scale, t.key = scale, key
	if t.menuSelection != nil {
		t.menuSelection.SetTitle(selectionTitle(scale, key))
	}
	t.refreshChecks()
}

// refreshChecks marks the selected scale and key. Callers hold t.mu.
func (t *Tray) refreshChecks() {
	for name, item := range t.scaleItems {
		setChecked(item, strings.EqualFold(name, t.scale))
	}
	for name, item := range t.keyItems {
		setChecked(item, strings.EqualFold(name, t.key))
	}
}

func setChecked(item *systray.MenuItem, checked bool) {
	if checked {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// IsRunning returns whether the menu shows a running session.
func (t *Tray) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// Selection returns the displayed scale and key.
func (t *Tray) Selection() (scale, key string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scale, t.key
}

// LastNote returns the name of the last attacked pitch, or "".
func (t *Tray) LastNote() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastNote
}

// Send records the last melody or chord attack.
func (t *Tray) Send(ctx context.Context, events []performance.Event) error {
	var note string
	for _, e := range events {
		if e.Type != performance.EventAttack || len(e.Pitches) == 0 {
			continue
		}
		names := make([]string, len(e.Pitches))
		for i, p := range e.Pitches {
			names[i] = music.PitchName(p)
		}
		note = strings.Join(names, " ")
	}
	if note == "" {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastNote = note
	if t.menuLastNote != nil {
		t.menuLastNote.SetTitle(noteTitle(note))
	}
	return nil
}

// Close implements synth.Sink.
func (t *Tray) Close() error { return nil }

func toggleTitle(running bool) string {
	if running {
		return "■ Stop"
	}
	return "▶ Start"
}

func selectionTitle(scale, key string) string {
	return fmt.Sprintf("%s in %s", scale, key)
}

func noteTitle(note string) string {
	if note == "" {
		return "Last: none"
	}
	return "Last: " + note
}
