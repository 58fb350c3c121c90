// Package tray provides the system tray menu for the accessory overlay.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(enabled bool)
	onNext     func()
	onPrevious func()
	onPreview  func()
	onQuit     func()
	enabled    bool
	current    string
	mu         sync.RWMutex

	menuToggle  *systray.MenuItem
	menuCurrent *systray.MenuItem
}

// New creates a new Tray with tracking enabled.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback for the tracking toggle.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnNext sets the callback for the next accessory item.
func (t *Tray) OnNext(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onNext = fn
}

// OnPrevious sets the callback for the previous accessory item.
func (t *Tray) OnPrevious(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPrevious = fn
}

// OnPreview sets the callback for the open preview item.
func (t *Tray) OnPreview(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPreview = fn
}

// OnQuit sets the callback for the quit item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray. It blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Abhinaya")
	systray.SetTooltip("Abhinaya face accessories")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle face tracking")
	systray.AddSeparator()
	t.menuCurrent = systray.AddMenuItem(currentTitle(t.current), "Active accessory")
	t.menuCurrent.Disable()
	t.mu.Unlock()

	menuNext := systray.AddMenuItem("Next Accessory", "Slide in the next accessory")
	menuPrevious := systray.AddMenuItem("Previous Accessory", "Slide in the previous accessory")
	systray.AddSeparator()
	menuPreview := systray.AddMenuItem("Open Preview...", "Open the preview in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Abhinaya")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuNext.ClickedCh:
				t.call(func() func() { return t.onNext })
			case <-menuPrevious.ClickedCh:
				t.call(func() func() { return t.onPrevious })
			case <-menuPreview.ClickedCh:
				t.call(func() func() { return t.onPreview })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Tracking"
	}
	return "○ Paused"
}

func currentTitle(name string) string {
	if name == "" {
		return "Accessory: none"
	}
	return "Accessory: " + name
}

// handleToggle flips the enabled state and calls the toggle callback.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// call runs the callback returned by get, read under the lock.
func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetCurrent updates the active accessory display.
func (t *Tray) SetCurrent(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = name
	if t.menuCurrent != nil {
		t.menuCurrent.SetTitle(currentTitle(name))
	}
}

// Current returns the accessory name last passed to SetCurrent.
func (t *Tray) Current() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
