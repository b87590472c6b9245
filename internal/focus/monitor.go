// Package focus provides an optional per-window focus/close observer for
// hosts whose GUI framework does not expose those signals itself. On Windows
// it listens for foreground and destroy events through a WinEvent hook; on
// every other platform Start reports unavailability and the monitor stays
// silent.
package focus

import (
	"log/slog"
	"sync"

	"github.com/deskpin/deskpin/internal/win32"
)

// Monitor watches a single native window for focus and close. It satisfies
// the Observer capability consumed by the Z-order manager: subscribe with
// OnFocus/OnClose, then Start.
type Monitor struct {
	target win32.Handle
	logger *slog.Logger

	mu      sync.Mutex
	onFocus []func()
	onClose []func()
	started bool
}

// NewMonitor creates a monitor for the given native window.
func NewMonitor(target win32.Handle, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{target: target, logger: logger}
}

// OnFocus registers fn to run when the window gains input focus. Callbacks
// fire on the event hook thread and must be short.
func (m *Monitor) OnFocus(fn func()) {
	m.mu.Lock()
	m.onFocus = append(m.onFocus, fn)
	m.mu.Unlock()
}

// OnClose registers fn to run when the window is destroyed.
func (m *Monitor) OnClose(fn func()) {
	m.mu.Lock()
	m.onClose = append(m.onClose, fn)
	m.mu.Unlock()
}

func (m *Monitor) dispatchFocus() {
	m.mu.Lock()
	fns := append([]func(){}, m.onFocus...)
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (m *Monitor) dispatchClose() {
	m.mu.Lock()
	fns := append([]func(){}, m.onClose...)
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
