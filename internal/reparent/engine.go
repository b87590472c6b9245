// Package reparent performs the attach/detach transform: moving a top-level
// window into (and back out of) the desktop icon layer while preserving its
// exact on-screen position across the change of coordinate space.
package reparent

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/deskpin/deskpin/internal/shell"
	"github.com/deskpin/deskpin/internal/win32"
)

// Engine owns the container-handle cache: for every attached window it
// remembers which container it was parented into, so detach can reverse the
// transform for the right window even after the shell has moved on.
type Engine struct {
	api    win32.API
	logger *slog.Logger

	mu         sync.Mutex
	containers map[string]win32.Handle // window id -> container at attach time
}

// NewEngine creates an engine over the given foreign-call seam.
func NewEngine(api win32.API, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		api:        api,
		logger:     logger,
		containers: make(map[string]win32.Handle),
	}
}

// Attach reparents the window into the desktop icon layer's container,
// keeping its on-screen rectangle pixel-identical. On any failure past the
// parent change it detaches again rather than leave a half-transformed
// window behind.
func (e *Engine) Attach(id string, h win32.Handle) error {
	sh, err := shell.Locate(e.api)
	if err != nil {
		return err
	}

	// The screen rectangle before reparenting is the position that must be
	// visually preserved.
	rect, err := e.api.WindowRect(h)
	if err != nil {
		return fmt.Errorf("read window rect: %w", err)
	}

	style, err := e.api.Style(h)
	if err != nil {
		return fmt.Errorf("read style: %w", err)
	}
	// Make sure the visibility bit is set. The popup bit stays as-is:
	// clearing it changes how the shell decorates and composites the window.
	if style&win32.WS_VISIBLE == 0 {
		if err := e.api.SetStyle(h, style|win32.WS_VISIBLE); err != nil {
			return fmt.Errorf("set style: %w", err)
		}
	}

	if err := e.api.SetParent(h, sh.Container); err != nil {
		return fmt.Errorf("reparent into container: %w", err)
	}

	// After SetParent, position calls are interpreted relative to the new
	// parent's client area, so translate the saved screen origin by the
	// container's own screen origin.
	containerRect, err := e.api.WindowRect(sh.Container)
	if err != nil {
		e.rollback(id, h)
		return fmt.Errorf("read container rect: %w", err)
	}
	x := rect.Left - containerRect.Left
	y := rect.Top - containerRect.Top

	err = e.api.SetWindowPos(h, win32.HWND_TOP, x, y, rect.Width(), rect.Height(),
		win32.SWP_NOACTIVATE|win32.SWP_SHOWWINDOW)
	if err != nil {
		e.rollback(id, h)
		return fmt.Errorf("reposition after reparent: %w", err)
	}

	e.mu.Lock()
	e.containers[id] = sh.Container
	e.mu.Unlock()
	return nil
}

// Detach returns the window to the top-level desktop, reapplying its current
// screen rectangle. Rect queries are always screen-relative regardless of
// parent, so the rectangle read before SetParent is already the final one.
func (e *Engine) Detach(id string, h win32.Handle) error {
	rect, err := e.api.WindowRect(h)
	if err != nil {
		e.forget(id)
		return fmt.Errorf("read window rect: %w", err)
	}
	if err := e.api.SetParent(h, win32.None); err != nil {
		e.forget(id)
		return fmt.Errorf("reparent to desktop: %w", err)
	}
	err = e.api.SetWindowPos(h, win32.HWND_TOP, rect.Left, rect.Top, rect.Width(), rect.Height(),
		win32.SWP_NOACTIVATE|win32.SWP_SHOWWINDOW)
	e.forget(id)
	if err != nil {
		return fmt.Errorf("reposition after detach: %w", err)
	}
	return nil
}

// Attached reports whether id currently has a cached container, i.e. went
// through Attach without a matching Detach.
func (e *Engine) Attached(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.containers[id]
	return ok
}

// rollback undoes a partially applied attach. Best effort: a window left
// top-level at its old position is recoverable, a window stuck inside the
// container without a corrected position is not.
func (e *Engine) rollback(id string, h win32.Handle) {
	if err := e.Detach(id, h); err != nil {
		e.logger.Warn("rollback after failed attach did not complete", "window", id, "error", err)
	}
}

func (e *Engine) forget(id string) {
	e.mu.Lock()
	delete(e.containers, id)
	e.mu.Unlock()
}
