// Package deskpin attaches application windows to the Windows desktop icon
// layer so they render above the desktop icons, survive "show desktop", and
// keep a stable stacking order alongside other attached windows.
//
// Every operation is a total function: failures resolve to false (or a plain
// no-op) plus a log line, never a panic or an error value. A host should
// treat false from Attach/Toggle as "feature unavailable right now" and keep
// using the window as an ordinary top-level window. On platforms without the
// targeted shell hierarchy the whole facade degrades to a no-op.
package deskpin

import (
	"log/slog"
	"time"

	"github.com/deskpin/deskpin/internal/config"
	"github.com/deskpin/deskpin/internal/reparent"
	"github.com/deskpin/deskpin/internal/shell"
	"github.com/deskpin/deskpin/internal/win32"
	"github.com/deskpin/deskpin/internal/zorder"
)

// Handle identifies a native window. Re-exported so hosts do not import the
// binding layer directly.
type Handle = win32.Handle

// HandleFunc resolves the current native handle for a logical window. It is
// a function rather than a value because OS handles are not stable: the same
// logical window may be destroyed and recreated with a new handle.
type HandleFunc func() Handle

// Observer is the optional focus/close capability a host may supply per
// window; see zorder.Observer.
type Observer = zorder.Observer

// Pinner is the public facade over the probe, locator, reparent engine and
// Z-order manager. Construct exactly one per process.
type Pinner struct {
	logger  *slog.Logger
	api     win32.API
	engine  *reparent.Engine
	manager *zorder.Manager
}

// New probes the OS bindings and builds a Pinner. When the probe fails the
// Pinner still works; every operation just reports unavailable.
func New(cfg *config.Config, logger *slog.Logger) *Pinner {
	if logger == nil {
		logger = slog.Default()
	}
	api, err := win32.Load()
	if err != nil {
		logger.Info("desktop attachment unavailable", "error", err)
		api = nil
	}
	return NewWithAPI(api, cfg, logger)
}

// NewWithAPI builds a Pinner over an explicit foreign-call seam. A nil api
// yields a permanently unavailable Pinner. Used by New and by tests.
func NewWithAPI(api win32.API, cfg *config.Config, logger *slog.Logger) *Pinner {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pinner{logger: logger, api: api}
	if api != nil {
		p.engine = reparent.NewEngine(api, logger)
		p.manager = zorder.NewManager(api, zorder.Config{
			Interval:  time.Duration(cfg.SweepInterval),
			ScanDepth: cfg.SiblingScanDepth,
			Logger:    logger,
		})
	}
	return p
}

// Available reports whether the desktop icon layer integration works on this
// machine. The underlying probe runs once; a failure is permanent.
func (p *Pinner) Available() bool {
	return p.api != nil
}

// Attach reparents the window into the desktop icon layer and starts
// tracking its stacking order. id is the host's stable identifier for the
// logical window; the handle is resolved at call time.
func (p *Pinner) Attach(id string, handle HandleFunc, obs Observer) bool {
	if p.api == nil || handle == nil {
		return false
	}
	h := handle()
	if h == win32.None {
		p.logger.Warn("attach skipped, no native handle", "window", id)
		return false
	}
	if err := p.engine.Attach(id, h); err != nil {
		p.logger.Warn("attach failed", "window", id, "error", err)
		return false
	}
	p.manager.Register(id, h, obs)
	p.logger.Debug("window attached to desktop", "window", id)
	return true
}

// Detach stops tracking the window and returns it to the top-level desktop
// at its current screen position. Unregistering happens first so an
// in-flight sweep cannot touch the window mid-detach.
func (p *Pinner) Detach(id string, handle HandleFunc) bool {
	if p.api == nil || handle == nil {
		return false
	}
	p.manager.Unregister(id)
	h := handle()
	if h == win32.None {
		p.logger.Warn("detach skipped, no native handle", "window", id)
		return false
	}
	if err := p.engine.Detach(id, h); err != nil {
		p.logger.Warn("detach failed", "window", id, "error", err)
		return false
	}
	p.logger.Debug("window detached from desktop", "window", id)
	return true
}

// Toggle dispatches to Attach or Detach depending on enable.
func (p *Pinner) Toggle(id string, handle HandleFunc, enable bool) bool {
	if enable {
		return p.Attach(id, handle, nil)
	}
	return p.Detach(id, handle)
}

// BringToFront moves the window to the top of the attached stack. Unknown
// ids are a no-op.
func (p *Pinner) BringToFront(id string) {
	if p.api == nil {
		return
	}
	p.manager.BringToFront(id)
}

// ShellInfo resolves the desktop icon layer right now and returns the
// icon-view and container handles. Diagnostic; the result must not be cached
// because the container moves across shell restarts.
func (p *Pinner) ShellInfo() (iconView, container Handle, ok bool) {
	if p.api == nil {
		return win32.None, win32.None, false
	}
	sh, err := shell.Locate(p.api)
	if err != nil {
		p.logger.Debug("icon layer not resolved", "error", err)
		return win32.None, win32.None, false
	}
	return sh.IconView, sh.Container, true
}

// CleanupAll drops all tracked windows and stops the shared sweep timer.
// Hosts must call this at shutdown. Idempotent.
func (p *Pinner) CleanupAll() {
	if p.api == nil {
		return
	}
	p.manager.CleanupAll()
}
