// Package zorder keeps the stacking order of every window attached to the
// desktop icon layer consistent with the order the application intends. The
// attachment queue is the single source of truth; the OS Z-order is only a
// best-effort mirror of it, verified and repaired by a periodic sweep.
package zorder

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/deskpin/deskpin/internal/shell"
	"github.com/deskpin/deskpin/internal/win32"
)

const (
	// DefaultInterval is how often the sweep checks for icon-layer
	// intrusion. Empirical: fast enough that a "show desktop" glitch is
	// corrected before the user reaches for the mouse.
	DefaultInterval = 2 * time.Second
	// DefaultScanDepth bounds the sibling-chain walk above the topmost
	// tracked window. Empirical; only needs to be bounded and positive.
	DefaultScanDepth = 20
)

// Observer is an optional per-window capability: something the manager can
// subscribe to for focus and close signals. Hosts without one call
// BringToFront/Unregister themselves at the right moments.
type Observer interface {
	OnFocus(fn func())
	OnClose(fn func())
}

// Config holds tuning for a Manager.
type Config struct {
	Interval  time.Duration
	ScanDepth int
	Logger    *slog.Logger
}

type entry struct {
	id       string
	handle   win32.Handle
	observer Observer
}

// Manager is the registry of attached windows, ordered by "most recently
// brought to front" (tail = topmost), plus the single shared timer that
// drives the consistency sweep. Construct one per process and hand it to the
// facade; all queue mutations go through its mutex.
type Manager struct {
	api       win32.API
	interval  time.Duration
	scanDepth int
	logger    *slog.Logger

	mu     sync.Mutex
	queue  []*entry
	ticker *time.Ticker
	done   chan struct{}

	// Serializes sweeps: the ticker goroutine and any manual SweepNow must
	// never interleave, since both read-then-write the OS Z-order.
	sweepMu sync.Mutex
}

// NewManager creates a manager over the given foreign-call seam. Zero config
// fields fall back to defaults.
func NewManager(api win32.API, cfg Config) *Manager {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	depth := cfg.ScanDepth
	if depth <= 0 {
		depth = DefaultScanDepth
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		api:       api,
		interval:  interval,
		scanDepth: depth,
		logger:    logger,
	}
}

// Register adds a window at the tail of the queue (a new registrant is
// implicitly topmost) and immediately asserts its place at the top of the
// container's child stack. Registering an id twice is a no-op. The first
// registrant starts the shared timer.
func (m *Manager) Register(id string, h win32.Handle, obs Observer) {
	m.mu.Lock()
	if m.indexLocked(id) >= 0 {
		m.mu.Unlock()
		return
	}
	e := &entry{id: id, handle: h, observer: obs}
	m.queue = append(m.queue, e)
	if len(m.queue) == 1 {
		m.startTimerLocked()
	}
	if err := m.raiseLocked(e); err != nil {
		m.logger.Warn("initial raise failed, evicting", "window", id, "error", err)
		m.evictLocked(id)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	// Subscribe outside the lock: a capability is free to invoke its
	// callbacks synchronously.
	if obs != nil {
		obs.OnFocus(func() { m.BringToFront(id) })
		obs.OnClose(func() { m.Unregister(id) })
	}
}

// Unregister removes the window if present and stops the shared timer when
// the queue empties. Unknown ids are a no-op.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(id)
}

// BringToFront moves the window to the tail of the queue and asserts it at
// the top of the stack. A failed assertion means the handle went stale, so
// the entry is evicted.
func (m *Manager) BringToFront(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(id)
	if i < 0 {
		return
	}
	e := m.queue[i]
	if i != len(m.queue)-1 {
		m.queue = append(append(m.queue[:i], m.queue[i+1:]...), e)
	}
	if err := m.raiseLocked(e); err != nil {
		m.logger.Warn("raise failed, evicting", "window", id, "error", err)
		m.evictLocked(id)
	}
}

// CleanupAll clears the queue and stops the timer unconditionally. Safe to
// call when already idle; the host must call it at shutdown so the timer
// does not outlive the process's intent to exit.
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = nil
	if m.ticker != nil {
		m.stopTimerLocked()
	}
}

// Registered reports whether id is currently tracked.
func (m *Manager) Registered(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexLocked(id) >= 0
}

// Order returns the current queue order, bottom to top.
func (m *Manager) Order() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.queue))
	for i, e := range m.queue {
		ids[i] = e.id
	}
	return ids
}

// TimerRunning reports whether the shared sweep timer is active. It is
// running exactly when the queue is non-empty.
func (m *Manager) TimerRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticker != nil
}

// SweepNow runs a single consistency sweep. The shared timer calls this on
// every tick; tests and diagnostics may call it directly.
func (m *Manager) SweepNow() {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()
	m.sweep()
}

// sweep checks whether the icon layer has been promoted above the topmost
// tracked window and, if so, reasserts the whole queue bottom to top. A
// single-window fix is not enough: intermediate tracked windows could still
// sit behind the icon layer, so only a full ordered re-assertion restores
// the invariant in one pass.
func (m *Manager) sweep() {
	m.mu.Lock()
	snapshot := append([]*entry(nil), m.queue...)
	m.mu.Unlock()
	if len(snapshot) == 0 {
		return
	}

	sh, err := shell.Locate(m.api)
	if err != nil {
		// Transient (shell restart); retried next cycle.
		m.logger.Debug("sweep skipped, icon layer unresolved", "error", err)
		return
	}

	top := snapshot[len(snapshot)-1]
	if !m.iconLayerAbove(top.handle, sh.IconView) {
		return
	}

	m.logger.Debug("icon layer intruded, restoring stacking order", "windows", len(snapshot))
	var errs *multierror.Error
	for _, e := range snapshot {
		m.mu.Lock()
		if m.indexLocked(e.id) < 0 {
			// Detached mid-sweep; leave it alone.
			m.mu.Unlock()
			continue
		}
		if err := m.raiseLocked(e); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", e.id, err))
			m.evictLocked(e.id)
		}
		m.mu.Unlock()
	}
	if err := errs.ErrorOrNil(); err != nil {
		// A missed correction is a visual imperfection, never a crash; the
		// next cycle tries again.
		m.logger.Warn("stacking order partially restored", "error", err)
	}
}

// iconLayerAbove walks the sibling chain upward from h a bounded number of
// steps looking for the icon-view window. Bounded so a pathological sibling
// chain cannot stall the sweep.
func (m *Manager) iconLayerAbove(h, iconView win32.Handle) bool {
	cur := h
	for i := 0; i < m.scanDepth; i++ {
		above, err := m.api.WindowAbove(cur)
		if err != nil || above == win32.None {
			return false
		}
		if above == iconView {
			return true
		}
		cur = above
	}
	return false
}

func (m *Manager) indexLocked(id string) int {
	for i, e := range m.queue {
		if e.id == id {
			return i
		}
	}
	return -1
}

func (m *Manager) raiseLocked(e *entry) error {
	if !m.api.IsWindow(e.handle) {
		return fmt.Errorf("window %q handle is stale", e.id)
	}
	return m.api.SetWindowPos(e.handle, win32.HWND_TOP, 0, 0, 0, 0,
		win32.SWP_NOMOVE|win32.SWP_NOSIZE|win32.SWP_NOACTIVATE)
}

func (m *Manager) evictLocked(id string) {
	i := m.indexLocked(id)
	if i < 0 {
		return
	}
	m.queue = append(m.queue[:i], m.queue[i+1:]...)
	if len(m.queue) == 0 && m.ticker != nil {
		m.stopTimerLocked()
	}
}

func (m *Manager) startTimerLocked() {
	m.ticker = time.NewTicker(m.interval)
	m.done = make(chan struct{})
	go m.run(m.ticker, m.done)
}

func (m *Manager) stopTimerLocked() {
	m.ticker.Stop()
	close(m.done)
	m.ticker = nil
	m.done = nil
}

func (m *Manager) run(ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.SweepNow()
		}
	}
}
