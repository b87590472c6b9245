//go:build !windows

package focus

import "github.com/deskpin/deskpin/internal/win32"

// Start is unavailable off Windows; the monitor never fires.
func (m *Monitor) Start() error {
	return win32.ErrUnavailable
}

// Stop is a no-op off Windows.
func (m *Monitor) Stop() {}
