//go:build !windows

package win32

// Load always reports the bindings as unavailable: the desktop-icon window
// hierarchy this subsystem targets only exists on Windows shells. Callers are
// expected to degrade to a no-op, not to fail.
func Load() (API, error) {
	return nil, ErrUnavailable
}
