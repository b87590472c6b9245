// Package shell locates the two OS windows that make up the desktop icon
// layer: the icon-view window (SHELLDLL_DefView) and the container that holds
// it. The container differs across shell topologies: classically it is the
// Progman root, but after a shell restart or wallpaper-engine activity the
// icon view can live under a WorkerW sibling instead, so both lookups are
// tried, cheapest first.
package shell

import (
	"errors"

	"github.com/deskpin/deskpin/internal/win32"
)

const (
	progmanClass  = "Progman"
	progmanTitle  = "Program Manager"
	iconViewClass = "SHELLDLL_DefView"
)

// ErrNotFound means the icon layer could not be resolved on this call. It is
// transient: the shell may be restarting. Callers retry on the next call and
// never cache it as a hard failure.
var ErrNotFound = errors.New("shell: desktop icon layer not found")

// Shell is a resolved icon layer.
type Shell struct {
	IconView  win32.Handle
	Container win32.Handle
}

// Locate resolves the current icon-view/container pair. The result must not
// be cached long-term: the container can move across shell restarts, so this
// is re-run on every attach and every consistency sweep.
func Locate(api win32.API) (Shell, error) {
	progman, err := api.FindWindow(progmanClass, progmanTitle)
	if err != nil {
		return Shell{}, err
	}
	if progman != win32.None {
		iconView, err := api.FindChild(progman, iconViewClass)
		if err != nil {
			return Shell{}, err
		}
		if iconView != win32.None {
			return Shell{IconView: iconView, Container: progman}, nil
		}
	}

	// Fallback: scan top-level windows for one holding the icon view,
	// stopping at the first hit.
	var found Shell
	err = api.EnumTopLevel(func(h win32.Handle) bool {
		iconView, err := api.FindChild(h, iconViewClass)
		if err != nil || iconView == win32.None {
			return true // keep enumerating
		}
		found = Shell{IconView: iconView, Container: h}
		return false
	})
	if err != nil {
		return Shell{}, err
	}
	if found.IconView == win32.None {
		return Shell{}, ErrNotFound
	}
	return found, nil
}
