// Package win32 is the foreign-call layer for the desktop-shell integration.
// It exposes an opaque window handle type and a narrow API surface over the
// user32 calls the rest of the subsystem needs. The real bindings are loaded
// lazily on Windows; every other platform reports permanent unavailability.
package win32

import "errors"

// Handle identifies an OS window. It is opaque: the subsystem only compares
// handles and passes them back to the binding layer, never does arithmetic on
// them. The OS owns the lifetime; a handle may go stale at any time.
type Handle uintptr

// None is the zero handle, meaning "no window" (or "the desktop" when used as
// a reparent target).
const None Handle = 0

// Rect is a window rectangle in the coordinate space of whatever call
// produced it. GetWindowRect always reports screen coordinates, regardless of
// the window's parent.
type Rect struct {
	Left, Top, Right, Bottom int32
}

func (r Rect) Width() int32  { return r.Right - r.Left }
func (r Rect) Height() int32 { return r.Bottom - r.Top }

// Window style and positioning constants, named as in the Win32 headers.
const (
	GWL_STYLE = -16

	WS_VISIBLE = 0x10000000
	WS_POPUP   = 0x80000000

	SWP_NOSIZE     = 0x0001
	SWP_NOMOVE     = 0x0002
	SWP_NOACTIVATE = 0x0010
	SWP_SHOWWINDOW = 0x0040

	GW_HWNDPREV = 3
)

// HWND_TOP places a window at the top of its sibling stack in SetWindowPos.
const HWND_TOP Handle = 0

// ErrUnavailable is the permanent probe failure: the bindings (or one of the
// symbols this subsystem needs) cannot be loaded on this machine. It is never
// retried.
var ErrUnavailable = errors.New("win32: desktop shell integration unavailable on this platform")

// API is the seam between the subsystem and the OS windowing calls. The
// production implementation is returned by Load on Windows; tests substitute
// a scripted fake.
type API interface {
	// FindWindow resolves a top-level window by class name (and optional
	// title). Returns None with a nil error when no such window exists.
	FindWindow(className, windowName string) (Handle, error)
	// FindChild searches the direct children of parent for the given class.
	// Returns None with a nil error when absent.
	FindChild(parent Handle, className string) (Handle, error)
	// EnumTopLevel calls fn for each top-level window until fn returns false.
	EnumTopLevel(fn func(Handle) bool) error
	// WindowRect reports the window's rectangle in screen coordinates.
	WindowRect(h Handle) (Rect, error)
	// SetParent reparents child under parent; None detaches to the desktop.
	SetParent(child, parent Handle) error
	// Style reads the GWL_STYLE bits.
	Style(h Handle) (uint32, error)
	// SetStyle replaces the GWL_STYLE bits.
	SetStyle(h Handle, style uint32) error
	// SetWindowPos repositions h relative to its parent's client area and
	// places it after insertAfter in the sibling stack.
	SetWindowPos(h, insertAfter Handle, x, y, width, height int32, flags uint32) error
	// WindowAbove returns the sibling immediately above h in the Z-order,
	// or None at the top of the stack.
	WindowAbove(h Handle) (Handle, error)
	// IsWindow reports whether h still refers to a live window.
	IsWindow(h Handle) bool
}
