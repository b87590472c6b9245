//go:build windows

package win32

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procFindWindowW    = user32.NewProc("FindWindowW")
	procFindWindowExW  = user32.NewProc("FindWindowExW")
	procEnumWindows    = user32.NewProc("EnumWindows")
	procGetWindowRect  = user32.NewProc("GetWindowRect")
	procSetParent      = user32.NewProc("SetParent")
	procGetWindowLongW = user32.NewProc("GetWindowLongW")
	procSetWindowLongW = user32.NewProc("SetWindowLongW")
	procSetWindowPos   = user32.NewProc("SetWindowPos")
	procGetWindow      = user32.NewProc("GetWindow")
	procIsWindow       = user32.NewProc("IsWindow")
	procSetLastError   = kernel32.NewProc("SetLastError")
)

// GWL_STYLE as a runtime value: converting the negative constant to uintptr
// directly does not compile, and the sign extension is what user32 expects.
var gwlStyle = int32(GWL_STYLE)

var (
	loadOnce sync.Once
	loadErr  error
	loaded   API
)

// Load probes the user32 bindings once per process. A failure is permanent:
// it means the OS integration layer is absent, not transiently busy.
func Load() (API, error) {
	loadOnce.Do(func() {
		procs := []*windows.LazyProc{
			procFindWindowW, procFindWindowExW, procEnumWindows,
			procGetWindowRect, procSetParent, procGetWindowLongW,
			procSetWindowLongW, procSetWindowPos, procGetWindow,
			procIsWindow, procSetLastError,
		}
		for _, p := range procs {
			if err := p.Find(); err != nil {
				loadErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
				return
			}
		}
		loaded = &api{}
	})
	return loaded, loadErr
}

// api implements API over the lazily loaded user32 procs.
type api struct{}

func utf16Arg(s string) (uintptr, error) {
	if s == "" {
		return 0, nil
	}
	p, err := syscall.UTF16PtrFromString(s)
	if err != nil {
		return 0, err
	}
	return uintptr(unsafe.Pointer(p)), nil
}

func (*api) FindWindow(className, windowName string) (Handle, error) {
	cls, err := utf16Arg(className)
	if err != nil {
		return None, err
	}
	name, err := utf16Arg(windowName)
	if err != nil {
		return None, err
	}
	ret, _, _ := procFindWindowW.Call(cls, name)
	return Handle(ret), nil
}

func (*api) FindChild(parent Handle, className string) (Handle, error) {
	cls, err := utf16Arg(className)
	if err != nil {
		return None, err
	}
	ret, _, _ := procFindWindowExW.Call(uintptr(parent), 0, cls, 0)
	return Handle(ret), nil
}

// NewCallback slots are a finite process-wide resource that can never be
// released, so EnumWindows shares one callback and hands the current visitor
// over through a guarded package variable.
var (
	enumMu sync.Mutex
	enumFn func(Handle) bool
)

var enumCallback = syscall.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
	if enumFn(Handle(hwnd)) {
		return 1 // continue
	}
	return 0 // stop enumeration
})

func (*api) EnumTopLevel(fn func(Handle) bool) error {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumFn = fn
	defer func() { enumFn = nil }()
	// EnumWindows reports failure when the callback stops it early, so the
	// return value is not a usable error signal here.
	procEnumWindows.Call(enumCallback, 0)
	return nil
}

func (*api) WindowRect(h Handle) (Rect, error) {
	var r Rect
	ret, _, err := procGetWindowRect.Call(uintptr(h), uintptr(unsafe.Pointer(&r)))
	if ret == 0 {
		return Rect{}, fmt.Errorf("GetWindowRect: %w", errnoOr(err))
	}
	return r, nil
}

func (*api) SetParent(child, parent Handle) error {
	// SetParent returns the previous parent; NULL is both "no previous
	// parent" and "failed", so clear the thread error state first.
	procSetLastError.Call(0)
	ret, _, err := procSetParent.Call(uintptr(child), uintptr(parent))
	if ret == 0 {
		if e, ok := err.(syscall.Errno); ok && e != 0 {
			return fmt.Errorf("SetParent: %w", e)
		}
	}
	return nil
}

func (*api) Style(h Handle) (uint32, error) {
	// A zero return is both "no style bits" and "failed".
	procSetLastError.Call(0)
	ret, _, err := procGetWindowLongW.Call(uintptr(h), uintptr(gwlStyle))
	if ret == 0 {
		if e, ok := err.(syscall.Errno); ok && e != 0 {
			return 0, fmt.Errorf("GetWindowLong: %w", e)
		}
	}
	return uint32(ret), nil
}

func (*api) SetStyle(h Handle, style uint32) error {
	procSetLastError.Call(0)
	ret, _, err := procSetWindowLongW.Call(uintptr(h), uintptr(gwlStyle), uintptr(style))
	if ret == 0 {
		if e, ok := err.(syscall.Errno); ok && e != 0 {
			return fmt.Errorf("SetWindowLong: %w", e)
		}
	}
	return nil
}

func (*api) SetWindowPos(h, insertAfter Handle, x, y, width, height int32, flags uint32) error {
	ret, _, err := procSetWindowPos.Call(
		uintptr(h),
		uintptr(insertAfter),
		uintptr(x), uintptr(y),
		uintptr(width), uintptr(height),
		uintptr(flags),
	)
	if ret == 0 {
		return fmt.Errorf("SetWindowPos: %w", errnoOr(err))
	}
	return nil
}

func (*api) WindowAbove(h Handle) (Handle, error) {
	ret, _, _ := procGetWindow.Call(uintptr(h), uintptr(GW_HWNDPREV))
	return Handle(ret), nil
}

func (*api) IsWindow(h Handle) bool {
	ret, _, _ := procIsWindow.Call(uintptr(h))
	return ret != 0
}

// errnoOr normalizes the always-non-nil error from LazyProc.Call into
// something wrappable.
func errnoOr(err error) error {
	if e, ok := err.(syscall.Errno); ok && e != 0 {
		return e
	}
	return syscall.EINVAL
}
