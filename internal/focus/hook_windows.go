//go:build windows

package focus

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/deskpin/deskpin/internal/win32"
)

const (
	eventSystemForeground = 0x0003
	eventObjectDestroy    = 0x8001
	objidWindow           = 0

	wineventOutOfContext = 0x0000

	wmQuit = 0x0012
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procSetWinEventHook   = user32.NewProc("SetWinEventHook")
	procUnhookWinEvent    = user32.NewProc("UnhookWinEvent")
	procGetMessageW       = user32.NewProc("GetMessageW")
	procTranslateMessage  = user32.NewProc("TranslateMessage")
	procDispatchMessageW  = user32.NewProc("DispatchMessageW")
	procPostThreadMessage = user32.NewProc("PostThreadMessageW")
)

type msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	PtX     int32
	PtY     int32
}

// One process-wide hook thread serves every Monitor. WinEvent hooks deliver
// on the thread that installed them and need that thread to pump messages,
// so monitors share a single locked-OS-thread loop and a registry keyed by
// target handle.
var (
	hookMu     sync.Mutex
	registry   = map[win32.Handle]*Monitor{}
	loopThread uint32
)

// eventCallback is created once: NewCallback slots are a process-wide finite
// resource and can never be released.
var eventCallback = windows.NewCallback(func(hook, event, hwnd, idObject, idChild, thread, tms uintptr) uintptr {
	h := win32.Handle(hwnd)
	hookMu.Lock()
	m := registry[h]
	hookMu.Unlock()
	if m == nil {
		return 0
	}
	switch uint32(event) {
	case eventSystemForeground:
		m.dispatchFocus()
	case eventObjectDestroy:
		if int32(idObject) == objidWindow && idChild == 0 {
			m.dispatchClose()
			m.Stop()
		}
	}
	return 0
})

// Start begins delivering focus and close events for the monitor's window.
// The first monitor spins up the shared hook thread.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	hookMu.Lock()
	defer hookMu.Unlock()
	registry[m.target] = m
	if loopThread != 0 {
		return nil
	}

	// hookLoop must not touch hookMu before signalling readiness: this
	// goroutine holds it while waiting.
	ready := make(chan loopResult, 1)
	go hookLoop(ready)
	res := <-ready
	if res.err != nil {
		delete(registry, m.target)
		m.mu.Lock()
		m.started = false
		m.mu.Unlock()
		return res.err
	}
	loopThread = res.threadID
	return nil
}

// Stop withdraws the monitor. The shared hook thread exits when the last
// monitor is gone.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.mu.Unlock()

	hookMu.Lock()
	delete(registry, m.target)
	if len(registry) == 0 && loopThread != 0 {
		procPostThreadMessage.Call(uintptr(loopThread), wmQuit, 0, 0)
		loopThread = 0
	}
	hookMu.Unlock()
}

type loopResult struct {
	threadID uint32
	err      error
}

func hookLoop(ready chan<- loopResult) {
	// Hooks deliver to the installing thread only.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	fgHook, _, _ := procSetWinEventHook.Call(
		eventSystemForeground, eventSystemForeground,
		0, eventCallback, 0, 0, wineventOutOfContext)
	if fgHook == 0 {
		ready <- loopResult{err: fmt.Errorf("focus: SetWinEventHook(foreground) failed")}
		return
	}
	destroyHook, _, _ := procSetWinEventHook.Call(
		eventObjectDestroy, eventObjectDestroy,
		0, eventCallback, 0, 0, wineventOutOfContext)
	if destroyHook == 0 {
		procUnhookWinEvent.Call(fgHook)
		ready <- loopResult{err: fmt.Errorf("focus: SetWinEventHook(destroy) failed")}
		return
	}

	self := windows.GetCurrentThreadId()
	ready <- loopResult{threadID: self}

	var message msg
	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&message)), 0, 0, 0)
		if int32(ret) <= 0 {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&message)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&message)))
	}

	procUnhookWinEvent.Call(fgHook)
	procUnhookWinEvent.Call(destroyHook)

	hookMu.Lock()
	if loopThread == self {
		loopThread = 0
	}
	hookMu.Unlock()
}
