package reparent

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/deskpin/deskpin/internal/win32"
)

const (
	progmanHandle  = win32.Handle(0x100)
	iconViewHandle = win32.Handle(0x101)
	windowHandle   = win32.Handle(0x200)
)

type posCall struct {
	h, insertAfter  win32.Handle
	x, y, w, height int32
	flags           uint32
}

type fakeAPI struct {
	rects   map[win32.Handle]win32.Rect
	styles  map[win32.Handle]uint32
	parents map[win32.Handle]win32.Handle
	posLog  []posCall

	failContainerRect bool
	failSetWindowPos  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		rects: map[win32.Handle]win32.Rect{
			// Container spans the whole virtual screen starting off-origin,
			// so the coordinate translation is observable.
			progmanHandle: {Left: -1920, Top: -80, Right: 1920, Bottom: 1080},
			windowHandle:  {Left: 40, Top: 60, Right: 440, Bottom: 360},
		},
		styles:  map[win32.Handle]uint32{windowHandle: win32.WS_POPUP},
		parents: map[win32.Handle]win32.Handle{},
	}
}

func (f *fakeAPI) FindWindow(className, windowName string) (win32.Handle, error) {
	return progmanHandle, nil
}

func (f *fakeAPI) FindChild(parent win32.Handle, className string) (win32.Handle, error) {
	if parent == progmanHandle {
		return iconViewHandle, nil
	}
	return win32.None, nil
}

func (f *fakeAPI) EnumTopLevel(fn func(win32.Handle) bool) error { return nil }

func (f *fakeAPI) WindowRect(h win32.Handle) (win32.Rect, error) {
	if h == progmanHandle && f.failContainerRect {
		return win32.Rect{}, fmt.Errorf("container rect unreadable")
	}
	r, ok := f.rects[h]
	if !ok {
		return win32.Rect{}, fmt.Errorf("no such window %#x", uintptr(h))
	}
	return r, nil
}

func (f *fakeAPI) SetParent(child, parent win32.Handle) error {
	f.parents[child] = parent
	return nil
}

func (f *fakeAPI) Style(h win32.Handle) (uint32, error) { return f.styles[h], nil }

func (f *fakeAPI) SetStyle(h win32.Handle, style uint32) error {
	f.styles[h] = style
	return nil
}

func (f *fakeAPI) SetWindowPos(h, insertAfter win32.Handle, x, y, w, hgt int32, flags uint32) error {
	if f.failSetWindowPos {
		return fmt.Errorf("SetWindowPos failed")
	}
	f.posLog = append(f.posLog, posCall{h, insertAfter, x, y, w, hgt, flags})
	return nil
}

func (f *fakeAPI) WindowAbove(h win32.Handle) (win32.Handle, error) { return win32.None, nil }
func (f *fakeAPI) IsWindow(h win32.Handle) bool                     { return true }

func newTestEngine(api win32.API) *Engine {
	return NewEngine(api, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAttachTranslatesScreenPositionIntoContainerSpace(t *testing.T) {
	api := newFakeAPI()
	e := newTestEngine(api)

	if err := e.Attach("w", windowHandle); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	if api.parents[windowHandle] != progmanHandle {
		t.Fatalf("window not parented into container, parent=%#x", uintptr(api.parents[windowHandle]))
	}
	if len(api.posLog) != 1 {
		t.Fatalf("expected one reposition, got %d", len(api.posLog))
	}
	pos := api.posLog[0]
	// Screen (40,60) minus container origin (-1920,-80) = client (1960,140).
	if pos.x != 1960 || pos.y != 140 {
		t.Fatalf("expected client position (1960,140), got (%d,%d)", pos.x, pos.y)
	}
	if pos.w != 400 || pos.height != 300 {
		t.Fatalf("size must be preserved, got %dx%d", pos.w, pos.height)
	}
	if pos.insertAfter != win32.HWND_TOP {
		t.Fatal("attached window must land at the top of the child stack")
	}
	if pos.flags&win32.SWP_NOACTIVATE == 0 {
		t.Fatal("attach must not steal focus")
	}
	if !e.Attached("w") {
		t.Fatal("container cache entry missing after attach")
	}
}

func TestAttachSetsVisibilityWithoutClearingPopup(t *testing.T) {
	api := newFakeAPI()
	e := newTestEngine(api)

	if err := e.Attach("w", windowHandle); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	style := api.styles[windowHandle]
	if style&win32.WS_VISIBLE == 0 {
		t.Fatal("visibility bit not set")
	}
	if style&win32.WS_POPUP == 0 {
		t.Fatal("popup bit must be preserved")
	}
}

func TestAttachAlreadyVisibleLeavesStyleAlone(t *testing.T) {
	api := newFakeAPI()
	api.styles[windowHandle] = win32.WS_POPUP | win32.WS_VISIBLE
	e := newTestEngine(api)

	if err := e.Attach("w", windowHandle); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if api.styles[windowHandle] != win32.WS_POPUP|win32.WS_VISIBLE {
		t.Fatalf("style rewritten needlessly: %#x", api.styles[windowHandle])
	}
}

func TestAttachRollsBackOnFailureAfterReparent(t *testing.T) {
	api := newFakeAPI()
	api.failContainerRect = true
	e := newTestEngine(api)

	if err := e.Attach("w", windowHandle); err == nil {
		t.Fatal("expected attach to fail")
	}

	// Best-effort detach: the window must not be left inside the container.
	if api.parents[windowHandle] != win32.None {
		t.Fatalf("window left reparented after failed attach, parent=%#x",
			uintptr(api.parents[windowHandle]))
	}
	if e.Attached("w") {
		t.Fatal("cache entry left behind by failed attach")
	}
}

func TestDetachRestoresScreenRectangle(t *testing.T) {
	api := newFakeAPI()
	e := newTestEngine(api)
	if err := e.Attach("w", windowHandle); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	api.posLog = nil

	if err := e.Detach("w", windowHandle); err != nil {
		t.Fatalf("detach failed: %v", err)
	}

	if api.parents[windowHandle] != win32.None {
		t.Fatal("window not returned to the desktop")
	}
	if len(api.posLog) != 1 {
		t.Fatalf("expected one reposition, got %d", len(api.posLog))
	}
	pos := api.posLog[0]
	// Rect queries are screen-relative regardless of parent, so the saved
	// rectangle is reapplied verbatim.
	if pos.x != 40 || pos.y != 60 || pos.w != 400 || pos.height != 300 {
		t.Fatalf("screen rectangle not preserved: (%d,%d %dx%d)", pos.x, pos.y, pos.w, pos.height)
	}
	if pos.flags&win32.SWP_NOACTIVATE == 0 {
		t.Fatal("detach must not steal focus")
	}
	if e.Attached("w") {
		t.Fatal("cache entry should be removed on detach")
	}
}

func TestDetachDropsCacheEvenOnFailure(t *testing.T) {
	api := newFakeAPI()
	e := newTestEngine(api)
	if err := e.Attach("w", windowHandle); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	api.failSetWindowPos = true
	if err := e.Detach("w", windowHandle); err == nil {
		t.Fatal("expected detach to report the failed reposition")
	}
	if e.Attached("w") {
		t.Fatal("cache entry must not dangle after detach")
	}
}
