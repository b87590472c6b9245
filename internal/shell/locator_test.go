package shell

import (
	"errors"
	"testing"

	"github.com/deskpin/deskpin/internal/win32"
)

// fakeAPI models just enough of the window tree for the locator: an optional
// Progman root and a list of top-level windows, each with an optional direct
// icon-view child.
type fakeAPI struct {
	progman       win32.Handle
	children      map[win32.Handle]win32.Handle // parent -> SHELLDLL_DefView child
	topLevel      []win32.Handle
	childQueries  []win32.Handle
	enumDelivered int
}

func (f *fakeAPI) FindWindow(className, windowName string) (win32.Handle, error) {
	if className == "Progman" {
		return f.progman, nil
	}
	return win32.None, nil
}

func (f *fakeAPI) FindChild(parent win32.Handle, className string) (win32.Handle, error) {
	f.childQueries = append(f.childQueries, parent)
	return f.children[parent], nil
}

func (f *fakeAPI) EnumTopLevel(fn func(win32.Handle) bool) error {
	for _, h := range f.topLevel {
		f.enumDelivered++
		if !fn(h) {
			return nil
		}
	}
	return nil
}

func (f *fakeAPI) WindowRect(h win32.Handle) (win32.Rect, error) { return win32.Rect{}, nil }
func (f *fakeAPI) SetParent(child, parent win32.Handle) error    { return nil }
func (f *fakeAPI) Style(h win32.Handle) (uint32, error)          { return 0, nil }
func (f *fakeAPI) SetStyle(h win32.Handle, style uint32) error   { return nil }
func (f *fakeAPI) SetWindowPos(h, insertAfter win32.Handle, x, y, w, hgt int32, flags uint32) error {
	return nil
}
func (f *fakeAPI) WindowAbove(h win32.Handle) (win32.Handle, error) { return win32.None, nil }
func (f *fakeAPI) IsWindow(h win32.Handle) bool                     { return true }

func TestLocatePrimaryPath(t *testing.T) {
	api := &fakeAPI{
		progman:  0x100,
		children: map[win32.Handle]win32.Handle{0x100: 0x101},
	}

	sh, err := Locate(api)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sh.Container != 0x100 || sh.IconView != 0x101 {
		t.Fatalf("expected container 0x100 / icon view 0x101, got %#x / %#x",
			uintptr(sh.Container), uintptr(sh.IconView))
	}
	if api.enumDelivered != 0 {
		t.Fatal("primary path should not enumerate top-level windows")
	}
}

func TestLocateFallbackShortCircuits(t *testing.T) {
	// Progman exists but no longer holds the icon view (post shell restart);
	// the icon view lives under the second of four top-level windows.
	api := &fakeAPI{
		progman:  0x100,
		children: map[win32.Handle]win32.Handle{0x300: 0x301},
		topLevel: []win32.Handle{0x200, 0x300, 0x400, 0x500},
	}

	sh, err := Locate(api)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sh.Container != 0x300 || sh.IconView != 0x301 {
		t.Fatalf("expected container 0x300 / icon view 0x301, got %#x / %#x",
			uintptr(sh.Container), uintptr(sh.IconView))
	}
	if api.enumDelivered != 2 {
		t.Fatalf("enumeration should stop at the first hit, saw %d windows", api.enumDelivered)
	}
}

func TestLocateFallbackWhenProgmanMissing(t *testing.T) {
	api := &fakeAPI{
		children: map[win32.Handle]win32.Handle{0x200: 0x201},
		topLevel: []win32.Handle{0x200},
	}

	sh, err := Locate(api)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sh.Container != 0x200 || sh.IconView != 0x201 {
		t.Fatalf("unexpected shell %+v", sh)
	}
}

func TestLocateNotFound(t *testing.T) {
	api := &fakeAPI{
		topLevel: []win32.Handle{0x200, 0x300},
	}

	_, err := Locate(api)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
