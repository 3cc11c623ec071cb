package vista

import (
	"testing"

	"github.com/phanxgames/vista/protocol"
)

func TestLayoutResizesViewport(t *testing.T) {
	h := newTestEditor(t)
	w, ht := h.Layout(800, 600)
	if w != 800 || ht != 600 {
		t.Errorf("Layout = %d x %d", w, ht)
	}
	vp := h.Camera().Viewport
	if vp.Width != 800 || vp.Height != 600 {
		t.Errorf("viewport = %+v", vp)
	}
	// The door straight ahead follows the new center.
	if m := h.HitTest(400, 300); m == nil || m.ID != doorID {
		t.Errorf("center hit after resize = %+v", m)
	}
}

func TestFloorplanRect(t *testing.T) {
	h := newTestEditor(t)
	if r := h.floorplanRect(); r != (Rect{}) {
		t.Errorf("no floorplan: rect = %+v", r)
	}
	h.Handle(protocol.FloorplanAdded{FloorplanID: 4, FilePath: "floorplan/plan.png"})
	h.ToggleFloorplan()
	r := h.floorplanRect()
	if r.Width != 1280*0.25 || r.X+r.Width != 1280-16 || r.Y+r.Height != 720-16 {
		t.Errorf("rect = %+v, want bottom-right quarter width", r)
	}
	h.ToggleFloorplan()
	if h.FloorplanShown() {
		t.Error("toggle should hide the overlay")
	}
}

func TestColorToRGBA(t *testing.T) {
	c := Color{1, 0.5, 0, 0.5}.toRGBA()
	if c.A != 128 || c.R != 128 || c.G != 64 || c.B != 0 {
		t.Errorf("premultiplied = %+v", c)
	}
}
