package vista

import (
	"testing"
	"time"
)

type gestureCall struct {
	kind string
	m    *Marker
	x, y float64
	mods KeyModifiers
}

// fakeHandler places one marker at a fixed screen rectangle.
type fakeHandler struct {
	marker *Marker
	area   Rect
	calls  []gestureCall
}

func (h *fakeHandler) HitTest(x, y float64) *Marker {
	if h.marker != nil && h.area.Contains(x, y) {
		return h.marker
	}
	return nil
}

func (h *fakeHandler) MarkerClick(m *Marker, mods KeyModifiers) {
	h.calls = append(h.calls, gestureCall{kind: "click", m: m, mods: mods})
}

func (h *fakeHandler) MarkerDrag(m *Marker, x, y float64) {
	h.calls = append(h.calls, gestureCall{kind: "drag", m: m, x: x, y: y})
}

func (h *fakeHandler) MarkerDrop(m *Marker, x, y float64) {
	h.calls = append(h.calls, gestureCall{kind: "drop", m: m, x: x, y: y})
}

func (h *fakeHandler) SkyClick(x, y float64, mods KeyModifiers) {
	h.calls = append(h.calls, gestureCall{kind: "sky", x: x, y: y, mods: mods})
}

func (h *fakeHandler) Hover(m *Marker, x, y float64) {
	h.calls = append(h.calls, gestureCall{kind: "hover", m: m, x: x, y: y})
}

func (h *fakeHandler) kinds() []string {
	out := make([]string, len(h.calls))
	for i, c := range h.calls {
		out[i] = c.kind
	}
	return out
}

func newTestGesture(modal *bool) (*Gesture, *fakeHandler, *Camera) {
	cam := testCamera()
	h := &fakeHandler{
		marker: &Marker{ID: 1, Visible: true},
		area:   Rect{X: 100, Y: 100, Width: 50, Height: 50},
	}
	var open func() bool
	if modal != nil {
		open = func() bool { return *modal }
	}
	return NewGesture(cam, h, open), h, cam
}

var t0 = time.Unix(1_700_000_000, 0)

func at(id int, x, y float64, d time.Duration) PointerEvent {
	return PointerEvent{ID: id, X: x, Y: y, Time: t0.Add(d)}
}

func equalKinds(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGestureStateNames(t *testing.T) {
	names := map[GestureState]string{
		GestureIdle:                "idle",
		GesturePointerDownOnSprite: "pointer_down_on_sprite",
		GesturePanning:             "panning",
		GestureDraggingSprite:      "dragging_sprite",
	}
	for s, want := range names {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}

func TestGestureSkyPress(t *testing.T) {
	g, _, cam := newTestGesture(nil)
	g.PointerDown(at(0, 400, 400, 0))
	if g.State() != GesturePanning || !cam.Panning() {
		t.Errorf("state = %v, panning %v", g.State(), cam.Panning())
	}
}

func TestGestureLongPressFromTick(t *testing.T) {
	g, h, _ := newTestGesture(nil)
	g.PointerDown(at(0, 120, 120, 0))

	g.Tick(t0.Add(DefaultLongPress - time.Nanosecond))
	if g.State() != GesturePointerDownOnSprite {
		t.Fatalf("promoted early: %v", g.State())
	}
	g.Tick(t0.Add(DefaultLongPress))
	if g.State() != GestureDraggingSprite || !h.marker.Dragging {
		t.Fatalf("state = %v, dragging %v", g.State(), h.marker.Dragging)
	}

	g.PointerMove(at(0, 300, 200, 400*time.Millisecond))
	g.PointerUp(at(0, 300, 200, 450*time.Millisecond))

	if want := []string{"drag", "drop"}; !equalKinds(h.kinds(), want) {
		t.Errorf("calls = %v, want %v", h.kinds(), want)
	}
	if h.calls[1].x != 300 || h.calls[1].y != 200 {
		t.Errorf("drop at (%f, %f)", h.calls[1].x, h.calls[1].y)
	}
	if h.marker.Dragging || g.State() != GestureIdle {
		t.Error("release should end the drag")
	}
}

func TestGestureLongPressOnMove(t *testing.T) {
	g, h, _ := newTestGesture(nil)
	g.PointerDown(at(0, 120, 120, 0))
	// No Tick in between: the move itself carries a time past the deadline.
	g.PointerMove(at(0, 130, 120, 350*time.Millisecond))
	if g.State() != GestureDraggingSprite {
		t.Fatalf("state = %v", g.State())
	}
	if want := []string{"drag"}; !equalKinds(h.kinds(), want) {
		t.Errorf("calls = %v", h.kinds())
	}
}

func TestGestureMoveBeforeLongPressDoesNotDrag(t *testing.T) {
	g, h, cam := newTestGesture(nil)
	g.PointerDown(at(0, 120, 120, 0))
	g.PointerMove(at(0, 140, 120, 100*time.Millisecond))
	g.PointerUp(at(0, 140, 120, 150*time.Millisecond))

	if want := []string{"click"}; !equalKinds(h.kinds(), want) {
		t.Errorf("calls = %v, want a click", h.kinds())
	}
	if cam.Lon() != 0 {
		t.Error("pressing a marker must not pan")
	}
}

func TestGestureClickModifiersFromPress(t *testing.T) {
	g, h, _ := newTestGesture(nil)
	ev := at(0, 120, 120, 0)
	ev.Modifiers = ModCtrl
	g.PointerDown(ev)
	g.PointerUp(at(0, 120, 120, 50*time.Millisecond))
	if len(h.calls) != 1 || !h.calls[0].mods.Primary() {
		t.Errorf("calls = %+v", h.calls)
	}
}

func TestGestureDeadZone(t *testing.T) {
	tests := []struct {
		name   string
		dx     float64
		wantSk bool
	}{
		{"still", 0, true},
		{"jitter", 3, true},
		{"edge", defaultDragDeadZone, true},
		{"pan", 40, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, h, cam := newTestGesture(nil)
			g.PointerDown(at(0, 400, 400, 0))
			if tt.dx != 0 {
				g.PointerMove(at(0, 400+tt.dx, 400, 16*time.Millisecond))
			}
			g.PointerUp(at(0, 400+tt.dx, 400, 32*time.Millisecond))

			gotSky := equalKinds(h.kinds(), []string{"sky"})
			if gotSky != tt.wantSk {
				t.Errorf("calls = %v, want sky click %v", h.kinds(), tt.wantSk)
			}
			if tt.wantSk && cam.Momentum() != (Vec2{}) {
				t.Error("a sky click should not leave momentum")
			}
			if !tt.wantSk && cam.Momentum() == (Vec2{}) {
				t.Error("a pan should leave momentum")
			}
		})
	}
}

func TestGesturePanTravelIsMaximum(t *testing.T) {
	g, h, _ := newTestGesture(nil)
	g.PointerDown(at(0, 400, 400, 0))
	g.PointerMove(at(0, 440, 400, 16*time.Millisecond))
	g.PointerMove(at(0, 400, 400, 32*time.Millisecond))
	g.PointerUp(at(0, 400, 400, 48*time.Millisecond))
	if len(h.calls) != 0 {
		t.Errorf("returning to the start is still a pan, got %v", h.kinds())
	}
}

func TestGestureHover(t *testing.T) {
	modal := false
	g, h, _ := newTestGesture(&modal)

	g.PointerMove(at(0, 120, 120, 0))
	g.PointerMove(at(0, 400, 400, 0))
	modal = true
	g.PointerMove(at(0, 120, 120, 0))

	if len(h.calls) != 3 {
		t.Fatalf("calls = %v", h.kinds())
	}
	if h.calls[0].m != h.marker || h.calls[1].m != nil {
		t.Error("hover should report the marker under the pointer")
	}
	if h.calls[2].m != nil {
		t.Error("hover behind a modal should report nothing")
	}
}

func TestGestureTouchDoesNotHover(t *testing.T) {
	g, h, _ := newTestGesture(nil)
	g.PointerMove(at(3, 120, 120, 0))
	if len(h.calls) != 0 {
		t.Errorf("touch move without contact hovered: %v", h.kinds())
	}
}

func TestGestureModalBlocksPress(t *testing.T) {
	modal := true
	g, h, cam := newTestGesture(&modal)
	g.PointerDown(at(0, 120, 120, 0))
	g.Tick(t0.Add(time.Second))
	g.PointerUp(at(0, 120, 120, time.Second))
	g.PointerDown(at(0, 400, 400, 0))
	g.PointerMove(at(0, 500, 400, 0))
	g.Wheel(2)

	if g.State() != GestureIdle || len(h.calls) != 0 {
		t.Errorf("state %v, calls %v", g.State(), h.kinds())
	}
	if cam.Lon() != 0 || cam.FOV() != DefaultFOV {
		t.Error("camera moved behind a modal")
	}
}

func TestGestureWheel(t *testing.T) {
	g, _, cam := newTestGesture(nil)
	g.Wheel(1)
	if cam.FOV() != DefaultFOV || !cam.Animating() {
		t.Fatalf("wheel should start a zoom tween, FOV = %f", cam.FOV())
	}
	cam.update(DefaultWheelDuration / 2)
	if fov := cam.FOV(); fov >= DefaultFOV || fov <= DefaultFOV-defaultWheelStep {
		t.Errorf("halfway FOV = %f, want between %f and %f", fov, DefaultFOV-defaultWheelStep, DefaultFOV)
	}

	// A notch mid-tween adds to where the zoom is heading.
	g.Wheel(-2)
	if cam.ZoomTarget() != DefaultFOV+defaultWheelStep {
		t.Errorf("target = %f, want %f", cam.ZoomTarget(), DefaultFOV+defaultWheelStep)
	}
	settle(t, cam)
	if !approxEqual(cam.FOV(), DefaultFOV+defaultWheelStep, 1e-3) {
		t.Errorf("FOV = %f", cam.FOV())
	}
}

func TestGestureWheelImmediate(t *testing.T) {
	g, _, cam := newTestGesture(nil)
	g.WheelDuration = 0
	g.Wheel(1)
	if cam.FOV() != DefaultFOV-defaultWheelStep || cam.Animating() {
		t.Errorf("FOV = %f, animating %v", cam.FOV(), cam.Animating())
	}
}

func TestGesturePinchStopsWheelZoom(t *testing.T) {
	g, _, cam := newTestGesture(nil)
	g.PointerDown(at(1, 400, 400, 0))
	g.Wheel(1)
	g.PointerDown(at(2, 500, 400, 10*time.Millisecond))
	g.PointerMove(at(2, 600, 400, 20*time.Millisecond))
	cam.update(1)
	if !approxEqual(cam.FOV(), DefaultFOV/2, 1e-9) {
		t.Errorf("FOV = %f, the wheel tween overrode the pinch", cam.FOV())
	}
}

func TestGesturePinch(t *testing.T) {
	g, h, cam := newTestGesture(nil)
	g.PointerDown(at(1, 400, 400, 0))
	if g.State() != GesturePanning {
		t.Fatalf("first finger: %v", g.State())
	}
	g.PointerDown(at(2, 500, 400, 10*time.Millisecond))
	if !g.Pinching() || g.State() != GestureIdle || cam.Panning() {
		t.Fatalf("second finger should switch to pinch: pinching %v, state %v", g.Pinching(), g.State())
	}

	g.PointerMove(at(2, 600, 400, 20*time.Millisecond))
	if !approxEqual(cam.FOV(), DefaultFOV/2, 1e-9) {
		t.Errorf("spreading to twice the distance: FOV = %f, want %f", cam.FOV(), DefaultFOV/2)
	}
	if cam.Lon() != 0 {
		t.Error("pinching panned the view")
	}

	g.PointerUp(at(1, 400, 400, 30*time.Millisecond))
	if g.Pinching() {
		t.Error("lifting a finger should end the pinch")
	}
	if len(h.calls) != 0 {
		t.Errorf("pinch produced calls %v", h.kinds())
	}
}

func TestGestureSecondFingerDuringDragIgnored(t *testing.T) {
	g, h, _ := newTestGesture(nil)
	g.PointerDown(at(1, 120, 120, 0))
	g.Tick(t0.Add(DefaultLongPress))
	g.PointerDown(at(2, 300, 300, 400*time.Millisecond))
	if g.Pinching() || g.State() != GestureDraggingSprite {
		t.Errorf("pinching %v, state %v", g.Pinching(), g.State())
	}
	g.PointerUp(at(1, 150, 150, 500*time.Millisecond))
	if want := []string{"drop"}; !equalKinds(h.kinds(), want) {
		t.Errorf("calls = %v", h.kinds())
	}
}

func TestGestureCancel(t *testing.T) {
	g, h, cam := newTestGesture(nil)
	g.PointerDown(at(0, 120, 120, 0))
	g.Tick(t0.Add(time.Second))
	g.Cancel()
	if g.State() != GestureIdle || g.Marker() != nil || h.marker.Dragging {
		t.Error("cancel should drop the held marker")
	}
	g.PointerUp(at(0, 120, 120, time.Second))
	if len(h.calls) != 0 {
		t.Errorf("release after cancel produced %v", h.kinds())
	}

	g.PointerDown(at(0, 400, 400, 0))
	g.PointerMove(at(0, 450, 400, 0))
	g.Cancel()
	if cam.Panning() || cam.Momentum() != (Vec2{}) {
		t.Error("cancel should stop the pan without momentum")
	}
}

func TestGestureCustomLongPress(t *testing.T) {
	g, _, _ := newTestGesture(nil)
	g.LongPress = 50 * time.Millisecond
	g.PointerDown(at(0, 120, 120, 0))
	g.Tick(t0.Add(60 * time.Millisecond))
	if g.State() != GestureDraggingSprite {
		t.Errorf("state = %v", g.State())
	}
}
