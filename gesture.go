package vista

import (
	"math"
	"time"

	"github.com/tanema/gween/ease"
)

const (
	maxPointers = 10 // pointer 0 = mouse, 1-9 = touch

	// DefaultLongPress is how long a pointer must stay down on a marker
	// before the interaction becomes a drag.
	DefaultLongPress    = 300 * time.Millisecond
	defaultDragDeadZone = 4.0 // pixels
	defaultWheelStep    = 5.0 // degrees of FOV per wheel notch

	// DefaultWheelDuration is how long, in seconds, a wheel zoom eases.
	DefaultWheelDuration float32 = 0.15
)

// GestureState is the state of the pointer interaction in progress.
type GestureState uint8

const (
	GestureIdle                GestureState = iota // no pointer down
	GesturePointerDownOnSprite                     // pressed on a marker, long-press pending
	GesturePanning                                 // pressed on empty sky, camera follows
	GestureDraggingSprite                          // long-press fired, marker follows pointer
)

func (s GestureState) String() string {
	switch s {
	case GestureIdle:
		return "idle"
	case GesturePointerDownOnSprite:
		return "pointer_down_on_sprite"
	case GesturePanning:
		return "panning"
	case GestureDraggingSprite:
		return "dragging_sprite"
	default:
		return "unknown"
	}
}

// PointerEvent is one discrete pointer sample in viewport pixels.
type PointerEvent struct {
	ID        int // 0 = mouse, 1-9 = touch
	X, Y      float64
	Button    MouseButton
	Modifiers KeyModifiers
	Time      time.Time
}

// GestureHandler receives the outcomes the gesture machine resolves.
type GestureHandler interface {
	// HitTest returns the marker under (x, y), or nil for empty sky.
	HitTest(x, y float64) *Marker
	// MarkerClick fires when a marker is released before the long-press.
	MarkerClick(m *Marker, mods KeyModifiers)
	// MarkerDrag fires on every pointer move while a marker is dragged.
	MarkerDrag(m *Marker, x, y float64)
	// MarkerDrop fires once when a dragged marker is released.
	MarkerDrop(m *Marker, x, y float64)
	// SkyClick fires when a press on empty sky is released without panning
	// beyond the dead zone.
	SkyClick(x, y float64, mods KeyModifiers)
	// Hover fires on pointer moves with no button held. m is nil when
	// nothing is under the pointer or a modal is open.
	Hover(m *Marker, x, y float64)
}

// pinchState tracks a two-finger zoom.
type pinchState struct {
	active      bool
	pointer0    int
	pointer1    int
	initialDist float64
	startFOV    float64
}

// Gesture disambiguates pan, click and drag from raw pointer events. It is
// driven entirely by PointerDown, PointerMove, PointerUp and Tick, so every
// transition can be exercised without a window or real timers.
type Gesture struct {
	// LongPress is the hold time that turns a marker press into a drag.
	LongPress time.Duration
	// DeadZone is the travel in pixels under which a sky press still counts
	// as a click.
	DeadZone float64
	// WheelStep is the FOV change in degrees per wheel notch.
	WheelStep float64
	// WheelDuration is the zoom tween length in seconds. Zero zooms at once.
	WheelDuration float32

	cam       *Camera
	h         GestureHandler
	modalOpen func() bool

	state    GestureState
	owner    int
	marker   *Marker
	deadline time.Time
	startX   float64
	startY   float64
	lastX    float64
	lastY    float64
	travel   float64
	mods     KeyModifiers // held at press time

	down  [maxPointers]bool
	pos   [maxPointers]Vec2
	pinch pinchState
}

// NewGesture returns an idle gesture machine steering cam. modalOpen may be
// nil.
func NewGesture(cam *Camera, h GestureHandler, modalOpen func() bool) *Gesture {
	if modalOpen == nil {
		modalOpen = func() bool { return false }
	}
	return &Gesture{
		LongPress:     DefaultLongPress,
		DeadZone:      defaultDragDeadZone,
		WheelStep:     defaultWheelStep,
		WheelDuration: DefaultWheelDuration,
		cam:           cam,
		h:             h,
		modalOpen:     modalOpen,
		owner:         -1,
	}
}

// State returns the current state.
func (g *Gesture) State() GestureState { return g.state }

// Marker returns the marker being pressed or dragged, or nil.
func (g *Gesture) Marker() *Marker { return g.marker }

// Pinching reports whether a two-finger zoom is active.
func (g *Gesture) Pinching() bool { return g.pinch.active }

// PointerDown handles a button or finger press.
func (g *Gesture) PointerDown(ev PointerEvent) {
	if ev.ID < 0 || ev.ID >= maxPointers {
		return
	}
	g.down[ev.ID] = true
	g.pos[ev.ID] = Vec2{ev.X, ev.Y}

	if g.modalOpen() {
		return
	}
	if ev.ID > 0 && g.owner > 0 && g.owner != ev.ID && g.state != GestureDraggingSprite {
		g.startPinch(g.owner, ev.ID)
		return
	}
	if g.state != GestureIdle || g.pinch.active {
		return
	}

	g.owner = ev.ID
	g.startX, g.startY = ev.X, ev.Y
	g.lastX, g.lastY = ev.X, ev.Y
	g.travel = 0
	g.mods = ev.Modifiers

	if m := g.h.HitTest(ev.X, ev.Y); m != nil {
		g.state = GesturePointerDownOnSprite
		g.marker = m
		g.deadline = ev.Time.Add(g.LongPress)
		return
	}
	g.state = GesturePanning
	g.cam.BeginPan()
}

// PointerMove handles movement with or without a button held.
func (g *Gesture) PointerMove(ev PointerEvent) {
	if ev.ID < 0 || ev.ID >= maxPointers {
		return
	}
	g.pos[ev.ID] = Vec2{ev.X, ev.Y}

	if !g.down[ev.ID] {
		if g.state == GestureIdle && ev.ID == 0 {
			if g.modalOpen() {
				g.h.Hover(nil, ev.X, ev.Y)
			} else {
				g.h.Hover(g.h.HitTest(ev.X, ev.Y), ev.X, ev.Y)
			}
		}
		return
	}
	if g.pinch.active {
		if ev.ID == g.pinch.pointer0 || ev.ID == g.pinch.pointer1 {
			g.updatePinch()
		}
		return
	}
	if ev.ID != g.owner {
		return
	}

	g.Tick(ev.Time)

	dx, dy := ev.X-g.lastX, ev.Y-g.lastY
	g.travel = math.Max(g.travel, math.Hypot(ev.X-g.startX, ev.Y-g.startY))
	switch g.state {
	case GesturePanning:
		g.cam.PanBy(dx, dy)
	case GestureDraggingSprite:
		g.h.MarkerDrag(g.marker, ev.X, ev.Y)
	}
	g.lastX, g.lastY = ev.X, ev.Y
}

// PointerUp handles a button or finger release.
func (g *Gesture) PointerUp(ev PointerEvent) {
	if ev.ID < 0 || ev.ID >= maxPointers {
		return
	}
	g.down[ev.ID] = false
	g.pos[ev.ID] = Vec2{ev.X, ev.Y}

	if g.pinch.active && (ev.ID == g.pinch.pointer0 || ev.ID == g.pinch.pointer1) {
		g.pinch = pinchState{}
		return
	}
	if ev.ID != g.owner {
		return
	}

	g.Tick(ev.Time)

	switch g.state {
	case GesturePointerDownOnSprite:
		g.h.MarkerClick(g.marker, g.mods|ev.Modifiers)
	case GestureDraggingSprite:
		g.marker.Dragging = false
		g.h.MarkerDrop(g.marker, ev.X, ev.Y)
		g.cam.ClearMomentum()
	case GesturePanning:
		g.cam.EndPan()
		if g.travel <= g.DeadZone {
			g.cam.ClearMomentum()
			g.h.SkyClick(ev.X, ev.Y, g.mods|ev.Modifiers)
		}
	}
	g.reset()
}

// Tick fires the long-press timer once now has reached its deadline.
func (g *Gesture) Tick(now time.Time) {
	if g.state != GesturePointerDownOnSprite || now.Before(g.deadline) {
		return
	}
	g.state = GestureDraggingSprite
	g.marker.Dragging = true
}

// Wheel zooms by dy notches; positive dy zooms in. The zoom eases over
// WheelDuration, and notches that arrive mid-tween add to its target.
func (g *Gesture) Wheel(dy float64) {
	if dy == 0 || g.modalOpen() {
		return
	}
	if g.WheelDuration <= 0 {
		g.cam.ZoomBy(-dy * g.WheelStep)
		return
	}
	g.cam.ZoomTo(g.cam.ZoomTarget()-dy*g.WheelStep, g.WheelDuration, ease.OutQuad)
}

// Cancel abandons the interaction in progress and forgets all held
// pointers, e.g. when a modal closes.
func (g *Gesture) Cancel() {
	switch g.state {
	case GesturePanning:
		g.cam.EndPan()
		g.cam.ClearMomentum()
	case GestureDraggingSprite:
		g.marker.Dragging = false
	}
	g.reset()
	g.pinch = pinchState{}
	g.down = [maxPointers]bool{}
}

func (g *Gesture) reset() {
	g.state = GestureIdle
	g.owner = -1
	g.marker = nil
	g.deadline = time.Time{}
	g.travel = 0
	g.mods = 0
}

func (g *Gesture) startPinch(p0, p1 int) {
	if g.state == GesturePanning {
		g.cam.EndPan()
	}
	g.cam.ClearMomentum()
	g.cam.stopZoom()
	g.reset()
	a, b := g.pos[p0], g.pos[p1]
	g.pinch = pinchState{
		active:      true,
		pointer0:    p0,
		pointer1:    p1,
		initialDist: math.Hypot(b.X-a.X, b.Y-a.Y),
		startFOV:    g.cam.FOV(),
	}
}

func (g *Gesture) updatePinch() {
	a, b := g.pos[g.pinch.pointer0], g.pos[g.pinch.pointer1]
	dist := math.Hypot(b.X-a.X, b.Y-a.Y)
	if g.pinch.initialDist <= 0 || dist <= 0 {
		return
	}
	g.cam.SetFOV(g.pinch.startFOV * g.pinch.initialDist / dist)
}
