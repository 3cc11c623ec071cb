package vista

import "time"

// syntheticPointerEvent represents a single injected input event in
// viewport coordinates.
type syntheticPointerEvent struct {
	x, y    float64
	pressed bool
	button  MouseButton
	mods    KeyModifiers
	hold    time.Duration // advance the long-press clock instead of moving
	wheel   float64
}

// InjectPress queues a pointer press event at the given viewport coordinates
// (left button). The event is consumed on the next frame's processInput call.
func (e *Editor) InjectPress(x, y float64) {
	e.injectQueue = append(e.injectQueue, syntheticPointerEvent{x: x, y: y, pressed: true})
}

// InjectModifiedPress is InjectPress with modifier keys held.
func (e *Editor) InjectModifiedPress(x, y float64, mods KeyModifiers) {
	e.injectQueue = append(e.injectQueue, syntheticPointerEvent{x: x, y: y, pressed: true, mods: mods})
}

// InjectMove queues a pointer move event with the button held down. Use this
// between InjectPress and InjectRelease to simulate a drag.
func (e *Editor) InjectMove(x, y float64) {
	e.injectQueue = append(e.injectQueue, syntheticPointerEvent{x: x, y: y, pressed: true})
}

// InjectRelease queues a pointer release event at the given coordinates.
func (e *Editor) InjectRelease(x, y float64) {
	e.injectQueue = append(e.injectQueue, syntheticPointerEvent{x: x, y: y})
}

// InjectHold queues a frame in which the pointer stays still for d. The
// editor clock is advanced by d from then on, so a hold of DefaultLongPress on a marker
// turns the press into a drag without waiting in real time.
func (e *Editor) InjectHold(d time.Duration) {
	e.injectQueue = append(e.injectQueue, syntheticPointerEvent{pressed: true, hold: d})
}

// InjectWheel queues a wheel event of dy notches.
func (e *Editor) InjectWheel(dy float64) {
	e.injectQueue = append(e.injectQueue, syntheticPointerEvent{wheel: dy})
}

// InjectClick is a convenience that queues a press followed by a release
// at the same coordinates. Consumes two frames.
func (e *Editor) InjectClick(x, y float64) {
	e.InjectPress(x, y)
	e.InjectRelease(x, y)
}

// InjectDrag queues a full pan-style drag: press at (fromX, fromY),
// linearly interpolated moves over frames-2 intermediate frames, and
// release at (toX, toY). Minimum frames is 2 (press + release).
func (e *Editor) InjectDrag(fromX, fromY, toX, toY float64, frames int) {
	if frames < 2 {
		frames = 2
	}
	e.InjectPress(fromX, fromY)
	e.injectMoves(fromX, fromY, toX, toY, frames-2)
	e.InjectRelease(toX, toY)
}

// InjectMarkerDrag queues a press, a long-press hold, the moves and the
// release needed to drag a marker from (fromX, fromY) to (toX, toY).
func (e *Editor) InjectMarkerDrag(fromX, fromY, toX, toY float64, frames int) {
	if frames < 2 {
		frames = 2
	}
	e.InjectPress(fromX, fromY)
	e.InjectHold(e.gesture.LongPress)
	e.injectMoves(fromX, fromY, toX, toY, frames-2)
	e.InjectRelease(toX, toY)
}

func (e *Editor) injectMoves(fromX, fromY, toX, toY float64, steps int) {
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps+1)
		e.InjectMove(fromX+(toX-fromX)*t, fromY+(toY-fromY)*t)
	}
}

// processInjectedInput pops one event from the inject queue and feeds it to
// the gesture machine as pointer 0. Returns true if an event was consumed.
func (e *Editor) processInjectedInput(now time.Time, mods KeyModifiers) bool {
	if len(e.injectQueue) == 0 {
		return false
	}
	evt := e.injectQueue[0]
	copy(e.injectQueue, e.injectQueue[1:])
	e.injectQueue = e.injectQueue[:len(e.injectQueue)-1]

	switch {
	case evt.wheel != 0:
		e.gesture.Wheel(evt.wheel)
		return true
	case evt.hold > 0:
		e.injectSkew += evt.hold
		e.gesture.Tick(now.Add(evt.hold))
		return true
	}
	e.processPointer(0, evt.x, evt.y, evt.pressed, evt.button, mods|evt.mods, now)
	return true
}
