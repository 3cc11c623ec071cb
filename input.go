package vista

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// pointerState is the last polled state of one pointer slot.
type pointerState struct {
	down   bool
	lastX  float64
	lastY  float64
	button MouseButton // button captured at press time
}

// inputState converts ebiten's polled mouse and touch state into discrete
// pointer events for the gesture machine.
type inputState struct {
	pointers     [maxPointers]pointerState
	touchMap     [maxPointers]ebiten.TouchID
	touchUsed    [maxPointers]bool
	prevTouchIDs []ebiten.TouchID
	keys         []ebiten.Key
}

// readModifiers reads the current keyboard modifier state.
func readModifiers() KeyModifiers {
	var mods KeyModifiers
	if ebiten.IsKeyPressed(ebiten.KeyShift) || ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight) {
		mods |= ModShift
	}
	if ebiten.IsKeyPressed(ebiten.KeyControl) || ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight) {
		mods |= ModCtrl
	}
	if ebiten.IsKeyPressed(ebiten.KeyAlt) || ebiten.IsKeyPressed(ebiten.KeyAltLeft) || ebiten.IsKeyPressed(ebiten.KeyAltRight) {
		mods |= ModAlt
	}
	if ebiten.IsKeyPressed(ebiten.KeyMeta) || ebiten.IsKeyPressed(ebiten.KeyMetaLeft) || ebiten.IsKeyPressed(ebiten.KeyMetaRight) {
		mods |= ModMeta
	}
	return mods
}

// processInput is called once per frame from Editor.Update. Injected events
// take priority; while any are queued real input is ignored.
func (e *Editor) processInput(now time.Time) {
	mods := readModifiers()
	if e.processInjectedInput(now, mods) {
		return
	}
	e.processKeys()
	e.processMousePointer(now, mods)
	e.processTouchPointers(now, mods)
	if _, wy := ebiten.Wheel(); wy != 0 {
		e.gesture.Wheel(wy)
	}
}

// processMousePointer handles mouse input (pointer 0).
func (e *Editor) processMousePointer(now time.Time, mods KeyModifiers) {
	mx, my := ebiten.CursorPosition()

	var pressed bool
	var button MouseButton
	left := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	right := ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight)
	middle := ebiten.IsMouseButtonPressed(ebiten.MouseButtonMiddle)
	if left || right || middle {
		pressed = true
		if left {
			button = MouseButtonLeft
		} else if right {
			button = MouseButtonRight
		} else {
			button = MouseButtonMiddle
		}
	}
	e.processPointer(0, float64(mx), float64(my), pressed, button, mods, now)
}

// processTouchPointers handles touch input (pointers 1-9).
func (e *Editor) processTouchPointers(now time.Time, mods KeyModifiers) {
	in := &e.input
	touchIDs := ebiten.AppendTouchIDs(in.prevTouchIDs[:0])
	in.prevTouchIDs = touchIDs

	var activeSlots [maxPointers]bool
	for _, tid := range touchIDs {
		slot := in.touchSlot(tid)
		if slot < 0 {
			continue
		}
		activeSlots[slot] = true
		tx, ty := ebiten.TouchPosition(tid)
		e.processPointer(slot, float64(tx), float64(ty), true, MouseButtonLeft, mods, now)
	}

	for i := 1; i < maxPointers; i++ {
		if in.touchUsed[i] && !activeSlots[i] {
			ps := &in.pointers[i]
			if ps.down {
				e.processPointer(i, ps.lastX, ps.lastY, false, MouseButtonLeft, mods, now)
			}
			in.touchUsed[i] = false
			in.touchMap[i] = 0
		}
	}
}

// touchSlot maps an ebiten.TouchID to a pointer slot (1-9).
// Returns the existing slot or allocates a new one. Returns -1 if full.
func (in *inputState) touchSlot(tid ebiten.TouchID) int {
	for i := 1; i < maxPointers; i++ {
		if in.touchUsed[i] && in.touchMap[i] == tid {
			return i
		}
	}
	for i := 1; i < maxPointers; i++ {
		if !in.touchUsed[i] {
			in.touchUsed[i] = true
			in.touchMap[i] = tid
			return i
		}
	}
	return -1
}

// processPointer turns one polled sample into press, move and release
// events by comparing it with the previous sample for the same slot.
func (e *Editor) processPointer(pointerID int, x, y float64, pressed bool, button MouseButton, mods KeyModifiers, now time.Time) {
	ps := &e.input.pointers[pointerID]
	ev := PointerEvent{ID: pointerID, X: x, Y: y, Button: button, Modifiers: mods, Time: now}

	switch {
	case pressed && !ps.down:
		ps.down = true
		ps.button = button
		if button != MouseButtonLeft {
			break
		}
		e.gesture.PointerDown(ev)
	case !pressed && ps.down:
		ps.down = false
		ev.Button = ps.button
		if ps.button == MouseButtonLeft {
			e.gesture.PointerUp(ev)
		}
	case x != ps.lastX || y != ps.lastY:
		ev.Button = ps.button
		if !ps.down || ps.button == MouseButtonLeft {
			e.gesture.PointerMove(ev)
		}
	}
	ps.lastX, ps.lastY = x, y
}

// processKeys feeds the keys pressed this frame to the editor's shortcuts
// and the open dialog.
func (e *Editor) processKeys() {
	e.input.keys = inpututil.AppendJustPressedKeys(e.input.keys[:0])
	for _, k := range e.input.keys {
		e.handleKey(k)
	}
}
