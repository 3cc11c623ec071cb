package vista

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/hajimehoshi/ebiten/v2"
)

// testStep represents a single action in a test script.
type testStep struct {
	Action  string  `json:"action"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	FromX   float64 `json:"fromX,omitempty"`
	FromY   float64 `json:"fromY,omitempty"`
	ToX     float64 `json:"toX,omitempty"`
	ToY     float64 `json:"toY,omitempty"`
	Frames  int     `json:"frames,omitempty"`
	Ms      int     `json:"ms,omitempty"`
	Notches float64 `json:"notches,omitempty"`
	Key     string  `json:"key,omitempty"`
}

// testScript is the top-level JSON structure for a test script.
type testScript struct {
	Steps []testStep `json:"steps"`
}

var knownActions = map[string]bool{
	"click": true, "primaryClick": true, "drag": true, "markerDrag": true,
	"press": true, "move": true, "release": true, "hold": true,
	"wheel": true, "wait": true, "cancel": true, "key": true,
}

// scriptKeys names the keys a "key" step can press.
var scriptKeys = map[string]ebiten.Key{
	"Enter": ebiten.KeyEnter, "Escape": ebiten.KeyEscape,
	"Delete": ebiten.KeyDelete, "Backspace": ebiten.KeyBackspace,
	"ArrowUp": ebiten.KeyArrowUp, "ArrowDown": ebiten.KeyArrowDown,
	"C": ebiten.KeyC, "F": ebiten.KeyF, "H": ebiten.KeyH, "I": ebiten.KeyI,
	"N": ebiten.KeyN, "P": ebiten.KeyP, "R": ebiten.KeyR, "S": ebiten.KeyS,
}

func init() {
	for i, k := range digitKeys {
		scriptKeys[fmt.Sprint(i+1)] = k
	}
}

// TestRunner sequences injected input across frames for automated smoke
// runs. Attach to an Editor via SetTestRunner.
type TestRunner struct {
	steps     []testStep
	cursor    int
	waitCount int
	done      bool
}

// LoadTestScript parses a JSON test script and returns a TestRunner ready
// to be attached via SetTestRunner.
func LoadTestScript(data []byte) (*TestRunner, error) {
	var script testScript
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse test script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("parse test script: no steps")
	}
	for i, st := range script.Steps {
		if !knownActions[st.Action] {
			return nil, fmt.Errorf("parse test script: step %d: unknown action %q", i, st.Action)
		}
		if _, ok := scriptKeys[st.Key]; st.Action == "key" && !ok {
			return nil, fmt.Errorf("parse test script: step %d: unknown key %q", i, st.Key)
		}
	}
	return &TestRunner{steps: script.Steps}, nil
}

// Done reports whether all steps in the test script have been executed.
func (r *TestRunner) Done() bool {
	return r.done
}

// step advances the runner by one frame. Called from Editor.Update.
func (r *TestRunner) step(e *Editor) {
	if r.done {
		return
	}
	// Wait for pending injections to drain before advancing.
	if len(e.injectQueue) > 0 {
		return
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++

	switch st.Action {
	case "click":
		e.InjectClick(st.X, st.Y)
	case "primaryClick":
		e.InjectModifiedPress(st.X, st.Y, ModCtrl)
		e.InjectRelease(st.X, st.Y)
	case "drag":
		e.InjectDrag(st.FromX, st.FromY, st.ToX, st.ToY, st.Frames)
	case "markerDrag":
		e.InjectMarkerDrag(st.FromX, st.FromY, st.ToX, st.ToY, st.Frames)
	case "press":
		e.InjectPress(st.X, st.Y)
	case "move":
		e.InjectMove(st.X, st.Y)
	case "release":
		e.InjectRelease(st.X, st.Y)
	case "hold":
		e.InjectHold(time.Duration(st.Ms) * time.Millisecond)
	case "wheel":
		e.InjectWheel(st.Notches)
	case "cancel":
		e.CancelModal()
	case "key":
		e.handleKey(scriptKeys[st.Key])
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this frame counts as one
		}
	}

	if r.cursor >= len(r.steps) && r.waitCount == 0 && len(e.injectQueue) == 0 {
		r.done = true
	}
}
