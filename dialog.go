package vista

import (
	"fmt"
	"slices"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/vista/tour"
)

// dialogState is the keyboard dialog drawn over the canvas while a modal is
// open. choice is the highlighted row: a target scene for transitions, an
// icon (choice+1) for closeups.
type dialogState struct {
	subject *Marker // marker being edited; nil for placements
	choice  int
}

var (
	digitKeys  = [...]ebiten.Key{ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3, ebiten.KeyDigit4, ebiten.KeyDigit5, ebiten.KeyDigit6, ebiten.KeyDigit7, ebiten.KeyDigit8, ebiten.KeyDigit9}
	numpadKeys = [...]ebiten.Key{ebiten.KeyNumpad1, ebiten.KeyNumpad2, ebiten.KeyNumpad3, ebiten.KeyNumpad4, ebiten.KeyNumpad5, ebiten.KeyNumpad6, ebiten.KeyNumpad7, ebiten.KeyNumpad8, ebiten.KeyNumpad9}
)

// digit returns n for the n key on the main row or the numpad, 1-9.
func digit(k ebiten.Key) (int, bool) {
	if i := slices.Index(digitKeys[:], k); i >= 0 {
		return i + 1, true
	}
	if i := slices.Index(numpadKeys[:], k); i >= 0 {
		return i + 1, true
	}
	return 0, false
}

func isEnter(k ebiten.Key) bool  { return k == ebiten.KeyEnter || k == ebiten.KeyNumpadEnter }
func isDelete(k ebiten.Key) bool { return k == ebiten.KeyDelete || k == ebiten.KeyBackspace }

// resetDialog highlights the subject's current target or icon.
func (e *Editor) resetDialog(kind ModalKind, subject *Marker) {
	e.dialog = dialogState{subject: subject}
	if kind != ModalConnection || subject == nil {
		return
	}
	switch subject.Kind {
	case MarkerTransition:
		i := slices.IndexFunc(e.targetScenes(), func(s tour.Scene) bool { return s.ID == subject.TargetSceneID })
		e.dialog.choice = max(i, 0)
	case MarkerCloseup:
		e.dialog.choice = max(subject.IconIndex-1, 0)
	}
}

// targetScenes lists the scenes a transition from the scene on screen can
// lead to, in display order.
func (e *Editor) targetScenes() []tour.Scene {
	return slices.DeleteFunc(e.cache.SortedScenes(), func(s tour.Scene) bool { return s.ID == e.sceneID })
}

// handleKey applies one key press. Escape closes any dialog; every other
// key means something different per dialog. Failures are shown as notices.
func (e *Editor) handleKey(k ebiten.Key) {
	if k == ebiten.KeyEscape {
		e.CancelModal()
		return
	}
	var err error
	switch e.modal {
	case ModalNone:
		err = e.shortcutKey(k)
	case ModalPlacement:
		err = e.placementKey(k)
	case ModalConnection:
		err = e.connectionKey(k)
	case ModalFloorplanPin:
		err = e.pinKey(k)
	case ModalCloseupViewer:
		if isEnter(k) || k == ebiten.KeySpace {
			e.CancelModal()
		}
	}
	if err != nil {
		e.ui.Notify(Notice{Level: NoticeError, Title: "Not applied", Message: err.Error()})
		e.log.Debug().Err(err).Str("key", k.String()).Msg("key action failed")
	}
}

func (e *Editor) shortcutKey(k ebiten.Key) error {
	switch k {
	case ebiten.KeyF:
		e.ToggleFloorplan()
	case ebiten.KeyH:
		e.BeginPlacement(PlaceTransition)
	case ebiten.KeyC:
		e.BeginPlacement(PlaceCloseup)
	case ebiten.KeyI:
		return e.SetInitialView()
	case ebiten.KeyR:
		return e.ReturnToInitialView()
	case ebiten.KeyN:
		return e.SetNorthDirection(e.camera.Lon())
	case ebiten.KeyS:
		return e.cycleSort()
	case ebiten.KeyP:
		return e.pinSceneOnFloorplan()
	default:
		if n, ok := digit(k); ok {
			scenes := e.cache.SortedScenes()
			if n > len(scenes) {
				return nil
			}
			return e.Navigate(scenes[n-1].ID)
		}
	}
	return nil
}

// sortCycle is the order the S key steps through.
var sortCycle = []tour.Sort{
	{Mode: tour.SortAlphabetical, Direction: tour.SortAsc},
	{Mode: tour.SortAlphabetical, Direction: tour.SortDesc},
	{Mode: tour.SortCreatedAt, Direction: tour.SortAsc},
	{Mode: tour.SortCreatedAt, Direction: tour.SortDesc},
	{Mode: tour.SortModifiedAt, Direction: tour.SortAsc},
	{Mode: tour.SortModifiedAt, Direction: tour.SortDesc},
}

func (e *Editor) cycleSort() error {
	next := sortCycle[(slices.Index(sortCycle, e.cache.Tour().Sort)+1)%len(sortCycle)]
	return e.SetSceneSort(next.Mode, next.Direction)
}

// pinSceneOnFloorplan pins the scene on screen at the middle of the
// floorplan. The pin can then be dragged into place.
func (e *Editor) pinSceneOnFloorplan() error {
	fp := e.cache.Floorplan()
	if fp == nil {
		return invalid("floorplan", "the tour has no floorplan")
	}
	if slices.ContainsFunc(fp.Markers, func(m tour.FloorplanMarker) bool { return m.SceneID == e.sceneID }) {
		return invalid("scene", "this scene is already pinned")
	}
	e.floorplanShown = true
	return e.AddFloorplanMarker(e.sceneID, 0.5, 0.5)
}

// choose moves the highlight: digits pick a row, arrows step through n rows.
func (e *Editor) choose(k ebiten.Key, n int) {
	if n == 0 {
		return
	}
	switch k {
	case ebiten.KeyArrowUp:
		e.dialog.choice = (e.dialog.choice - 1 + n) % n
	case ebiten.KeyArrowDown:
		e.dialog.choice = (e.dialog.choice + 1) % n
	default:
		if d, ok := digit(k); ok && d <= n {
			e.dialog.choice = d - 1
		}
	}
}

func (e *Editor) placementKey(k ebiten.Key) error {
	p := e.placement
	if p == nil {
		return nil
	}
	if p.Kind == PlaceCloseup {
		e.choose(k, tour.MaxIconIndex)
		if !isEnter(k) {
			return nil
		}
		if e.closeupFile == "" {
			return invalid("file", "no closeup image was uploaded")
		}
		_, err := e.ConfirmCloseup(e.closeupFile, "", e.dialog.choice+1)
		return err
	}

	targets := e.targetScenes()
	e.choose(k, len(targets))
	if !isEnter(k) {
		return nil
	}
	if len(targets) == 0 {
		return invalid("target", "the tour has no other scene")
	}
	_, err := e.ConfirmTransition(targets[e.dialog.choice].ID, nil)
	return err
}

func (e *Editor) connectionKey(k ebiten.Key) error {
	s := e.dialog.subject
	if s == nil {
		return nil
	}
	if isDelete(k) {
		return e.DeleteConnection(s.ID)
	}
	if s.Kind == MarkerCloseup {
		e.choose(k, tour.MaxIconIndex)
		if !isEnter(k) {
			return nil
		}
		icon := e.dialog.choice + 1
		if icon != s.IconIndex {
			if err := e.EditConnection(s.ID, ConnectionEdit{Icon: &icon}); err != nil {
				return err
			}
		}
		e.closeModal()
		return nil
	}

	targets := e.targetScenes()
	e.choose(k, len(targets))
	if !isEnter(k) || len(targets) == 0 {
		return nil
	}
	target := targets[e.dialog.choice].ID
	if target != s.TargetSceneID {
		if err := e.EditConnection(s.ID, ConnectionEdit{Target: &target}); err != nil {
			return err
		}
	}
	e.closeModal()
	return nil
}

func (e *Editor) pinKey(k ebiten.Key) error {
	s := e.dialog.subject
	switch {
	case s == nil:
		return nil
	case isDelete(k):
		return e.DeleteFloorplanMarker(s.ID)
	case isEnter(k):
		return e.Navigate(s.SceneID)
	}
	return nil
}

// dialogLines returns the text of the open dialog, or nil.
func (e *Editor) dialogLines() []string {
	s := e.dialog.subject
	switch e.modal {
	case ModalPlacement:
		p := e.placement
		if p == nil {
			return nil
		}
		if p.Kind == PlaceCloseup {
			file := e.closeupFile
			if file == "" {
				file = "(no image uploaded)"
			}
			lines := []string{fmt.Sprintf("New closeup at %.2f, %.2f: %s", p.Position.Lon, p.Position.Lat, file)}
			lines = append(lines, e.iconRows()...)
			return append(lines, "1-3 icon  Enter create  Esc cancel")
		}
		lines := []string{fmt.Sprintf("New hotspot at %.2f, %.2f", p.Position.Lon, p.Position.Lat)}
		lines = append(lines, e.targetRows()...)
		return append(lines, "1-9 target  Enter create  Esc cancel")
	case ModalConnection:
		if s == nil {
			return nil
		}
		if s.Kind == MarkerCloseup {
			lines := []string{"Closeup: " + s.Label(e.cache.Scene)}
			lines = append(lines, e.iconRows()...)
			return append(lines, "1-3 icon  Enter save  Del delete  Esc close")
		}
		lines := []string{"Hotspot: " + s.Label(e.cache.Scene)}
		lines = append(lines, e.targetRows()...)
		return append(lines, "1-9 target  Enter save  Del delete  Esc close")
	case ModalFloorplanPin:
		if s == nil {
			return nil
		}
		return []string{"Floorplan pin: " + s.Label(e.cache.Scene), "Enter go to scene  Del remove pin  Esc close"}
	case ModalCloseupViewer:
		if s == nil {
			return nil
		}
		return []string{"Closeup: " + s.FilePath, "Enter or Esc close"}
	}
	return nil
}

func (e *Editor) targetRows() []string {
	targets := e.targetScenes()
	if len(targets) == 0 {
		return []string{"  (no other scenes)"}
	}
	rows := make([]string, len(targets))
	for i, s := range targets {
		mark, key := " ", " "
		if i == e.dialog.choice {
			mark = ">"
		}
		if i < len(digitKeys) {
			key = fmt.Sprint(i + 1)
		}
		rows[i] = fmt.Sprintf("%s %s %s", mark, key, s.Name)
	}
	return rows
}

func (e *Editor) iconRows() []string {
	rows := make([]string, 0, tour.MaxIconIndex)
	for icon := tour.MinIconIndex; icon <= tour.MaxIconIndex; icon++ {
		mark := " "
		if icon == e.dialog.choice+1 {
			mark = ">"
		}
		rows = append(rows, fmt.Sprintf("%s %d icon %d", mark, icon, icon))
	}
	return rows
}
