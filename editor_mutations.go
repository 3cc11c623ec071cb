package vista

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/phanxgames/vista/optimistic"
	"github.com/phanxgames/vista/protocol"
	"github.com/phanxgames/vista/tour"
)

// ErrValidation is wrapped by every ValidationError.
var ErrValidation = errors.New("vista: invalid input")

// ValidationError rejects a user action before anything is sent. Field is
// the form field to highlight.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type closeupInput struct {
	FilePath string `validate:"required"`
	Icon     int    `validate:"min=1,max=3"`
}

type sceneInput struct {
	Name     string `validate:"required"`
	FilePath string `validate:"required"`
}

type pinInput struct {
	X float64 `validate:"gte=0,lte=1"`
	Y float64 `validate:"gte=0,lte=1"`
}

// check runs struct validation and turns the first failure into a
// ValidationError.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return invalid(field, "is required")
		default:
			return invalid(field, fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param()))
		}
	}
	return err
}

// ConnectionEdit lists the fields an edit changes. Nil fields are kept.
type ConnectionEdit struct {
	Target   *tour.ID
	Position *LonLat
	Name     *string
	Icon     *int
	FilePath *string
}

// --- Optimistic creation ---

// AddConnection places a transition to target in the scene on screen. The
// record appears immediately under a tentative id, which is returned; the
// server's acknowledgment later replaces it.
func (e *Editor) AddConnection(target tour.ID, pos LonLat, name *string) (tour.ID, error) {
	if e.Scene() == nil {
		return 0, invalid("scene", "no scene is open")
	}
	if target == 0 || e.cache.Scene(target) == nil {
		return 0, invalid("target", "choose a target scene")
	}
	name = trimName(name)
	pos = pos.Normalized().Round()

	rec := tour.Connection{
		ID:            e.ids.Next(),
		Type:          tour.Transition,
		Position:      pos.Pair(),
		TargetSceneID: &target,
		Name:          name,
	}
	if err := e.insertTentative(rec); err != nil {
		return 0, err
	}
	e.sendEdit(protocol.AddConnection{
		StartSceneID: protocol.Ref(e.sceneID),
		AssetID:      protocol.Ref(target),
		Position:     protocol.Position(pos.Pair()),
		Name:         name,
	})
	return rec.ID, nil
}

// AddCloseup places a closeup showing filePath in the scene on screen.
// icon 0 selects the first icon.
func (e *Editor) AddCloseup(filePath, name string, icon int, pos LonLat) (tour.ID, error) {
	if e.Scene() == nil {
		return 0, invalid("scene", "no scene is open")
	}
	if icon == 0 {
		icon = tour.MinIconIndex
	}
	if err := check(closeupInput{FilePath: filePath, Icon: icon}); err != nil {
		return 0, err
	}
	pos = pos.Normalized().Round()

	rec := tour.Connection{
		ID:        e.ids.Next(),
		Type:      tour.Closeup,
		Position:  pos.Pair(),
		FilePath:  &filePath,
		IconIndex: icon,
	}
	if n := strings.TrimSpace(name); n != "" {
		rec.Name = &n
	}
	if err := e.insertTentative(rec); err != nil {
		return 0, err
	}
	e.sendEdit(protocol.AddCloseup{
		Name:          strings.TrimSpace(name),
		FilePath:      filePath,
		ParentSceneID: protocol.Ref(e.sceneID),
		Position:      protocol.Position(pos.Pair()),
		IconType:      icon,
	})
	return rec.ID, nil
}

func (e *Editor) insertTentative(rec tour.Connection) error {
	if err := e.cache.AddConnection(e.sceneID, rec); err != nil {
		return err
	}
	e.registry.AddConnection(rec, e.camera)
	e.pending.Track(e.sceneID, rec, e.clock())
	return nil
}

// ConfirmTransition creates the transition the placement dialog describes.
// On a validation error the dialog stays open.
func (e *Editor) ConfirmTransition(target tour.ID, name *string) (tour.ID, error) {
	p := e.placement
	if p == nil || p.Kind != PlaceTransition {
		return 0, invalid("placement", "no hotspot placement in progress")
	}
	id, err := e.AddConnection(target, p.Position, name)
	if err != nil {
		return 0, err
	}
	e.CancelModal()
	return id, nil
}

// ConfirmCloseup creates the closeup the placement dialog describes.
func (e *Editor) ConfirmCloseup(filePath, name string, icon int) (tour.ID, error) {
	p := e.placement
	if p == nil || p.Kind != PlaceCloseup {
		return 0, invalid("placement", "no closeup placement in progress")
	}
	id, err := e.AddCloseup(filePath, name, icon, p.Position)
	if err != nil {
		return 0, err
	}
	e.CancelModal()
	return id, nil
}

// --- Edits ---

// EditConnection applies edit locally and sends it. Edits to a record the
// server has not acknowledged yet are sent once its real id is known.
func (e *Editor) EditConnection(id tour.ID, edit ConnectionEdit) error {
	cur, sceneID := e.cache.Connection(id)
	if cur == nil {
		return fmt.Errorf("edit connection: %w: %d", tour.ErrConnectionNotFound, id)
	}
	next := *cur
	if edit.Target != nil {
		if next.Type != tour.Transition {
			return invalid("target", "closeups have no target scene")
		}
		if *edit.Target == 0 || e.cache.Scene(*edit.Target) == nil {
			return invalid("target", "choose a target scene")
		}
		t := *edit.Target
		next.TargetSceneID = &t
	}
	if edit.Position != nil {
		next.Position = edit.Position.Normalized().Round().Pair()
	} else {
		ll, _ := ResolvePosition(e.camera, next.Position)
		next.Position = ll.Round().Pair()
	}
	if edit.Name != nil {
		next.Name = trimName(edit.Name)
	}
	if edit.Icon != nil || edit.FilePath != nil {
		if next.Type != tour.Closeup {
			return invalid("file", "only closeups carry an image")
		}
		in := closeupInput{Icon: next.IconIndex}
		if next.FilePath != nil {
			in.FilePath = *next.FilePath
		}
		if edit.Icon != nil {
			in.Icon = *edit.Icon
		}
		if edit.FilePath != nil {
			in.FilePath = *edit.FilePath
		}
		if err := check(in); err != nil {
			return err
		}
		next.IconIndex = in.Icon
		fp := in.FilePath
		next.FilePath = &fp
	}
	if err := e.cache.UpdateConnection(next); err != nil {
		return err
	}
	e.pending.Update(next)
	if sceneID == e.sceneID {
		fresh := markerFromConnection(sceneID, next, e.camera)
		if m := e.registry.Get(id); m != nil {
			fresh.Dragging = m.Dragging
			*m = *fresh
		} else {
			e.registry.Add(fresh)
		}
	}

	pos := next.Position
	e.sendFor(id, func(real tour.ID) protocol.SubAction {
		sub := protocol.EditConnection{
			ConnectionID: protocol.Ref(real),
			NewPosition:  protocol.Position(pos),
			NewName:      edit.Name,
			NewIconType:  edit.Icon,
			NewFilePath:  edit.FilePath,
		}
		if edit.Target != nil {
			ref := protocol.Ref(*edit.Target)
			sub.NewAssetID = &ref
		}
		return sub
	})
	return nil
}

// MoveConnection stores a new position for a connection.
func (e *Editor) MoveConnection(id tour.ID, pos LonLat) error {
	return e.EditConnection(id, ConnectionEdit{Position: &pos})
}

// DeleteConnection removes a connection locally and asks the server to
// delete it.
func (e *Editor) DeleteConnection(id tour.ID) error {
	if !e.removeConnectionLocal(id) {
		return fmt.Errorf("delete connection: %w: %d", tour.ErrConnectionNotFound, id)
	}
	if id.Tentative() && e.pending.Has(id) {
		e.deleted[id] = true
		e.deferred[id] = nil
	}
	e.sendFor(id, func(real tour.ID) protocol.SubAction {
		return protocol.DeleteConnection{ConnectionID: protocol.Ref(real)}
	})
	e.closeModal()
	return nil
}

func (e *Editor) removeConnectionLocal(id tour.ID) bool {
	removed := e.cache.RemoveConnection(id)
	if e.registry.Remove(id) {
		removed = true
	}
	if m := e.gesture.Marker(); m != nil && m.Kind != MarkerFloorplanPin && m.ID == id {
		e.gesture.Cancel()
	}
	if e.hover != nil && e.hover.Kind != MarkerFloorplanPin && e.hover.ID == id {
		e.setHover(nil, 0, 0)
	}
	if s := e.dialog.subject; s != nil && s.Kind != MarkerFloorplanPin && s.ID == id {
		e.closeModal()
	}
	return removed
}

// --- Scene actions ---

// SetInitialView stores the current camera orientation as the opening view
// of the scene on screen.
func (e *Editor) SetInitialView() error {
	if e.Scene() == nil {
		return invalid("scene", "no scene is open")
	}
	look := e.camera.LookAt().Round()
	fov := protocol.Round2(e.camera.FOV())
	if err := e.cache.SetInitialView(e.sceneID, look.Lon, look.Lat, fov); err != nil {
		return err
	}
	e.sendEdit(protocol.SetInitialView{
		SceneID:  protocol.Ref(e.sceneID),
		Position: protocol.Position(look.Pair()),
		FOV:      fov,
	})
	return nil
}

// SetNorthDirection stores which longitude of the scene on screen faces
// north, in whole degrees within [0, 360).
func (e *Editor) SetNorthDirection(degrees float64) error {
	if e.Scene() == nil {
		return invalid("scene", "no scene is open")
	}
	dir := protocol.WholeDegrees(wrap360(degrees)) % 360
	if err := e.cache.SetNorthDirection(e.sceneID, dir); err != nil {
		return err
	}
	e.sendEdit(protocol.SetNorthDirection{SceneID: protocol.Ref(e.sceneID), Direction: dir})
	return nil
}

// AddScene asks the server to create a scene for an uploaded panorama.
// The scene appears when scene_added arrives.
func (e *Editor) AddScene(name, filePath string) error {
	name = strings.TrimSpace(name)
	if err := check(sceneInput{Name: name, FilePath: filePath}); err != nil {
		return err
	}
	e.sendEdit(protocol.AddScene{Name: name, FilePath: filePath})
	return nil
}

// DeleteScene removes a scene locally and on the server. Deleting the scene
// on screen shows the new initial scene.
func (e *Editor) DeleteScene(id tour.ID) error {
	if !e.cache.DeleteScene(id) {
		return fmt.Errorf("delete scene: %w: %d", tour.ErrSceneNotFound, id)
	}
	e.forgetPendingFor(id)
	e.afterSceneRemoved(id)
	e.sendEdit(protocol.DeleteScene{SceneID: protocol.Ref(id)})
	return nil
}

// RenameScene sets a scene's display name.
func (e *Editor) RenameScene(id tour.ID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("name", "is required")
	}
	if err := e.cache.RenameScene(id, name); err != nil {
		return err
	}
	e.sendEdit(protocol.UpdateSceneName{SceneID: protocol.Ref(id), Name: name})
	return nil
}

// SetInitialScene marks the scene the tour opens with.
func (e *Editor) SetInitialScene(id tour.ID) error {
	if err := e.cache.SetInitialScene(id); err != nil {
		return err
	}
	e.sendEdit(protocol.SetInitialScene{SceneID: protocol.Ref(id)})
	return nil
}

// SetSceneSort stores the scene list ordering.
func (e *Editor) SetSceneSort(mode tour.SortMode, dir tour.SortDirection) error {
	switch mode {
	case tour.SortAlphabetical, tour.SortCreatedAt, tour.SortModifiedAt:
	default:
		return invalid("mode", fmt.Sprintf("unknown sort mode %q", mode))
	}
	if dir != tour.SortAsc && dir != tour.SortDesc {
		return invalid("direction", fmt.Sprintf("unknown direction %q", dir))
	}
	e.cache.SetSort(tour.Sort{Mode: mode, Direction: dir})
	e.sendEdit(protocol.SetSceneSort{Mode: mode, Direction: dir})
	return nil
}

// --- Floorplan actions ---

// AddFloorplan asks the server to attach an uploaded floorplan image.
func (e *Editor) AddFloorplan(filePath string) error {
	if strings.TrimSpace(filePath) == "" {
		return invalid("file", "is required")
	}
	e.sendEdit(protocol.AddFloorplan{FilePath: filePath})
	return nil
}

// DeleteFloorplan removes the floorplan and its pins.
func (e *Editor) DeleteFloorplan() error {
	fp := e.cache.Floorplan()
	if fp == nil {
		return invalid("floorplan", "the tour has no floorplan")
	}
	id := fp.ID
	e.cache.DeleteFloorplan(id)
	e.refreshMarkers()
	e.retainTextures()
	e.sendEdit(protocol.DeleteFloorplan{FloorplanID: protocol.Ref(id)})
	return nil
}

// AddFloorplanMarker pins a scene onto the floorplan. The pin appears when
// the server acknowledges it.
func (e *Editor) AddFloorplanMarker(sceneID tour.ID, x, y float64) error {
	if e.cache.Floorplan() == nil {
		return invalid("floorplan", "the tour has no floorplan")
	}
	if e.cache.Scene(sceneID) == nil {
		return invalid("scene", "choose a scene")
	}
	if err := check(pinInput{X: x, Y: y}); err != nil {
		return err
	}
	e.sendEdit(protocol.AddFloorplanMarker{SceneID: protocol.Ref(sceneID), X: protocol.Round2(x), Y: protocol.Round2(y)})
	return nil
}

// UpdateFloorplanMarker moves a pin.
func (e *Editor) UpdateFloorplanMarker(id tour.ID, x, y float64) error {
	cur := e.cache.FloorplanMarker(id)
	if cur == nil {
		return invalid("marker", "unknown floorplan marker")
	}
	x, y = clamp01(x), clamp01(y)
	m := *cur
	m.X, m.Y = x, y
	e.cache.UpsertFloorplanMarker(m)
	if pin := e.registry.Pin(id); pin != nil {
		pin.PinX, pin.PinY = x, y
	}
	e.sendEdit(protocol.UpdateFloorplanMarker{MarkerID: protocol.Ref(id), X: protocol.Round2(x), Y: protocol.Round2(y)})
	return nil
}

// DeleteFloorplanMarker removes a pin.
func (e *Editor) DeleteFloorplanMarker(id tour.ID) error {
	if !e.cache.DeleteFloorplanMarker(id) {
		return invalid("marker", "unknown floorplan marker")
	}
	e.refreshMarkers()
	e.sendEdit(protocol.DeleteFloorplanMarker{MarkerID: protocol.Ref(id)})
	e.closeModal()
	return nil
}

// --- Sending ---

func (e *Editor) sendEdit(sub protocol.SubAction) {
	env := protocol.EditTour(e.tourID, sub)
	if err := e.send.Send(env); err != nil {
		e.log.Warn().Err(err).Str("action", sub.ActionName()).Msg("send failed")
		return
	}
	e.log.Debug().Str("action", sub.ActionName()).Msg("sent")
}

// sendFor sends an action about record id, or holds it until the server
// assigns a real id when id is still pending.
func (e *Editor) sendFor(id tour.ID, build func(real tour.ID) protocol.SubAction) {
	if id.Tentative() && e.pending.Has(id) {
		e.deferred[id] = append(e.deferred[id], build)
		e.log.Debug().Int64("tentative_id", int64(id)).Msg("action deferred until acknowledged")
		return
	}
	e.sendEdit(build(id))
}

func trimName(name *string) *string {
	if name == nil {
		return nil
	}
	n := strings.TrimSpace(*name)
	if n == "" {
		return nil
	}
	return &n
}

// --- Inbound ---

// Handle applies one server push. Handlers leave every structure consistent
// before returning.
func (e *Editor) Handle(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.TourData:
		e.applySnapshot(m.Data)
	case protocol.SceneAdded:
		if n := e.cache.AddScene(m.Scene); n > 0 {
			e.log.Warn().Int64("scene_id", int64(m.Scene.ID)).Int("dropped", n).Msg("invalid connections dropped")
		}
		if e.sceneID == 0 {
			e.showFallbackScene()
		}
	case protocol.SceneDeleted:
		if e.cache.DeleteScene(m.SceneID) {
			e.forgetPendingFor(m.SceneID)
			e.afterSceneRemoved(m.SceneID)
		}
	case protocol.SceneUpdated:
		e.applySceneUpdate(m.Scene)
	case protocol.ConnectionAdded:
		p, ok := e.pending.MatchConnection(m.StartScene, m.TargetScene)
		if !ok {
			e.log.Debug().Int64("connection_id", int64(m.ConnectionID)).Msg("connection ack matched nothing")
			return
		}
		e.adopt(p, m.ConnectionID)
	case protocol.CloseupAdded:
		p, ok := e.pending.MatchCloseup(m.ParentScene, m.FilePath)
		if !ok {
			e.log.Debug().Int64("connection_id", int64(m.ConnectionID)).Msg("closeup ack matched nothing")
			return
		}
		e.adopt(p, m.ConnectionID)
		e.applyCloseupAck(m)
	case protocol.ConnectionDeleted:
		e.removeConnectionLocal(m.ConnectionID)
	case protocol.FloorplanAdded:
		e.cache.SetFloorplan(tour.Floorplan{ID: m.FloorplanID, FilePath: m.FilePath})
		e.registry.LoadFloorplan(e.cache.Floorplan())
		e.textures.Request(m.FilePath)
		e.retainTextures()
	case protocol.FloorplanDeleted:
		if e.cache.DeleteFloorplan(m.FloorplanID) {
			e.refreshMarkers()
			e.retainTextures()
		}
	case protocol.FloorplanMarkerAdded:
		e.applyPin(tour.FloorplanMarker{ID: m.MarkerID, SceneID: m.SceneID, X: m.X, Y: m.Y})
	case protocol.FloorplanMarkerUpdated:
		e.applyPin(tour.FloorplanMarker{ID: m.MarkerID, SceneID: m.SceneID, X: m.X, Y: m.Y})
	case protocol.FloorplanMarkerDeleted:
		if e.cache.DeleteFloorplanMarker(m.MarkerID) {
			e.refreshMarkers()
		}
	case protocol.SortUpdated:
		e.cache.SetSort(tour.Sort{Mode: m.Mode, Direction: m.Direction})
	case protocol.Success:
		e.ui.Notify(Notice{Level: NoticeSuccess, Title: m.Title, Message: m.Message})
	case protocol.Error:
		e.ui.Notify(Notice{Level: NoticeError, Title: m.Title, Message: m.Message})
		e.log.Warn().Str("title", m.Title).Str("message", m.Message).Msg("server reported an error")
	default:
		e.log.Warn().Str("type", msg.Type()).Msg("unhandled message")
	}
}

// applySnapshot replaces the cache with a full tour. Records still awaiting
// acknowledgment are put back so they stay visible.
func (e *Editor) applySnapshot(t tour.Tour) {
	if n := e.cache.Load(t); n > 0 {
		e.log.Warn().Int("dropped", n).Msg("invalid connections dropped from snapshot")
	}
	for _, p := range e.pending.Entries() {
		if e.deleted[p.TentativeID] || !e.restorable(p.SceneID, p.Record) {
			continue
		}
		if conn, _ := e.cache.Connection(p.TentativeID); conn != nil {
			continue
		}
		if err := e.cache.AddConnection(p.SceneID, p.Record); err != nil {
			e.log.Debug().Err(err).Int64("tentative_id", int64(p.TentativeID)).Msg("pending record not restored")
		}
	}
	e.log.Info().Int("scenes", e.cache.SceneCount()).Int("pending", e.pending.Len()).Msg("tour loaded")
	e.showFallbackScene()
	e.registry.LoadFloorplan(e.cache.Floorplan())
	if fp := e.cache.Floorplan(); fp != nil {
		e.textures.Request(fp.FilePath)
	}
	e.retainTextures()
}

func (e *Editor) applySceneUpdate(s tour.Scene) {
	prev := e.cache.Scene(s.ID)
	if prev == nil {
		e.log.Debug().Int64("scene_id", int64(s.ID)).Msg("update for unknown scene")
		return
	}
	oldPath := prev.FilePath
	dropped, err := e.cache.UpdateScene(s)
	if err != nil {
		e.log.Debug().Err(err).Msg("scene update not applied")
		return
	}
	if dropped > 0 {
		e.log.Warn().Int64("scene_id", int64(s.ID)).Int("dropped", dropped).Msg("invalid connections dropped")
	}
	if s.ID != e.sceneID {
		return
	}
	e.refreshMarkers()
	scene := e.Scene()
	if scene.FilePath != oldPath {
		e.textures.Request(scene.FilePath)
		e.retainTextures()
	}
	e.ui.SceneChanged(scene)
}

func (e *Editor) afterSceneRemoved(id tour.ID) {
	if id == e.sceneID {
		e.sceneID = 0
		e.closeModal()
		e.showFallbackScene()
		e.retainTextures()
		return
	}
	e.refreshMarkers()
}

func (e *Editor) applyPin(pin tour.FloorplanMarker) {
	if !e.cache.UpsertFloorplanMarker(pin) {
		e.log.Debug().Int64("marker_id", int64(pin.ID)).Msg("pin for missing floorplan")
		return
	}
	e.refreshMarkers()
}

// adopt rewrites a tentative record to the id the server assigned and sends
// any actions that were waiting for it.
func (e *Editor) adopt(p optimistic.Pending, real tour.ID) {
	tentative := p.TentativeID
	log := e.log.With().Int64("tentative_id", int64(tentative)).Int64("connection_id", int64(real)).Logger()
	onScreen := p.SceneID == e.sceneID

	switch {
	case e.deleted[tentative]:
		delete(e.deleted, tentative)
		log.Debug().Msg("acknowledged after local delete")
	case e.hasConnection(real):
		// A snapshot already delivered the real record.
		e.cache.RemoveConnection(tentative)
		if onScreen {
			if held := e.gesture.Marker(); held != nil && held.Kind != MarkerFloorplanPin && held.ID == tentative {
				e.gesture.Cancel()
			}
			e.registry.Remove(tentative)
			if m := e.registry.Get(real); m == nil {
				if conn, _ := e.cache.Connection(real); conn != nil {
					e.registry.AddConnection(*conn, e.camera)
				}
			}
		}
		log.Debug().Msg("tentative record superseded")
	case e.cache.RewriteConnectionID(tentative, real):
		if onScreen && !e.registry.Rewrite(tentative, real) {
			if conn, _ := e.cache.Connection(real); conn != nil {
				e.registry.AddConnection(*conn, e.camera)
			}
		}
		log.Debug().Msg("tentative id reconciled")
	case !e.restorable(p.SceneID, p.Record):
		log.Debug().Msg("acknowledged record lost its scene")
	default:
		rec := p.Record
		rec.ID = real
		if err := e.cache.AddConnection(p.SceneID, rec); err != nil {
			log.Debug().Err(err).Msg("acknowledged record not restored")
			break
		}
		if onScreen {
			e.registry.AddConnection(rec, e.camera)
		}
		log.Debug().Msg("acknowledged record restored")
	}

	if s := e.dialog.subject; s != nil && s.Kind != MarkerFloorplanPin && s.ID == tentative {
		s.ID = real
	}

	queued := e.deferred[tentative]
	delete(e.deferred, tentative)
	for _, build := range queued {
		e.sendEdit(build(real))
	}
}

// restorable reports whether rec can be put back into sceneID: both the
// scene and any transition target must still exist.
func (e *Editor) restorable(sceneID tour.ID, rec tour.Connection) bool {
	if e.cache.Scene(sceneID) == nil {
		return false
	}
	return rec.TargetSceneID == nil || e.cache.Scene(*rec.TargetSceneID) != nil
}

// forgetPendingFor drops records awaiting acknowledgment that start in or
// lead to a removed scene, along with any actions held for them. Their acks
// then match nothing.
func (e *Editor) forgetPendingFor(sceneID tour.ID) {
	for _, p := range e.pending.Entries() {
		if p.SceneID != sceneID && (p.Record.TargetSceneID == nil || *p.Record.TargetSceneID != sceneID) {
			continue
		}
		e.pending.Forget(p.TentativeID)
		delete(e.deferred, p.TentativeID)
		delete(e.deleted, p.TentativeID)
		e.log.Debug().Int64("tentative_id", int64(p.TentativeID)).Int64("scene_id", int64(sceneID)).Msg("pending record dropped with its scene")
	}
}

func (e *Editor) hasConnection(id tour.ID) bool {
	conn, _ := e.cache.Connection(id)
	return conn != nil
}

// applyCloseupAck copies the server's name and icon onto the reconciled
// closeup.
func (e *Editor) applyCloseupAck(m protocol.CloseupAdded) {
	conn, sceneID := e.cache.Connection(m.ConnectionID)
	if conn == nil {
		return
	}
	if n := strings.TrimSpace(m.Name); n != "" {
		conn.Name = &n
	}
	if m.IconType != 0 {
		conn.IconIndex = m.IconType
	}
	if sceneID != e.sceneID {
		return
	}
	if mk := e.registry.Get(m.ConnectionID); mk != nil {
		mk.Name = conn.Name
		mk.IconIndex = conn.IconIndex
	}
}
