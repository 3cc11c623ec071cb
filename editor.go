package vista

import (
	"errors"
	"fmt"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
	"github.com/tanema/gween/ease"

	"github.com/phanxgames/vista/optimistic"
	"github.com/phanxgames/vista/protocol"
	"github.com/phanxgames/vista/session"
	"github.com/phanxgames/vista/tour"
)

// ErrNoSender is returned by NewEditor when Options.Sender is nil.
var ErrNoSender = errors.New("vista: editor needs a sender")

// Sender delivers outbound actions. It must not block; *session.Conn
// queues while disconnected.
type Sender interface {
	Send(env protocol.Envelope) error
}

// ModalKind identifies the dialog currently covering the canvas.
type ModalKind uint8

const (
	ModalNone          ModalKind = iota
	ModalConnection              // edit a transition or closeup
	ModalCloseupViewer           // closeup image viewer
	ModalPlacement               // confirm a new hotspot or closeup
	ModalFloorplanPin            // edit a floorplan pin
)

// PlacementKind selects what a sky click creates while in placement mode.
type PlacementKind uint8

const (
	PlaceNothing PlacementKind = iota
	PlaceTransition
	PlaceCloseup
)

// Placement is a pending hotspot or closeup creation awaiting confirmation.
type Placement struct {
	Kind     PlacementKind
	SceneID  tour.ID
	Position LonLat
}

// NoticeLevel grades a user-facing notification.
type NoticeLevel uint8

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeError
)

// Notice is a transient notification. Sticky notices stay until replaced.
type Notice struct {
	Level   NoticeLevel
	Title   string
	Message string
	Sticky  bool
}

// UI is the presentation layer the editor drives. Every call happens on
// the editor's goroutine.
type UI interface {
	OpenConnectionEditor(m *Marker)
	OpenCloseupViewer(m *Marker)
	OpenFloorplanPinEditor(m *Marker)
	OpenPlacement(p Placement)
	CloseModal()
	ShowTooltip(text string, x, y float64)
	HideTooltip()
	SetCursor(shape ebiten.CursorShapeType)
	Notify(n Notice)
	SceneChanged(scene *tour.Scene)
}

// Options configures an Editor. Zero values pick the defaults.
type Options struct {
	TourID   tour.ID
	Viewport Rect

	Sender  Sender
	UI      UI
	Fetcher TextureFetcher
	Logger  zerolog.Logger
	Now     func() time.Time

	// Inbox is drained at the start of every Update.
	Inbox <-chan protocol.Message
	// Status is drained alongside Inbox.
	Status <-chan session.Event

	LongPress         time.Duration
	PanSensitivity    float64
	Dampening         float64
	MomentumEpsilon   float64
	DragDeadZone      float64
	TextureRetryDelay time.Duration
	Debug             bool
}

// Editor is the application context: it owns the camera, gesture machine,
// marker registry, tour cache and pending-mutation tracker, and is the only
// place they are mutated. Network messages and input are both applied from
// Update, so every handler sees consistent state.
type Editor struct {
	log    zerolog.Logger
	now    func() time.Time
	tourID tour.ID
	send   Sender
	ui     UI
	inbox  <-chan protocol.Message
	status <-chan session.Event

	camera   *Camera
	gesture  *Gesture
	registry *Registry
	cache    *tour.Cache
	pending  *optimistic.Tracker
	ids      *optimistic.IDGenerator
	textures *TextureCache

	sceneID   tour.ID
	modal     ModalKind
	placing   PlacementKind
	placement *Placement
	hover     *Marker
	hoverX    float64
	hoverY    float64

	floorplanShown bool
	banner         string

	dialog      dialogState
	closeupFile string

	// deferred holds actions on tentative records, sent once the server
	// assigns the real id.
	deferred map[tour.ID][]func(real tour.ID) protocol.SubAction
	// deleted marks tentative records removed before their ack.
	deleted map[tour.ID]bool

	input       inputState
	injectQueue []syntheticPointerEvent
	injectSkew  time.Duration
	testRunner  *TestRunner

	debug  bool
	stats  debugStats
	sphere sphereMesh
}

// NewEditor constructs the editor context.
func NewEditor(opts Options) (*Editor, error) {
	if opts.Sender == nil {
		return nil, ErrNoSender
	}
	if opts.UI == nil {
		opts.UI = nopUI{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Viewport.Width <= 0 || opts.Viewport.Height <= 0 {
		opts.Viewport = Rect{Width: 1280, Height: 720}
	}

	e := &Editor{
		log:      opts.Logger.With().Str("component", "editor").Int64("tour_id", int64(opts.TourID)).Logger(),
		now:      opts.Now,
		tourID:   opts.TourID,
		send:     opts.Sender,
		ui:       opts.UI,
		inbox:    opts.Inbox,
		status:   opts.Status,
		cache:    tour.NewCache(),
		pending:  optimistic.NewTracker(),
		ids:      optimistic.NewIDGenerator(opts.Now),
		deferred: make(map[tour.ID][]func(tour.ID) protocol.SubAction),
		deleted:  make(map[tour.ID]bool),
		debug:    opts.Debug,
	}

	e.camera = NewCamera(opts.Viewport)
	if opts.PanSensitivity > 0 {
		e.camera.Sensitivity = opts.PanSensitivity
	}
	if opts.Dampening > 0 && opts.Dampening < 1 {
		e.camera.Dampening = opts.Dampening
	}
	if opts.MomentumEpsilon > 0 {
		e.camera.Epsilon = opts.MomentumEpsilon
	}

	e.gesture = NewGesture(e.camera, e, e.ModalOpen)
	if opts.LongPress > 0 {
		e.gesture.LongPress = opts.LongPress
	}
	if opts.DragDeadZone > 0 {
		e.gesture.DeadZone = opts.DragDeadZone
	}

	e.registry = NewRegistry(e.log)
	e.textures = NewTextureCache(opts.Fetcher, opts.TextureRetryDelay, e.log)
	e.textures.OnFailure = e.textureFailed
	e.sphere = newSphereMesh(sphereSegmentsLon, sphereSegmentsLat)
	return e, nil
}

// Camera returns the editor camera.
func (e *Editor) Camera() *Camera { return e.camera }

// Gesture returns the gesture machine.
func (e *Editor) Gesture() *Gesture { return e.gesture }

// Registry returns the marker registry.
func (e *Editor) Registry() *Registry { return e.registry }

// Cache returns the tour state cache.
func (e *Editor) Cache() *tour.Cache { return e.cache }

// Pending returns the optimistic mutation tracker.
func (e *Editor) Pending() *optimistic.Tracker { return e.pending }

// Textures returns the texture cache.
func (e *Editor) Textures() *TextureCache { return e.textures }

// SceneID returns the scene on screen, or 0 before the tour loads.
func (e *Editor) SceneID() tour.ID { return e.sceneID }

// Scene returns the scene on screen, or nil.
func (e *Editor) Scene() *tour.Scene { return e.cache.Scene(e.sceneID) }

// Modal returns the open dialog.
func (e *Editor) Modal() ModalKind { return e.modal }

// ModalOpen reports whether any dialog covers the canvas.
func (e *Editor) ModalOpen() bool { return e.modal != ModalNone }

// Banner returns the persistent connection banner text, if any.
func (e *Editor) Banner() string { return e.banner }

// Placement returns the placement awaiting confirmation, or nil.
func (e *Editor) Placement() *Placement { return e.placement }

// SetViewport resizes the canvas.
func (e *Editor) SetViewport(vp Rect) {
	e.camera.Viewport = vp
	e.camera.MarkDirty()
}

// SetCloseupFile sets the uploaded image the placement dialog attaches to
// new closeups.
func (e *Editor) SetCloseupFile(path string) { e.closeupFile = path }

// SetDebug enables per-frame statistics logging.
func (e *Editor) SetDebug(enabled bool) { e.debug = enabled }

// SetTestRunner attaches a scripted input runner. Its step method is called
// from Update before input processing each frame.
func (e *Editor) SetTestRunner(runner *TestRunner) { e.testRunner = runner }

// ToggleFloorplan shows or hides the floorplan overlay.
func (e *Editor) ToggleFloorplan() {
	e.floorplanShown = !e.floorplanShown
}

// FloorplanShown reports whether the overlay is visible.
func (e *Editor) FloorplanShown() bool { return e.floorplanShown && e.cache.Floorplan() != nil }

// Update advances one frame: it applies queued network messages, texture
// results and input, then steps the camera.
func (e *Editor) Update() error {
	start := time.Now()
	now := e.clock()
	dt := float32(1.0 / float64(ebiten.TPS()))

	e.drainStatus()
	n := e.drainInbox()
	e.textures.Update(now)

	if e.testRunner != nil {
		e.testRunner.step(e)
	}
	e.processInput(now)
	e.gesture.Tick(e.clock())
	e.camera.update(dt)
	e.registry.Cull(e.camera, e.floorplanRect())

	if e.debug {
		e.stats.messages = n
		e.stats.updateTime = time.Since(start)
		e.debugLog()
	}
	return nil
}

func (e *Editor) clock() time.Time { return e.now().Add(e.injectSkew) }

func (e *Editor) drainInbox() int {
	if e.inbox == nil {
		return 0
	}
	n := 0
	for {
		select {
		case msg, ok := <-e.inbox:
			if !ok {
				e.inbox = nil
				return n
			}
			e.Handle(msg)
			n++
		default:
			return n
		}
	}
}

func (e *Editor) drainStatus() {
	if e.status == nil {
		return
	}
	for {
		select {
		case ev, ok := <-e.status:
			if !ok {
				e.status = nil
				return
			}
			e.HandleStatus(ev)
		default:
			return
		}
	}
}

// HandleStatus reacts to connection state changes. Giving up shows a
// persistent banner; reopening clears it.
func (e *Editor) HandleStatus(ev session.Event) {
	switch ev.Status {
	case session.StatusGaveUp:
		e.banner = "Connection lost. Changes are kept locally until you reload."
		e.ui.Notify(Notice{Level: NoticeError, Title: "Disconnected", Message: e.banner, Sticky: true})
		e.log.Warn().Err(ev.Err).Int("attempt", ev.Attempt).Msg("connection gave up")
	case session.StatusReconnecting:
		e.log.Info().Int("attempt", ev.Attempt).Msg("reconnecting")
	case session.StatusOpen:
		if e.banner != "" {
			e.banner = ""
			e.ui.Notify(Notice{Level: NoticeSuccess, Title: "Reconnected"})
		}
	}
}

// Navigate shows a scene: the registry is rebuilt from the cache, the
// camera resets to the scene's initial view and its panorama is requested.
func (e *Editor) Navigate(id tour.ID) error {
	scene := e.cache.Scene(id)
	if scene == nil {
		return fmt.Errorf("navigate: %w: %d", tour.ErrSceneNotFound, id)
	}
	e.gesture.Cancel()
	e.closeModal()
	e.setHover(nil, 0, 0)

	e.sceneID = id
	lon, lat, fov := scene.InitialView.Resolved()
	e.camera.Reset(lon, lat, fov)
	e.registry.LoadScene(scene, e.camera)
	e.textures.Request(scene.FilePath)
	e.retainTextures()
	e.ui.SceneChanged(scene)
	e.log.Debug().Int64("scene_id", int64(id)).Int("markers", e.registry.Len()).Msg("scene loaded")
	return nil
}

// flyToDuration is how long, in seconds, the camera takes to swing back to
// a scene's initial view.
const flyToDuration float32 = 0.6

// ReturnToInitialView swings the camera back to the opening view of the
// scene on screen.
func (e *Editor) ReturnToInitialView() error {
	scene := e.Scene()
	if scene == nil {
		return invalid("scene", "no scene is open")
	}
	lon, lat, fov := scene.InitialView.Resolved()
	e.camera.FlyTo(lon, lat, fov, flyToDuration, ease.InOutQuad)
	return nil
}

// showFallbackScene keeps the current scene when it still exists, otherwise
// shows the initial scene, otherwise the first one.
func (e *Editor) showFallbackScene() {
	if e.sceneID != 0 && e.cache.Scene(e.sceneID) != nil {
		e.refreshMarkers()
		return
	}
	id := e.cache.InitialSceneID()
	if e.cache.Scene(id) == nil {
		id = 0
		if scenes := e.cache.Scenes(); len(scenes) > 0 {
			id = scenes[0].ID
		}
	}
	if id == 0 {
		e.sceneID = 0
		e.gesture.Cancel()
		e.registry.LoadScene(nil, e.camera)
		e.ui.SceneChanged(nil)
		return
	}
	if err := e.Navigate(id); err != nil {
		e.log.Debug().Err(err).Msg("fallback navigation failed")
	}
}

// refreshMarkers rebuilds the registry for the scene on screen. A marker
// held by the gesture machine survives the rebuild when its record does.
func (e *Editor) refreshMarkers() {
	held := e.gesture.Marker()
	e.registry.LoadScene(e.cache.Scene(e.sceneID), e.camera)
	e.registry.LoadFloorplan(e.cache.Floorplan())
	if held == nil {
		return
	}
	if held.Kind == MarkerFloorplanPin {
		if e.registry.Pin(held.ID) == nil {
			e.gesture.Cancel()
		}
		return
	}
	if e.registry.Get(held.ID) == nil {
		e.gesture.Cancel()
		return
	}
	e.registry.Add(held)
}

// retainTextures keeps the panorama on screen and the floorplan image, and
// releases everything else.
func (e *Editor) retainTextures() {
	keep := make([]string, 0, 2)
	if s := e.Scene(); s != nil {
		keep = append(keep, s.FilePath)
	}
	if fp := e.cache.Floorplan(); fp != nil {
		keep = append(keep, fp.FilePath)
	}
	e.textures.Retain(keep...)
}

func (e *Editor) textureFailed(path string, err error) {
	if e.cache.SceneCount() == 1 {
		e.ui.Notify(Notice{Level: NoticeError, Title: "Image failed to load", Message: path})
		e.log.Error().Err(err).Str("path", path).Msg("texture failed")
		return
	}
	e.log.Debug().Err(err).Str("path", path).Msg("texture failed")
}

// --- Modals and placement ---

// BeginPlacement enters placement mode: the next click on empty sky opens
// the confirmation dialog for a new hotspot or closeup at that point.
func (e *Editor) BeginPlacement(kind PlacementKind) {
	e.placing = kind
	e.placement = nil
	if kind != PlaceNothing {
		e.ui.SetCursor(ebiten.CursorShapeCrosshair)
	}
}

// Placing returns the active placement mode.
func (e *Editor) Placing() PlacementKind { return e.placing }

// CancelModal closes the open dialog, cancels placement mode and clears
// transient pointer state.
func (e *Editor) CancelModal() {
	e.closeModal()
	e.placing = PlaceNothing
	e.placement = nil
	e.gesture.Cancel()
	e.ui.SetCursor(ebiten.CursorShapeDefault)
}

// openModal opens a dialog about subject, which is nil for placements.
func (e *Editor) openModal(kind ModalKind, subject *Marker) {
	e.modal = kind
	e.resetDialog(kind, subject)
	e.setHover(nil, 0, 0)
}

func (e *Editor) closeModal() {
	if e.modal == ModalNone {
		return
	}
	e.modal = ModalNone
	e.dialog = dialogState{}
	e.ui.CloseModal()
}

// --- GestureHandler ---

// HitTest returns the marker under a viewport point.
func (e *Editor) HitTest(x, y float64) *Marker {
	return e.registry.HitTest(e.camera, e.floorplanRect(), x, y)
}

// MarkerClick resolves a click: with the primary modifier it performs the
// marker's action, otherwise it opens the marker's edit dialog.
func (e *Editor) MarkerClick(m *Marker, mods KeyModifiers) {
	switch m.Kind {
	case MarkerFloorplanPin:
		if mods.Primary() {
			e.navigateLogged(m.SceneID)
			return
		}
		e.openModal(ModalFloorplanPin, m)
		e.ui.OpenFloorplanPinEditor(m)
	case MarkerTransition:
		if mods.Primary() {
			e.navigateLogged(m.TargetSceneID)
			return
		}
		e.openModal(ModalConnection, m)
		e.ui.OpenConnectionEditor(m)
	case MarkerCloseup:
		if mods.Primary() {
			e.openModal(ModalCloseupViewer, m)
			e.ui.OpenCloseupViewer(m)
			return
		}
		e.openModal(ModalConnection, m)
		e.ui.OpenConnectionEditor(m)
	}
}

// MarkerDrag moves a held marker under the pointer.
func (e *Editor) MarkerDrag(m *Marker, x, y float64) {
	if m.Kind == MarkerFloorplanPin {
		r := e.floorplanRect()
		if r.Width <= 0 || r.Height <= 0 {
			return
		}
		m.PinX = clamp01((x - r.X) / r.Width)
		m.PinY = clamp01((y - r.Y) / r.Height)
		return
	}
	m.Position = ScreenToLonLat(e.camera, x, y)
	m.Legacy = false
}

// MarkerDrop commits a drag: the final position is written to the cache and
// sent to the server.
func (e *Editor) MarkerDrop(m *Marker, x, y float64) {
	e.MarkerDrag(m, x, y)
	var err error
	if m.Kind == MarkerFloorplanPin {
		err = e.UpdateFloorplanMarker(m.ID, m.PinX, m.PinY)
	} else {
		err = e.MoveConnection(m.ID, m.Position)
	}
	if err != nil {
		e.log.Warn().Err(err).Int64("marker_id", int64(m.ID)).Msg("drop not committed")
	}
}

// SkyClick handles a click on empty sky. In placement mode it opens the
// confirmation dialog for the clicked position.
func (e *Editor) SkyClick(x, y float64, _ KeyModifiers) {
	if e.placing == PlaceNothing || e.sceneID == 0 {
		return
	}
	p := Placement{Kind: e.placing, SceneID: e.sceneID, Position: ScreenToLonLat(e.camera, x, y).Round()}
	e.placement = &p
	e.openModal(ModalPlacement, nil)
	e.ui.OpenPlacement(p)
}

// Hover updates the tooltip and cursor for the marker under the pointer.
func (e *Editor) Hover(m *Marker, x, y float64) {
	e.setHover(m, x, y)
}

func (e *Editor) setHover(m *Marker, x, y float64) {
	prev := e.hover
	e.hover = m
	e.hoverX, e.hoverY = x, y
	if m == nil {
		if prev != nil {
			e.ui.HideTooltip()
			if e.placing != PlaceNothing {
				e.ui.SetCursor(ebiten.CursorShapeCrosshair)
			} else {
				e.ui.SetCursor(ebiten.CursorShapeDefault)
			}
		}
		return
	}
	e.ui.ShowTooltip(m.Label(e.cache.Scene), x, y)
	if prev == nil {
		e.ui.SetCursor(ebiten.CursorShapePointer)
	}
}

func (e *Editor) navigateLogged(id tour.ID) {
	if err := e.Navigate(id); err != nil {
		e.log.Warn().Err(err).Msg("navigation failed")
	}
}

// floorplanRect is the overlay rectangle in viewport coordinates, or the
// zero Rect when the overlay is hidden.
func (e *Editor) floorplanRect() Rect {
	if !e.FloorplanShown() {
		return Rect{}
	}
	vp := e.camera.Viewport
	const margin = 16.0
	w := vp.Width * 0.25
	h := w * 0.75
	if img, ok := e.textures.Get(e.cache.Floorplan().FilePath); ok {
		b := img.Bounds()
		if b.Dx() > 0 {
			h = w * float64(b.Dy()) / float64(b.Dx())
		}
	}
	return Rect{X: vp.X + vp.Width - w - margin, Y: vp.Y + vp.Height - h - margin, Width: w, Height: h}
}

// nopUI discards presentation calls.
type nopUI struct{}

func (nopUI) OpenConnectionEditor(*Marker)         {}
func (nopUI) OpenCloseupViewer(*Marker)            {}
func (nopUI) OpenFloorplanPinEditor(*Marker)       {}
func (nopUI) OpenPlacement(Placement)              {}
func (nopUI) CloseModal()                          {}
func (nopUI) ShowTooltip(string, float64, float64) {}
func (nopUI) HideTooltip()                         {}
func (nopUI) SetCursor(ebiten.CursorShapeType)     {}
func (nopUI) Notify(Notice)                        {}
func (nopUI) SceneChanged(*tour.Scene)             {}
