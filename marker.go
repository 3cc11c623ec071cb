package vista

import (
	"github.com/phanxgames/vista/tour"
)

// MarkerKind distinguishes the three marker flavors.
type MarkerKind uint8

const (
	MarkerTransition   MarkerKind = iota // navigates to another scene
	MarkerCloseup                        // opens a detail image
	MarkerFloorplanPin                   // a scene pinned on the floorplan overlay
)

func (k MarkerKind) String() string {
	switch k {
	case MarkerTransition:
		return "transition"
	case MarkerCloseup:
		return "closeup"
	case MarkerFloorplanPin:
		return "floorplan_pin"
	default:
		return "unknown"
	}
}

// Marker hit radii in screen pixels.
const (
	MarkerHitRadius = 22.0
	PinHitRadius    = 9.0

	// CloseupHitHalf is half the side of the square closeup badge's hit area.
	CloseupHitHalf = 18.0
)

// HitShape defines a hit testable region in screen space relative to the
// marker's anchor.
type HitShape interface {
	Contains(x, y float64) bool
}

// HitRect is an axis-aligned rectangular hit area.
type HitRect struct {
	X, Y, Width, Height float64
}

// Contains reports whether (x, y) lies inside the rectangle.
func (r HitRect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// HitCircle is a circular hit area.
type HitCircle struct {
	CenterX, CenterY, Radius float64
}

// Contains reports whether (x, y) lies inside or on the circle.
func (c HitCircle) Contains(x, y float64) bool {
	dx := x - c.CenterX
	dy := y - c.CenterY
	return dx*dx+dy*dy <= c.Radius*c.Radius
}

// Marker is the visual instance bound to one connection or floorplan pin.
type Marker struct {
	ID   tour.ID
	Kind MarkerKind

	// SceneID is the owning scene for sphere markers and the pinned scene
	// for floorplan pins.
	SceneID tour.ID

	// Position is the angular position of sphere markers.
	Position LonLat
	// Legacy is set when Position was converted from stored pixels.
	Legacy bool

	// PinX and PinY are the normalized floorplan position of pins.
	PinX, PinY float64

	TargetSceneID tour.ID // transitions only
	Name          *string
	FilePath      string // closeups only
	IconIndex     int    // closeups only

	// HitShape overrides the default circular hit area. Closeups use a
	// square matching their badge.
	HitShape HitShape

	// Visible is false while a sphere marker is behind the camera or under
	// the floorplan overlay. See Registry.Cull.
	Visible  bool
	Dragging bool
}

// markerFromConnection builds a sphere marker for a connection stored in
// sceneID. Legacy pixel positions are converted through cam.
func markerFromConnection(sceneID tour.ID, conn tour.Connection, cam *Camera) *Marker {
	ll, legacy := ResolvePosition(cam, conn.Position)
	m := &Marker{
		ID:        conn.ID,
		SceneID:   sceneID,
		Position:  ll,
		Legacy:    legacy,
		Name:      conn.Name,
		IconIndex: conn.IconIndex,
		Visible:   true,
	}
	if conn.Type == tour.Closeup {
		m.Kind = MarkerCloseup
		m.HitShape = HitRect{X: -CloseupHitHalf, Y: -CloseupHitHalf, Width: 2 * CloseupHitHalf, Height: 2 * CloseupHitHalf}
		if conn.FilePath != nil {
			m.FilePath = *conn.FilePath
		}
	} else {
		m.Kind = MarkerTransition
		if conn.TargetSceneID != nil {
			m.TargetSceneID = *conn.TargetSceneID
		}
	}
	return m
}

func markerFromPin(pin tour.FloorplanMarker) *Marker {
	return &Marker{
		ID:      pin.ID,
		Kind:    MarkerFloorplanPin,
		SceneID: pin.SceneID,
		PinX:    pin.X,
		PinY:    pin.Y,
		Visible: true,
	}
}

// Label returns the tooltip text. Unnamed transitions show the target
// scene's name; pins show the pinned scene's name.
func (m *Marker) Label(lookup func(tour.ID) *tour.Scene) string {
	if m.Kind == MarkerFloorplanPin {
		if lookup != nil {
			if s := lookup(m.SceneID); s != nil {
				return s.Name
			}
		}
		return ""
	}
	conn := tour.Connection{Name: m.Name, Type: tour.Transition}
	if m.Kind == MarkerCloseup {
		conn.Type = tour.Closeup
	} else {
		target := m.TargetSceneID
		conn.TargetSceneID = &target
	}
	return conn.DisplayName(lookup)
}

// screenPos returns where the marker's anchor is drawn. ok is false for
// sphere markers behind the camera. overlay is the floorplan rectangle.
func (m *Marker) screenPos(cam *Camera, overlay Rect) (x, y float64, ok bool) {
	if m.Kind == MarkerFloorplanPin {
		return overlay.X + m.PinX*overlay.Width, overlay.Y + m.PinY*overlay.Height, true
	}
	return cam.WorldToScreen(MarkerWorldPosition(m.Position))
}

// hit reports whether screen point (x, y) falls on the marker.
func (m *Marker) hit(cam *Camera, overlay Rect, x, y float64) bool {
	if !m.Visible {
		return false
	}
	ax, ay, ok := m.screenPos(cam, overlay)
	if !ok {
		return false
	}
	if m.HitShape != nil {
		return m.HitShape.Contains(x-ax, y-ay)
	}
	r := MarkerHitRadius
	if m.Kind == MarkerFloorplanPin {
		r = PinHitRadius
	}
	return HitCircle{CenterX: ax, CenterY: ay, Radius: r}.Contains(x, y)
}
