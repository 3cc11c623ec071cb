package vista

import (
	"slices"

	"github.com/rs/zerolog"

	"github.com/phanxgames/vista/tour"
)

// Registry is the live set of markers for the scene on screen plus the
// floorplan pins. Sphere markers are keyed by connection id and pins by
// floorplan marker id; within each set ids are unique.
type Registry struct {
	sceneID tour.ID
	markers []*Marker
	pins    []*Marker
	log     zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{log: log}
}

// SceneID returns the scene whose markers are loaded.
func (r *Registry) SceneID() tour.ID { return r.sceneID }

// LoadScene clears the sphere markers and instantiates one per connection of
// scene. cam resolves legacy pixel positions. A nil scene leaves the
// registry empty.
func (r *Registry) LoadScene(scene *tour.Scene, cam *Camera) {
	r.markers = r.markers[:0]
	r.sceneID = 0
	if scene == nil {
		return
	}
	r.sceneID = scene.ID
	legacy := 0
	for _, conn := range scene.Connections {
		m := markerFromConnection(scene.ID, conn, cam)
		if m.Legacy {
			legacy++
		}
		r.Add(m)
	}
	if legacy > 0 {
		r.log.Debug().Int64("scene_id", int64(scene.ID)).Int("legacy_positions", legacy).
			Msg("converted legacy pixel positions")
	}
}

// Add inserts a sphere marker. A marker with the same id is replaced in
// place.
func (r *Registry) Add(m *Marker) {
	if i := r.index(r.markers, m.ID); i >= 0 {
		r.markers[i] = m
		return
	}
	r.markers = append(r.markers, m)
}

// AddConnection builds and adds the marker for a connection of the loaded
// scene.
func (r *Registry) AddConnection(conn tour.Connection, cam *Camera) *Marker {
	m := markerFromConnection(r.sceneID, conn, cam)
	r.Add(m)
	return m
}

// Remove deletes the sphere marker whose id matches. Ids from the wire may
// be strings; any form tour.ParseID accepts is compared numerically.
func (r *Registry) Remove(id any) bool {
	key, ok := tour.ParseID(id)
	if !ok {
		return false
	}
	i := r.index(r.markers, key)
	if i < 0 {
		return false
	}
	r.markers = slices.Delete(r.markers, i, i+1)
	return true
}

// Rewrite replaces a marker's id. If newID is already present the marker
// under oldID is dropped instead, so ids stay unique.
func (r *Registry) Rewrite(oldID, newID any) bool {
	from, ok1 := tour.ParseID(oldID)
	to, ok2 := tour.ParseID(newID)
	if !ok1 || !ok2 {
		return false
	}
	i := r.index(r.markers, from)
	if i < 0 {
		return false
	}
	if from == to {
		return true
	}
	if r.index(r.markers, to) >= 0 {
		r.markers = slices.Delete(r.markers, i, i+1)
		return true
	}
	r.markers[i].ID = to
	return true
}

// Get returns the sphere marker with the given id, or nil.
func (r *Registry) Get(id any) *Marker {
	key, ok := tour.ParseID(id)
	if !ok {
		return nil
	}
	if i := r.index(r.markers, key); i >= 0 {
		return r.markers[i]
	}
	return nil
}

// Markers returns the sphere markers in insertion order. The slice MUST NOT
// be mutated.
func (r *Registry) Markers() []*Marker { return r.markers }

// Len returns the number of sphere markers.
func (r *Registry) Len() int { return len(r.markers) }

// LoadFloorplan replaces the pins with the markers of fp. A nil floorplan
// clears them.
func (r *Registry) LoadFloorplan(fp *tour.Floorplan) {
	r.pins = r.pins[:0]
	if fp == nil {
		return
	}
	for _, pin := range fp.Markers {
		m := markerFromPin(pin)
		if i := r.index(r.pins, m.ID); i >= 0 {
			r.pins[i] = m
			continue
		}
		r.pins = append(r.pins, m)
	}
}

// Pin returns the floorplan pin with the given id, or nil.
func (r *Registry) Pin(id any) *Marker {
	key, ok := tour.ParseID(id)
	if !ok {
		return nil
	}
	if i := r.index(r.pins, key); i >= 0 {
		return r.pins[i]
	}
	return nil
}

// Pins returns the floorplan pins. The slice MUST NOT be mutated.
func (r *Registry) Pins() []*Marker { return r.pins }

// HitTest returns the topmost marker under screen point (x, y). Floorplan
// pins are tested first when the overlay is shown (non-empty overlay), then
// sphere markers in reverse draw order.
func (r *Registry) HitTest(cam *Camera, overlay Rect, x, y float64) *Marker {
	if overlay.Width > 0 && overlay.Height > 0 {
		for i := len(r.pins) - 1; i >= 0; i-- {
			if r.pins[i].hit(cam, overlay, x, y) {
				return r.pins[i]
			}
		}
		if overlay.Contains(x, y) {
			return nil
		}
	}
	for i := len(r.markers) - 1; i >= 0; i-- {
		if r.markers[i].hit(cam, overlay, x, y) {
			return r.markers[i]
		}
	}
	return nil
}

// Cull refreshes Visible on the sphere markers: a marker is hidden while it
// is behind the camera or its anchor lies under the floorplan overlay. A
// dragged marker always stays visible. Pins are not affected.
func (r *Registry) Cull(cam *Camera, overlay Rect) (visible int) {
	shown := overlay.Width > 0 && overlay.Height > 0
	for _, m := range r.markers {
		x, y, ok := m.screenPos(cam, overlay)
		m.Visible = m.Dragging || (ok && !(shown && overlay.Contains(x, y)))
		if m.Visible {
			visible++
		}
	}
	return visible
}

// Clear removes every marker and pin.
func (r *Registry) Clear() {
	r.sceneID = 0
	r.markers = r.markers[:0]
	r.pins = r.pins[:0]
}

func (r *Registry) index(list []*Marker, id tour.ID) int {
	for i, m := range list {
		if m.ID == id {
			return i
		}
	}
	return -1
}
