package tour

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ConnectionType tags the two connection variants.
type ConnectionType string

const (
	// Transition connections navigate to another scene.
	Transition ConnectionType = "Transition"
	// Closeup connections open a detail image.
	Closeup ConnectionType = "Closeup"
)

// Closeup icon indices.
const (
	MinIconIndex = 1
	MaxIconIndex = 3
)

// Default camera orientation used when a scene stores no initial view.
const (
	DefaultLon = 0.0
	DefaultLat = 0.0
	DefaultFOV = 75.0
)

var (
	// ErrInvalidConnection is returned by Connection.Validate.
	ErrInvalidConnection = errors.New("tour: invalid connection")
	// ErrSceneNotFound is returned when a scene id is not in the cache.
	ErrSceneNotFound = errors.New("tour: scene not found")
	// ErrConnectionNotFound is returned when a connection id is not in the cache.
	ErrConnectionNotFound = errors.New("tour: connection not found")
)

// Connection is a hotspot placed inside a scene: either a Transition to
// another scene or a Closeup that opens a detail image.
//
// Position holds longitude/latitude in degrees. Records written by old
// editors may instead hold canvas pixel coordinates; those fall outside the
// angular range and are converted by the marker layer when displayed.
type Connection struct {
	ID            ID             `json:"id"`
	Type          ConnectionType `json:"connection_type"`
	Position      [2]float64     `json:"position"`
	TargetSceneID *ID            `json:"target_scene_id"`
	Name          *string        `json:"name"`
	FilePath      *string        `json:"file_path"`
	IconIndex     int            `json:"icon_index"`
}

// UnmarshalJSON fills in the variant tag for legacy rows that carry a target
// scene but no connection_type.
func (c *Connection) UnmarshalJSON(data []byte) error {
	type plain Connection
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Connection(p)
	if c.Type == "" {
		if c.TargetSceneID != nil {
			c.Type = Transition
		} else if c.FilePath != nil {
			c.Type = Closeup
		}
	}
	if c.Type == Closeup && c.IconIndex == 0 {
		c.IconIndex = MinIconIndex
	}
	return nil
}

// Validate enforces that exactly one of {target scene present, type Closeup}
// holds, and that closeups carry a file and a valid icon.
func (c Connection) Validate() error {
	switch c.Type {
	case Transition:
		if c.TargetSceneID == nil {
			return fmt.Errorf("%w: transition %d has no target scene", ErrInvalidConnection, c.ID)
		}
	case Closeup:
		if c.TargetSceneID != nil {
			return fmt.Errorf("%w: closeup %d has a target scene", ErrInvalidConnection, c.ID)
		}
		if c.FilePath == nil || *c.FilePath == "" {
			return fmt.Errorf("%w: closeup %d has no file", ErrInvalidConnection, c.ID)
		}
		if c.IconIndex < MinIconIndex || c.IconIndex > MaxIconIndex {
			return fmt.Errorf("%w: closeup %d icon %d out of range", ErrInvalidConnection, c.ID, c.IconIndex)
		}
	default:
		return fmt.Errorf("%w: connection %d has type %q", ErrInvalidConnection, c.ID, c.Type)
	}
	return nil
}

// InitialView is the camera orientation a scene opens with. Nil fields fall
// back to the defaults.
type InitialView struct {
	Lon *float64
	Lat *float64
	FOV *float64
}

// Resolved returns the view with defaults applied.
func (v InitialView) Resolved() (lon, lat, fov float64) {
	lon, lat, fov = DefaultLon, DefaultLat, DefaultFOV
	if v.Lon != nil {
		lon = *v.Lon
	}
	if v.Lat != nil {
		lat = *v.Lat
	}
	if v.FOV != nil {
		fov = *v.FOV
	}
	return lon, lat, fov
}

// Scene is one panorama and the connections placed in it.
type Scene struct {
	ID             ID
	Name           string
	FilePath       string
	ThumbnailPath  string
	InitialView    InitialView
	NorthDirection *int
	Connections    []Connection
	CreatedAt      string
	ModifiedAt     string
}

type wireScene struct {
	ID            ID           `json:"id"`
	Name          string       `json:"name"`
	FilePath      string       `json:"file_path"`
	ThumbnailPath string       `json:"thumbnail_path,omitempty"`
	InitialViewX  *float64     `json:"initial_view_x"`
	InitialViewY  *float64     `json:"initial_view_y"`
	InitialFOV    *float64     `json:"initial_fov"`
	NorthDir      *float64     `json:"north_dir"`
	Connections   []Connection `json:"connections"`
	CreatedAt     string       `json:"created_at,omitempty"`
	ModifiedAt    string       `json:"modified_at,omitempty"`
}

// UnmarshalJSON decodes the snapshot form of a scene.
func (s *Scene) UnmarshalJSON(data []byte) error {
	var w wireScene
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Scene{
		ID:            w.ID,
		Name:          w.Name,
		FilePath:      w.FilePath,
		ThumbnailPath: w.ThumbnailPath,
		InitialView:   InitialView{Lon: w.InitialViewX, Lat: w.InitialViewY, FOV: w.InitialFOV},
		Connections:   w.Connections,
		CreatedAt:     w.CreatedAt,
		ModifiedAt:    w.ModifiedAt,
	}
	if w.NorthDir != nil {
		d := int(*w.NorthDir)
		s.NorthDirection = &d
	}
	if s.Connections == nil {
		s.Connections = []Connection{}
	}
	return nil
}

// MarshalJSON encodes the snapshot form of a scene.
func (s Scene) MarshalJSON() ([]byte, error) {
	w := wireScene{
		ID:            s.ID,
		Name:          s.Name,
		FilePath:      s.FilePath,
		ThumbnailPath: s.ThumbnailPath,
		InitialViewX:  s.InitialView.Lon,
		InitialViewY:  s.InitialView.Lat,
		InitialFOV:    s.InitialView.FOV,
		Connections:   s.Connections,
		CreatedAt:     s.CreatedAt,
		ModifiedAt:    s.ModifiedAt,
	}
	if s.NorthDirection != nil {
		d := float64(*s.NorthDirection)
		w.NorthDir = &d
	}
	return json.Marshal(w)
}

// Connection returns a pointer to the connection with the given id, or nil.
func (s *Scene) Connection(id ID) *Connection {
	for i := range s.Connections {
		if s.Connections[i].ID == id {
			return &s.Connections[i]
		}
	}
	return nil
}

// DisplayName returns the connection's label: its own name when set,
// otherwise the target scene's name resolved through lookup.
func (c Connection) DisplayName(lookup func(ID) *Scene) string {
	if c.Name != nil && strings.TrimSpace(*c.Name) != "" {
		return *c.Name
	}
	if c.TargetSceneID != nil && lookup != nil {
		if s := lookup(*c.TargetSceneID); s != nil {
			return s.Name
		}
	}
	if c.Type == Closeup {
		return "Closeup"
	}
	return ""
}

// FloorplanMarker pins a scene onto the floorplan image at a normalized
// position (0..1 on both axes).
type FloorplanMarker struct {
	ID      ID      `json:"id"`
	SceneID ID      `json:"scene_id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// UnmarshalJSON accepts both {x, y} and the exported {position: [x, y]} form.
func (m *FloorplanMarker) UnmarshalJSON(data []byte) error {
	var w struct {
		ID       ID          `json:"id"`
		MarkerID *ID         `json:"marker_id"`
		SceneID  ID          `json:"scene_id"`
		X        *float64    `json:"x"`
		Y        *float64    `json:"y"`
		Position *[2]float64 `json:"position"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.ID, m.SceneID = w.ID, w.SceneID
	if w.MarkerID != nil {
		m.ID = *w.MarkerID
	}
	switch {
	case w.X != nil && w.Y != nil:
		m.X, m.Y = *w.X, *w.Y
	case w.Position != nil:
		m.X, m.Y = w.Position[0], w.Position[1]
	}
	return nil
}

// Floorplan is the optional per-tour overview image.
type Floorplan struct {
	ID       ID                `json:"id"`
	FilePath string            `json:"file_path"`
	Markers  []FloorplanMarker `json:"markers"`
}

// SortMode selects the scene list ordering.
type SortMode string

// SortDirection selects ascending or descending order.
type SortDirection string

const (
	SortAlphabetical SortMode = "alphabetical"
	SortCreatedAt    SortMode = "created_at"
	SortModifiedAt   SortMode = "modified_at"

	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Sort is the persisted per-tour scene ordering.
type Sort struct {
	Mode      SortMode      `json:"mode"`
	Direction SortDirection `json:"direction"`
}

// Tour is the root of the cached tree.
type Tour struct {
	ID             ID
	Name           string
	InitialSceneID ID
	Scenes         []Scene
	Floorplan      *Floorplan
	Sort           Sort
}

type wireTour struct {
	ID               ID                `json:"id"`
	Name             string            `json:"name"`
	InitialSceneID   *ID               `json:"initial_scene_id"`
	Scenes           []Scene           `json:"scenes"`
	HasFloorplan     bool              `json:"has_floorplan"`
	Floorplan        *Floorplan        `json:"floorplan"`
	FloorplanMarkers []FloorplanMarker `json:"floorplan_markers"`
	SortMode         SortMode          `json:"scene_sort_mode,omitempty"`
	SortDirection    SortDirection     `json:"scene_sort_direction,omitempty"`
}

// UnmarshalJSON decodes a tour snapshot (tour_data payload or export file).
// Floorplan markers sent at top level are attached to the floorplan.
func (t *Tour) UnmarshalJSON(data []byte) error {
	var w wireTour
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = Tour{
		ID:        w.ID,
		Name:      w.Name,
		Scenes:    w.Scenes,
		Floorplan: w.Floorplan,
		Sort:      Sort{Mode: w.SortMode, Direction: w.SortDirection},
	}
	if w.InitialSceneID != nil {
		t.InitialSceneID = *w.InitialSceneID
	}
	if t.Floorplan != nil && len(w.FloorplanMarkers) > 0 {
		t.Floorplan.Markers = append(t.Floorplan.Markers, w.FloorplanMarkers...)
	}
	if t.Scenes == nil {
		t.Scenes = []Scene{}
	}
	t.Sort = t.Sort.normalized()
	return nil
}

// MarshalJSON encodes the snapshot form of a tour.
func (t Tour) MarshalJSON() ([]byte, error) {
	w := wireTour{
		ID:            t.ID,
		Name:          t.Name,
		Scenes:        t.Scenes,
		HasFloorplan:  t.Floorplan != nil,
		Floorplan:     t.Floorplan,
		SortMode:      t.Sort.Mode,
		SortDirection: t.Sort.Direction,
	}
	if t.InitialSceneID != 0 {
		id := t.InitialSceneID
		w.InitialSceneID = &id
	}
	return json.Marshal(w)
}
