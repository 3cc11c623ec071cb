package tour

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Cache is the in-memory mirror of the authoritative tour graph. All apply
// methods are idempotent: replaying a push leaves the same state as applying
// it once. A Cache is not safe for concurrent use.
type Cache struct {
	tour   Tour
	loaded bool
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{tour: Tour{Scenes: []Scene{}, Sort: defaultSort()}}
}

// Load replaces the cached tree with a full snapshot. Connections that fail
// Validate are dropped; the count is returned.
func (c *Cache) Load(t Tour) (dropped int) {
	t.Sort = t.Sort.normalized()
	scenes := make([]Scene, len(t.Scenes))
	for i, s := range t.Scenes {
		var n int
		s.Connections, n = validConnections(s.Connections)
		dropped += n
		scenes[i] = s
	}
	t.Scenes = scenes
	c.tour = t
	c.loaded = true
	return dropped
}

// Loaded reports whether a snapshot has been received.
func (c *Cache) Loaded() bool { return c.loaded }

// Tour returns the cached tour. The returned value shares slices with the
// cache and MUST NOT be mutated.
func (c *Cache) Tour() Tour { return c.tour }

// TourID returns the cached tour id.
func (c *Cache) TourID() ID { return c.tour.ID }

// InitialSceneID returns the tour's initial scene.
func (c *Cache) InitialSceneID() ID { return c.tour.InitialSceneID }

// SceneCount returns the number of scenes.
func (c *Cache) SceneCount() int { return len(c.tour.Scenes) }

// Scene returns the scene with the given id, or nil.
func (c *Cache) Scene(id ID) *Scene {
	for i := range c.tour.Scenes {
		if c.tour.Scenes[i].ID == id {
			return &c.tour.Scenes[i]
		}
	}
	return nil
}

// Scenes returns scenes in stored order. The slice MUST NOT be mutated.
func (c *Cache) Scenes() []Scene { return c.tour.Scenes }

// Floorplan returns the floorplan, or nil.
func (c *Cache) Floorplan() *Floorplan { return c.tour.Floorplan }

// AddScene inserts a scene, replacing any existing scene with the same id.
// Invalid connections are dropped and counted as in Load.
func (c *Cache) AddScene(s Scene) (dropped int) {
	s.Connections, dropped = validConnections(s.Connections)
	if existing := c.Scene(s.ID); existing != nil {
		*existing = s
		return dropped
	}
	c.tour.Scenes = append(c.tour.Scenes, s)
	if c.tour.InitialSceneID == 0 {
		c.tour.InitialSceneID = s.ID
	}
	return dropped
}

// UpdateScene replaces a scene's metadata. Connections from the update are
// used only when the update carries them; otherwise the cached list is kept.
// Invalid connections in the update are dropped and counted.
func (c *Cache) UpdateScene(s Scene) (dropped int, err error) {
	existing := c.Scene(s.ID)
	if existing == nil {
		return 0, fmt.Errorf("%w: %d", ErrSceneNotFound, s.ID)
	}
	conns := existing.Connections
	if len(s.Connections) > 0 {
		conns, dropped = validConnections(s.Connections)
	}
	*existing = s
	existing.Connections = conns
	return dropped, nil
}

// RenameScene sets a scene's display name.
func (c *Cache) RenameScene(id ID, name string) error {
	s := c.Scene(id)
	if s == nil {
		return fmt.Errorf("%w: %d", ErrSceneNotFound, id)
	}
	s.Name = name
	return nil
}

// SetInitialView stores a scene's opening orientation.
func (c *Cache) SetInitialView(id ID, lon, lat, fov float64) error {
	s := c.Scene(id)
	if s == nil {
		return fmt.Errorf("%w: %d", ErrSceneNotFound, id)
	}
	s.InitialView = InitialView{Lon: &lon, Lat: &lat, FOV: &fov}
	return nil
}

// SetNorthDirection stores a scene's north offset in whole degrees.
func (c *Cache) SetNorthDirection(id ID, direction int) error {
	s := c.Scene(id)
	if s == nil {
		return fmt.Errorf("%w: %d", ErrSceneNotFound, id)
	}
	s.NorthDirection = &direction
	return nil
}

// SetInitialScene marks the scene the tour opens with.
func (c *Cache) SetInitialScene(id ID) error {
	if c.Scene(id) == nil {
		return fmt.Errorf("%w: %d", ErrSceneNotFound, id)
	}
	c.tour.InitialSceneID = id
	return nil
}

// DeleteScene removes a scene. Connections inside it go with it, transitions
// elsewhere that targeted it are dropped, its floorplan marker is removed,
// and if it was the initial scene the first remaining scene is promoted.
// Deleting an absent scene is a no-op and reports false.
func (c *Cache) DeleteScene(id ID) bool {
	idx := slices.IndexFunc(c.tour.Scenes, func(s Scene) bool { return s.ID == id })
	if idx < 0 {
		return false
	}
	c.tour.Scenes = slices.Delete(c.tour.Scenes, idx, idx+1)

	for i := range c.tour.Scenes {
		s := &c.tour.Scenes[i]
		s.Connections = slices.DeleteFunc(s.Connections, func(conn Connection) bool {
			return conn.TargetSceneID != nil && *conn.TargetSceneID == id
		})
	}
	if fp := c.tour.Floorplan; fp != nil {
		fp.Markers = slices.DeleteFunc(fp.Markers, func(m FloorplanMarker) bool { return m.SceneID == id })
	}
	if c.tour.InitialSceneID == id {
		c.tour.InitialSceneID = 0
		if len(c.tour.Scenes) > 0 {
			c.tour.InitialSceneID = c.tour.Scenes[0].ID
		}
	}
	return true
}

// AddConnection appends a connection to a scene. A connection whose id is
// already present in that scene replaces the existing one.
func (c *Cache) AddConnection(sceneID ID, conn Connection) error {
	if err := conn.Validate(); err != nil {
		return err
	}
	s := c.Scene(sceneID)
	if s == nil {
		return fmt.Errorf("%w: %d", ErrSceneNotFound, sceneID)
	}
	if existing := s.Connection(conn.ID); existing != nil {
		*existing = conn
		return nil
	}
	s.Connections = append(s.Connections, conn)
	return nil
}

// Connection finds a connection anywhere in the tour along with the id of
// the scene that owns it.
func (c *Cache) Connection(id ID) (*Connection, ID) {
	for i := range c.tour.Scenes {
		if conn := c.tour.Scenes[i].Connection(id); conn != nil {
			return conn, c.tour.Scenes[i].ID
		}
	}
	return nil, 0
}

// UpdateConnection replaces a connection in place after validating it.
func (c *Cache) UpdateConnection(conn Connection) error {
	if err := conn.Validate(); err != nil {
		return err
	}
	existing, _ := c.Connection(conn.ID)
	if existing == nil {
		return fmt.Errorf("%w: %d", ErrConnectionNotFound, conn.ID)
	}
	*existing = conn
	return nil
}

// RemoveConnection deletes a connection from whichever scene holds it.
// Removing an absent connection is a no-op and reports false.
func (c *Cache) RemoveConnection(id ID) bool {
	for i := range c.tour.Scenes {
		s := &c.tour.Scenes[i]
		n := len(s.Connections)
		s.Connections = slices.DeleteFunc(s.Connections, func(conn Connection) bool { return conn.ID == id })
		if len(s.Connections) != n {
			return true
		}
	}
	return false
}

// RewriteConnectionID replaces a tentative id with the server-assigned one.
// It reports false when no connection carries oldID.
func (c *Cache) RewriteConnectionID(oldID, newID ID) bool {
	conn, _ := c.Connection(oldID)
	if conn == nil {
		return false
	}
	conn.ID = newID
	return true
}

// SetFloorplan installs (or replaces) the tour floorplan.
func (c *Cache) SetFloorplan(fp Floorplan) {
	if fp.Markers == nil {
		fp.Markers = []FloorplanMarker{}
	}
	if c.tour.Floorplan != nil && c.tour.Floorplan.ID == fp.ID && len(fp.Markers) == 0 {
		fp.Markers = c.tour.Floorplan.Markers
	}
	c.tour.Floorplan = &fp
}

// DeleteFloorplan removes the floorplan if its id matches. It reports false
// when there is nothing to remove.
func (c *Cache) DeleteFloorplan(id ID) bool {
	if c.tour.Floorplan == nil || (id != 0 && c.tour.Floorplan.ID != id) {
		return false
	}
	c.tour.Floorplan = nil
	return true
}

// UpsertFloorplanMarker places a scene on the floorplan. A scene has at most
// one marker: a marker for a scene that already has one replaces it.
func (c *Cache) UpsertFloorplanMarker(m FloorplanMarker) bool {
	fp := c.tour.Floorplan
	if fp == nil {
		return false
	}
	m.X, m.Y = clamp01(m.X), clamp01(m.Y)
	for i := range fp.Markers {
		if fp.Markers[i].SceneID == m.SceneID || (m.ID != 0 && fp.Markers[i].ID == m.ID) {
			if m.SceneID == 0 {
				m.SceneID = fp.Markers[i].SceneID
			}
			if m.ID == 0 {
				m.ID = fp.Markers[i].ID
			}
			fp.Markers[i] = m
			fp.Markers = dedupeMarkers(fp.Markers, i)
			return true
		}
	}
	fp.Markers = append(fp.Markers, m)
	return true
}

// FloorplanMarker returns the marker with the given id, or nil.
func (c *Cache) FloorplanMarker(id ID) *FloorplanMarker {
	if c.tour.Floorplan == nil {
		return nil
	}
	for i := range c.tour.Floorplan.Markers {
		if c.tour.Floorplan.Markers[i].ID == id {
			return &c.tour.Floorplan.Markers[i]
		}
	}
	return nil
}

// DeleteFloorplanMarker removes a marker by id.
func (c *Cache) DeleteFloorplanMarker(id ID) bool {
	fp := c.tour.Floorplan
	if fp == nil {
		return false
	}
	n := len(fp.Markers)
	fp.Markers = slices.DeleteFunc(fp.Markers, func(m FloorplanMarker) bool { return m.ID == id })
	return len(fp.Markers) != n
}

// SetSort stores the scene list ordering.
func (c *Cache) SetSort(s Sort) { c.tour.Sort = s.normalized() }

// Sort returns the scene list ordering.
func (c *Cache) Sort() Sort { return c.tour.Sort }

// SortedScenes returns a copy of the scenes ordered by the persisted sort
// setting. Stored order is left untouched.
func (c *Cache) SortedScenes() []Scene {
	out := slices.Clone(c.tour.Scenes)
	s := c.tour.Sort
	less := func(a, b Scene) bool {
		switch s.Mode {
		case SortCreatedAt:
			return a.CreatedAt < b.CreatedAt
		case SortModifiedAt:
			return a.ModifiedAt < b.ModifiedAt
		default:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if s.Direction == SortDesc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

// CheckInvariants reports the first connection that violates the variant
// rule, or a duplicate floorplan marker for one scene.
func (c *Cache) CheckInvariants() error {
	for _, s := range c.tour.Scenes {
		for _, conn := range s.Connections {
			if err := conn.Validate(); err != nil {
				return fmt.Errorf("scene %d: %w", s.ID, err)
			}
		}
	}
	if fp := c.tour.Floorplan; fp != nil {
		seen := make(map[ID]bool, len(fp.Markers))
		for _, m := range fp.Markers {
			if seen[m.SceneID] {
				return fmt.Errorf("tour: scene %d has more than one floorplan marker", m.SceneID)
			}
			seen[m.SceneID] = true
		}
	}
	return nil
}

// validConnections returns conns without the entries that fail Validate and
// how many were left out. conns itself is not modified.
func validConnections(conns []Connection) ([]Connection, int) {
	kept := make([]Connection, 0, len(conns))
	for _, conn := range conns {
		if conn.Validate() == nil {
			kept = append(kept, conn)
		}
	}
	return kept, len(conns) - len(kept)
}

func defaultSort() Sort { return Sort{Mode: SortAlphabetical, Direction: SortAsc} }

func (s Sort) normalized() Sort {
	switch s.Mode {
	case SortAlphabetical, SortCreatedAt, SortModifiedAt:
	default:
		s.Mode = SortAlphabetical
	}
	if s.Direction != SortDesc {
		s.Direction = SortAsc
	}
	return s
}

// dedupeMarkers drops any other marker for the same scene as markers[keep].
func dedupeMarkers(markers []FloorplanMarker, keep int) []FloorplanMarker {
	k := markers[keep]
	out := markers[:0]
	for i, m := range markers {
		if i != keep && m.SceneID == k.SceneID {
			continue
		}
		out = append(out, m)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
