package vista

import (
	"math/rand"
	"testing"

	"github.com/rs/zerolog"

	"github.com/phanxgames/vista/tour"
)

func transitionTo(id, target tour.ID, lon, lat float64) tour.Connection {
	return tour.Connection{ID: id, Type: tour.Transition, TargetSceneID: &target, Position: [2]float64{lon, lat}}
}

func closeupAt(id tour.ID, file string, lon, lat float64) tour.Connection {
	return tour.Connection{ID: id, Type: tour.Closeup, FilePath: &file, IconIndex: 2, Position: [2]float64{lon, lat}}
}

func loadedRegistry(t *testing.T) (*Registry, *Camera) {
	t.Helper()
	cam := testCamera()
	r := NewRegistry(zerolog.Nop())
	r.LoadScene(&tour.Scene{
		ID: 1,
		Connections: []tour.Connection{
			transitionTo(10, 2, 0, 0),
			closeupAt(11, "closeups/a.jpg", 30, 0),
			transitionTo(12, 3, 180, 0),
		},
	}, cam)
	return r, cam
}

func assertUniqueIDs(t *testing.T, r *Registry) {
	t.Helper()
	seen := make(map[tour.ID]bool)
	for _, m := range r.Markers() {
		if seen[m.ID] {
			t.Fatalf("duplicate marker id %d", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestRegistryLoadScene(t *testing.T) {
	r, _ := loadedRegistry(t)
	if r.SceneID() != 1 || r.Len() != 3 {
		t.Fatalf("scene %d with %d markers", r.SceneID(), r.Len())
	}
	if m := r.Get(11); m.Kind != MarkerCloseup || m.FilePath != "closeups/a.jpg" || m.IconIndex != 2 {
		t.Errorf("closeup marker = %+v", m)
	}
	if m := r.Get(10); m.Kind != MarkerTransition || m.TargetSceneID != 2 {
		t.Errorf("transition marker = %+v", m)
	}

	r.LoadScene(nil, nil)
	if r.Len() != 0 || r.SceneID() != 0 {
		t.Error("nil scene should empty the registry")
	}
}

func TestRegistryConvertsLegacyPositions(t *testing.T) {
	cam := testCamera()
	r := NewRegistry(zerolog.Nop())
	r.LoadScene(&tour.Scene{ID: 1, Connections: []tour.Connection{
		transitionTo(10, 2, 640, 360),
		transitionTo(11, 2, 45, 10),
	}}, cam)

	legacy := r.Get(10)
	if !legacy.Legacy || !approxEqual(legacy.Position.Lon, 0, 1e-6) || !approxEqual(legacy.Position.Lat, 0, 1e-6) {
		t.Errorf("legacy marker = %+v", legacy)
	}
	if m := r.Get(11); m.Legacy || m.Position != (LonLat{45, 10}) {
		t.Errorf("angular marker = %+v", m)
	}
}

func TestRegistryToleratesStringIDs(t *testing.T) {
	r, _ := loadedRegistry(t)
	if r.Get("10") == nil || r.Get(int64(10)) == nil || r.Get(10.0) == nil {
		t.Error("numeric and string ids should compare equal")
	}
	if r.Get("ten") != nil || r.Get(10.5) != nil || r.Get(nil) != nil {
		t.Error("non-numeric ids should not match")
	}
	if !r.Remove("11") || r.Get(11) != nil {
		t.Error("remove by string id failed")
	}
	if r.Remove("11") {
		t.Error("second remove should report false")
	}
}

func TestRegistryAddReplacesSameID(t *testing.T) {
	r, cam := loadedRegistry(t)
	r.AddConnection(transitionTo(10, 3, 5, 5), cam)
	if r.Len() != 3 {
		t.Fatalf("len = %d, want 3", r.Len())
	}
	if m := r.Get(10); m.TargetSceneID != 3 || m.Position != (LonLat{5, 5}) {
		t.Errorf("marker = %+v", m)
	}
}

func TestRegistryRewrite(t *testing.T) {
	r, cam := loadedRegistry(t)
	r.AddConnection(transitionTo(-1000, 2, 10, 5), cam)

	if !r.Rewrite(-1000, "55") {
		t.Fatal("rewrite failed")
	}
	if r.Get(-1000) != nil || r.Get(55) == nil {
		t.Error("marker not found under its new id")
	}
	if r.Rewrite(-1000, 56) {
		t.Error("rewriting a missing id should report false")
	}

	// Rewriting onto an id that is already present drops the old marker.
	r.AddConnection(transitionTo(-1001, 2, 10, 5), cam)
	if !r.Rewrite(-1001, 55) {
		t.Fatal("rewrite onto existing id failed")
	}
	if r.Get(-1001) != nil || r.Len() != 4 {
		t.Errorf("len = %d after collapsing a duplicate", r.Len())
	}
	assertUniqueIDs(t, r)
}

func TestRegistryUniqueUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r, cam := loadedRegistry(t)
	for i := 0; i < 2000; i++ {
		id := tour.ID(rng.Intn(20) - 10)
		switch rng.Intn(3) {
		case 0:
			r.AddConnection(transitionTo(id, 2, float64(rng.Intn(360)-180), 0), cam)
		case 1:
			r.Remove(id)
		case 2:
			r.Rewrite(id, tour.ID(rng.Intn(20)-10))
		}
		assertUniqueIDs(t, r)
	}
}

func TestRegistryHitTest(t *testing.T) {
	r, cam := loadedRegistry(t)

	if m := r.HitTest(cam, Rect{}, 640, 360); m == nil || m.ID != 10 {
		t.Errorf("center hit = %+v, want marker 10", m)
	}
	if m := r.HitTest(cam, Rect{}, 640+MarkerHitRadius-1, 360); m == nil || m.ID != 10 {
		t.Error("hit radius should include points near the marker")
	}
	if m := r.HitTest(cam, Rect{}, 100, 100); m != nil {
		t.Errorf("empty sky hit %+v", m)
	}

	// Marker 12 sits behind the camera and can never be hit.
	cam.SetOrientation(180, 0)
	if m := r.HitTest(cam, Rect{}, 640, 360); m == nil || m.ID != 12 {
		t.Errorf("after turning around, center hit = %+v", m)
	}

	r.Get(12).Visible = false
	if m := r.HitTest(cam, Rect{}, 640, 360); m != nil {
		t.Error("invisible markers should not be hit")
	}
}

func TestRegistryHitTestCustomShape(t *testing.T) {
	r, cam := loadedRegistry(t)
	r.Get(10).HitShape = HitRect{X: 0, Y: 0, Width: 100, Height: 10}
	if r.HitTest(cam, Rect{}, 630, 360) != nil {
		t.Error("point left of a custom rect should miss")
	}
	if m := r.HitTest(cam, Rect{}, 700, 365); m == nil || m.ID != 10 {
		t.Error("point inside the custom rect should hit")
	}
}

func TestRegistryCloseupHitsSquareBadge(t *testing.T) {
	r, cam := loadedRegistry(t)
	cx, cy, ok := cam.WorldToScreen(MarkerWorldPosition(LonLat{Lon: 30}))
	if !ok {
		t.Fatal("closeup should be in front of the camera")
	}
	corner := CloseupHitHalf - 1
	if m := r.HitTest(cam, Rect{}, cx+corner, cy+corner); m == nil || m.ID != 11 {
		t.Errorf("badge corner hit = %+v, want closeup 11", m)
	}
	if r.HitTest(cam, Rect{}, cx+CloseupHitHalf+1, cy) != nil {
		t.Error("point right of the badge should miss")
	}
	// The same offset misses a round transition marker.
	if m := r.HitTest(cam, Rect{}, 640+corner, 360+corner); m != nil {
		t.Errorf("transition corner hit = %+v, want nil", m)
	}
}

func TestRegistryCull(t *testing.T) {
	r, cam := loadedRegistry(t)
	overlay := Rect{X: 600, Y: 300, Width: 100, Height: 100}

	if n := r.Cull(cam, overlay); n != 1 {
		t.Errorf("visible = %d, want 1", n)
	}
	if r.Get(10).Visible {
		t.Error("marker under the overlay should be hidden")
	}
	if r.Get(12).Visible {
		t.Error("marker behind the camera should be hidden")
	}
	if !r.Get(11).Visible {
		t.Error("closeup in view should stay visible")
	}
	if m := r.HitTest(cam, Rect{}, 640, 360); m != nil {
		t.Errorf("hidden marker hit: %+v", m)
	}

	r.Get(10).Dragging = true
	r.Cull(cam, overlay)
	if !r.Get(10).Visible {
		t.Error("a dragged marker should stay visible")
	}
	r.Get(10).Dragging = false

	r.Cull(cam, Rect{})
	if m := r.HitTest(cam, Rect{}, 640, 360); m == nil || m.ID != 10 {
		t.Errorf("after hiding the overlay, center hit = %+v", m)
	}
}

func TestRegistryPins(t *testing.T) {
	r, cam := loadedRegistry(t)
	fp := &tour.Floorplan{ID: 4, Markers: []tour.FloorplanMarker{
		{ID: 8, SceneID: 2, X: 0.5, Y: 0.5},
		{ID: 9, SceneID: 3, X: 0, Y: 0},
	}}
	r.LoadFloorplan(fp)
	if len(r.Pins()) != 2 || r.Pin("8").SceneID != 2 {
		t.Fatalf("pins = %v", r.Pins())
	}

	overlay := Rect{X: 600, Y: 300, Width: 100, Height: 100}
	if m := r.HitTest(cam, overlay, 650, 350); m == nil || m.Kind != MarkerFloorplanPin || m.ID != 8 {
		t.Errorf("pin hit = %+v", m)
	}
	if m := r.HitTest(cam, overlay, 640, 360); m != nil {
		t.Errorf("overlay should shadow sphere markers, got %+v", m)
	}
	if m := r.HitTest(cam, Rect{}, 640, 360); m == nil || m.ID != 10 {
		t.Error("hidden overlay should not shadow sphere markers")
	}

	r.LoadFloorplan(nil)
	if len(r.Pins()) != 0 {
		t.Error("nil floorplan should clear the pins")
	}
	r.LoadFloorplan(fp)
	r.Clear()
	if r.Len() != 0 || len(r.Pins()) != 0 {
		t.Error("Clear left markers behind")
	}
}

func TestMarkerLabel(t *testing.T) {
	scenes := map[tour.ID]*tour.Scene{2: {ID: 2, Name: "Hall"}}
	lookup := func(id tour.ID) *tour.Scene { return scenes[id] }

	name := "Exit"
	tests := []struct {
		m    Marker
		want string
	}{
		{Marker{Kind: MarkerTransition, TargetSceneID: 2}, "Hall"},
		{Marker{Kind: MarkerTransition, TargetSceneID: 2, Name: &name}, "Exit"},
		{Marker{Kind: MarkerTransition, TargetSceneID: 9}, ""},
		{Marker{Kind: MarkerCloseup}, "Closeup"},
		{Marker{Kind: MarkerFloorplanPin, SceneID: 2}, "Hall"},
	}
	for _, tt := range tests {
		if got := tt.m.Label(lookup); got != tt.want {
			t.Errorf("%v label = %q, want %q", tt.m.Kind, got, tt.want)
		}
	}
}
