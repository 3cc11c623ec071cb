package tour

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func idPtr(v ID) *ID          { return &v }
func strPtr(s string) *string { return &s }

func sampleTour() Tour {
	return Tour{
		ID:             7,
		Name:           "Museum",
		InitialSceneID: 1,
		Scenes: []Scene{
			{ID: 1, Name: "Lobby", CreatedAt: "2024-01-02", ModifiedAt: "2024-03-01", Connections: []Connection{
				{ID: 10, Type: Transition, Position: [2]float64{10, 5}, TargetSceneID: idPtr(2)},
				{ID: 11, Type: Closeup, Position: [2]float64{-20, 3}, FilePath: strPtr("closeups/a.jpg"), IconIndex: 2},
			}},
			{ID: 2, Name: "atrium", CreatedAt: "2024-01-01", ModifiedAt: "2024-03-05", Connections: []Connection{
				{ID: 20, Type: Transition, Position: [2]float64{100, 0}, TargetSceneID: idPtr(1)},
			}},
			{ID: 3, Name: "Cellar", CreatedAt: "2024-01-03", ModifiedAt: "2024-02-01", Connections: []Connection{
				{ID: 30, Type: Transition, Position: [2]float64{0, 0}, TargetSceneID: idPtr(2)},
			}},
		},
		Floorplan: &Floorplan{ID: 4, FilePath: "fp.png", Markers: []FloorplanMarker{
			{ID: 40, SceneID: 1, X: 0.2, Y: 0.3},
			{ID: 41, SceneID: 2, X: 0.5, Y: 0.5},
		}},
	}
}

func loadedCache(t *testing.T) *Cache {
	t.Helper()
	c := NewCache()
	c.Load(sampleTour())
	require.NoError(t, c.CheckInvariants())
	return c
}

func TestConnectionValidate(t *testing.T) {
	tests := []struct {
		name string
		conn Connection
		ok   bool
	}{
		{"transition with target", Connection{Type: Transition, TargetSceneID: idPtr(2)}, true},
		{"transition without target", Connection{Type: Transition}, false},
		{"closeup with file", Connection{Type: Closeup, FilePath: strPtr("x.jpg"), IconIndex: 1}, true},
		{"closeup with target", Connection{Type: Closeup, FilePath: strPtr("x.jpg"), IconIndex: 1, TargetSceneID: idPtr(1)}, false},
		{"closeup without file", Connection{Type: Closeup, IconIndex: 1}, false},
		{"closeup bad icon", Connection{Type: Closeup, FilePath: strPtr("x.jpg"), IconIndex: 4}, false},
		{"untagged", Connection{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conn.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidConnection)
			}
		})
	}
}

func TestDeleteSceneCascades(t *testing.T) {
	c := loadedCache(t)

	require.True(t, c.DeleteScene(1))
	require.Nil(t, c.Scene(1))
	require.Equal(t, ID(2), c.InitialSceneID(), "first remaining scene is promoted")

	// Scene 2's transition back to 1 is gone.
	require.Empty(t, c.Scene(2).Connections)
	require.Len(t, c.Floorplan().Markers, 1)
	require.NoError(t, c.CheckInvariants())
}

func TestDeleteSceneIdempotent(t *testing.T) {
	once := loadedCache(t)
	twice := loadedCache(t)

	once.DeleteScene(3)
	twice.DeleteScene(3)
	require.False(t, twice.DeleteScene(3))

	if diff := cmp.Diff(once.Tour(), twice.Tour()); diff != "" {
		t.Fatalf("state differs after replay (-once +twice):\n%s", diff)
	}
}

func TestRemoveConnectionIdempotent(t *testing.T) {
	once := loadedCache(t)
	twice := loadedCache(t)

	require.True(t, once.RemoveConnection(11))
	require.True(t, twice.RemoveConnection(11))
	require.False(t, twice.RemoveConnection(11))

	require.Empty(t, cmp.Diff(once.Tour(), twice.Tour()))
}

func TestAddConnectionRejectsInvalid(t *testing.T) {
	c := loadedCache(t)
	err := c.AddConnection(1, Connection{ID: 99, Type: Transition})
	require.ErrorIs(t, err, ErrInvalidConnection)
	require.Len(t, c.Scene(1).Connections, 2)

	err = c.AddConnection(42, Connection{ID: 99, Type: Transition, TargetSceneID: idPtr(1)})
	require.ErrorIs(t, err, ErrSceneNotFound)
}

func TestAddConnectionReplacesSameID(t *testing.T) {
	c := loadedCache(t)
	conn := Connection{ID: 10, Type: Transition, Position: [2]float64{1, 2}, TargetSceneID: idPtr(3)}
	require.NoError(t, c.AddConnection(1, conn))
	require.Len(t, c.Scene(1).Connections, 2)
	got, owner := c.Connection(10)
	require.Equal(t, ID(1), owner)
	require.Equal(t, ID(3), *got.TargetSceneID)
}

func TestRewriteConnectionID(t *testing.T) {
	c := loadedCache(t)
	require.NoError(t, c.AddConnection(1, Connection{ID: -1000, Type: Transition, TargetSceneID: idPtr(2)}))

	require.True(t, c.RewriteConnectionID(-1000, 55))
	got, owner := c.Connection(55)
	require.NotNil(t, got)
	require.Equal(t, ID(1), owner)
	conn, _ := c.Connection(-1000)
	require.Nil(t, conn)
	require.False(t, c.RewriteConnectionID(-1000, 56))
}

func TestFloorplanMarkerReplacesPerScene(t *testing.T) {
	c := loadedCache(t)

	require.True(t, c.UpsertFloorplanMarker(FloorplanMarker{ID: 50, SceneID: 1, X: 0.9, Y: 1.4}))
	markers := c.Floorplan().Markers
	require.Len(t, markers, 2)
	m := markers[0]
	require.Equal(t, ID(50), m.ID)
	require.Equal(t, 0.9, m.X)
	require.Equal(t, 1.0, m.Y, "positions are clamped to the unit square")

	// Update by marker id only.
	require.True(t, c.UpsertFloorplanMarker(FloorplanMarker{ID: 41, X: 0.1, Y: 0.1}))
	require.Equal(t, ID(2), c.FloorplanMarker(41).SceneID)
	require.NoError(t, c.CheckInvariants())

	require.True(t, c.DeleteFloorplanMarker(41))
	require.False(t, c.DeleteFloorplanMarker(41))
}

func TestFloorplanDelete(t *testing.T) {
	c := loadedCache(t)
	require.False(t, c.DeleteFloorplan(99))
	require.True(t, c.DeleteFloorplan(4))
	require.Nil(t, c.Floorplan())
	require.False(t, c.UpsertFloorplanMarker(FloorplanMarker{SceneID: 1}))
}

func TestSortedScenes(t *testing.T) {
	tests := []struct {
		sort Sort
		want []ID
	}{
		{Sort{SortAlphabetical, SortAsc}, []ID{2, 3, 1}},
		{Sort{SortAlphabetical, SortDesc}, []ID{1, 3, 2}},
		{Sort{SortCreatedAt, SortAsc}, []ID{2, 1, 3}},
		{Sort{SortModifiedAt, SortDesc}, []ID{2, 1, 3}},
		{Sort{"bogus", "sideways"}, []ID{2, 3, 1}},
	}
	for _, tt := range tests {
		t.Run(string(tt.sort.Mode)+"_"+string(tt.sort.Direction), func(t *testing.T) {
			c := loadedCache(t)
			c.SetSort(tt.sort)
			var got []ID
			for _, s := range c.SortedScenes() {
				got = append(got, s.ID)
			}
			require.Equal(t, tt.want, got)
			require.Equal(t, ID(1), c.Scenes()[0].ID, "stored order is untouched")
		})
	}
}

func TestUpdateSceneKeepsConnections(t *testing.T) {
	c := loadedCache(t)
	dropped, err := c.UpdateScene(Scene{ID: 1, Name: "Entrance"})
	require.NoError(t, err)
	require.Zero(t, dropped)
	require.Equal(t, "Entrance", c.Scene(1).Name)
	require.Len(t, c.Scene(1).Connections, 2)
	_, err = c.UpdateScene(Scene{ID: 77})
	require.ErrorIs(t, err, ErrSceneNotFound)
}

func TestCacheDropsInvalidConnections(t *testing.T) {
	broken := []Connection{
		{ID: 9, Type: Transition, TargetSceneID: nil},
		{ID: 12, Type: Closeup, IconIndex: 1},
		{ID: 13, Type: Transition, TargetSceneID: idPtr(2)},
	}

	t.Run("load", func(t *testing.T) {
		tr := sampleTour()
		tr.Scenes[2].Connections = append([]Connection(nil), broken...)
		c := NewCache()
		require.Equal(t, 2, c.Load(tr))
		require.NoError(t, c.CheckInvariants())
		conn, sceneID := c.Connection(13)
		require.NotNil(t, conn)
		require.Equal(t, ID(3), sceneID)
		gone, _ := c.Connection(9)
		require.Nil(t, gone)
		require.Len(t, tr.Scenes[2].Connections, 3, "snapshot is not modified")
	})

	t.Run("add scene", func(t *testing.T) {
		c := loadedCache(t)
		require.Equal(t, 2, c.AddScene(Scene{ID: 5, Name: "Roof", Connections: broken}))
		require.NoError(t, c.CheckInvariants())
		require.Len(t, c.Scene(5).Connections, 1)
	})

	t.Run("update scene", func(t *testing.T) {
		c := loadedCache(t)
		dropped, err := c.UpdateScene(Scene{ID: 1, Name: "Lobby", Connections: broken})
		require.NoError(t, err)
		require.Equal(t, 2, dropped)
		require.NoError(t, c.CheckInvariants())
		require.Len(t, c.Scene(1).Connections, 1)
	})
}

func TestDisplayNameFallsBackToTarget(t *testing.T) {
	c := loadedCache(t)
	conn, _ := c.Connection(10)
	require.Equal(t, "atrium", conn.DisplayName(c.Scene))

	conn.Name = strPtr("To the atrium")
	require.Equal(t, "To the atrium", conn.DisplayName(c.Scene))
}
