// Package vista is the editing engine of a panoramic virtual-tour editor
// built on [Ebitengine].
//
// A tour is a graph of 360° scenes. Each scene is an equirectangular image
// mapped onto the inside of a sphere, with hotspots placed on it: transitions
// that lead to another scene and closeups that open a detail image. An
// optional floorplan overlay pins scenes onto a map.
//
// # Quick start
//
// The simplest way to run the editor is [Run], which creates a window and
// game loop for you:
//
//	conn := session.New(session.Config{URL: wsURL})
//	ed, err := vista.NewEditor(vista.Options{
//		TourID: 7,
//		Sender: conn,
//		Inbox:  conn.Inbox(),
//		Status: conn.Events(),
//	})
//	// ...
//	vista.Run(ed, vista.RunConfig{Title: "Tour editor", Width: 1280, Height: 720})
//
// [Editor] implements [ebiten.Game], so it can also be embedded in an
// existing game loop.
//
// # Coordinates
//
// Positions on the sphere are [LonLat] pairs in degrees: longitude in
// (-180, 180] and latitude in [-90, 90]. [ScreenToLonLat] and
// [Camera.WorldToScreen] convert between viewport pixels and the sphere.
// Positions stored by old editors as canvas pixels are converted when a
// scene loads; new positions are always angular and rounded to two decimals.
//
// # Interaction
//
// Pointer input runs through [Gesture], a state machine that tells a camera
// pan from a marker click and a marker drag. A press on a marker held for
// [DefaultLongPress] becomes a drag; a shorter press is a click that opens
// the marker's edit dialog, or performs its action with Ctrl/Cmd held.
//
// # Optimistic edits
//
// New hotspots and closeups appear immediately under a negative tentative
// id. When the server acknowledges the creation the tentative id is
// rewritten to the real one in both the tour cache and the marker registry.
// See package optimistic for the matching rules.
//
// [Ebitengine]: https://ebitengine.org
package vista
