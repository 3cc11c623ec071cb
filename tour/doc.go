// Package tour holds the in-memory mirror of a virtual tour: scenes, the
// connections placed inside them, and the optional floorplan with its scene
// markers.
//
// A [Cache] is the single tree every mutation funnels through, whether it
// comes from a local optimistic edit or from a server push. The cache is not
// safe for concurrent use; the editor mutates it only from its main loop.
//
// Identifiers are [ID] values. Server-assigned ids are positive; the editor
// creates negative tentative ids for records that the server has not yet
// acknowledged (see package optimistic).
package tour
