// Package optimistic tracks records the editor created locally before the
// server acknowledged them.
//
// The server's acknowledgment does not echo the tentative id, so each
// pending entry keeps the fields the acknowledgment does carry. A match
// removes the most recently inserted entry with equal fields, which keeps
// rapid repeated creations of similar records paired in order.
package optimistic

import (
	"time"

	"github.com/phanxgames/vista/tour"
)

// IDGenerator hands out tentative ids: negative, strictly decreasing, and
// derived from the clock so they stay distinct across editor sessions.
type IDGenerator struct {
	now  func() time.Time
	last tour.ID
}

// NewIDGenerator returns a generator reading the given clock. A nil clock
// uses time.Now.
func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Next returns a fresh tentative id.
func (g *IDGenerator) Next() tour.ID {
	id := tour.ID(-g.now().UnixMilli())
	if id >= 0 {
		id = -1
	}
	if g.last != 0 && id >= g.last {
		id = g.last - 1
	}
	g.last = id
	return id
}

// Kind distinguishes the two pending flavors.
type Kind uint8

const (
	KindConnection Kind = iota // AddConnection awaiting connection_added
	KindCloseup                // AddCloseup awaiting closeup_added
)

// Pending is one optimistic record awaiting acknowledgment.
type Pending struct {
	Kind        Kind
	TentativeID tour.ID
	SceneID     tour.ID // start scene (connection) or parent scene (closeup)
	TargetID    tour.ID // connection flavor only
	FilePath    string  // closeup flavor only
	Position    [2]float64
	Created     time.Time
	// Record is the connection as it was inserted locally.
	Record tour.Connection
}

// Tracker holds pending entries in insertion order. It is not safe for
// concurrent use.
type Tracker struct {
	entries []Pending
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker { return &Tracker{} }

// Track records an optimistic connection or closeup inserted into sceneID
// under rec.ID and returns the stored entry.
func (t *Tracker) Track(sceneID tour.ID, rec tour.Connection, at time.Time) Pending {
	p := Pending{
		Kind:        KindConnection,
		TentativeID: rec.ID,
		SceneID:     sceneID,
		Position:    rec.Position,
		Created:     at,
		Record:      rec,
	}
	if rec.Type == tour.Closeup {
		p.Kind = KindCloseup
		if rec.FilePath != nil {
			p.FilePath = *rec.FilePath
		}
	} else if rec.TargetSceneID != nil {
		p.TargetID = *rec.TargetSceneID
	}
	t.entries = append(t.entries, p)
	return p
}

// MatchConnection finds the newest pending connection from startScene to
// targetScene and removes it.
func (t *Tracker) MatchConnection(startScene, targetScene tour.ID) (Pending, bool) {
	return t.take(func(p Pending) bool {
		return p.Kind == KindConnection && p.SceneID == startScene && p.TargetID == targetScene
	})
}

// MatchCloseup finds the newest pending closeup in parentScene showing
// filePath and removes it.
func (t *Tracker) MatchCloseup(parentScene tour.ID, filePath string) (Pending, bool) {
	return t.take(func(p Pending) bool {
		return p.Kind == KindCloseup && p.SceneID == parentScene && p.FilePath == filePath
	})
}

// Has reports whether a tentative id is still awaiting acknowledgment.
func (t *Tracker) Has(tentative tour.ID) bool {
	for _, p := range t.entries {
		if p.TentativeID == tentative {
			return true
		}
	}
	return false
}

// Update replaces the stored record for a still-pending tentative id, so
// local edits made before the acknowledgment survive a snapshot reload.
// Correlating fields are not changed.
func (t *Tracker) Update(rec tour.Connection) bool {
	for i := range t.entries {
		if t.entries[i].TentativeID == rec.ID {
			t.entries[i].Record = rec
			return true
		}
	}
	return false
}

// Forget drops any pending entry for a tentative id, e.g. when the user
// deletes the record before the server answered.
func (t *Tracker) Forget(tentative tour.ID) bool {
	_, ok := t.take(func(p Pending) bool { return p.TentativeID == tentative })
	return ok
}

// Len returns the number of pending entries.
func (t *Tracker) Len() int { return len(t.entries) }

// Entries returns a copy of the pending entries, oldest first.
func (t *Tracker) Entries() []Pending {
	out := make([]Pending, len(t.entries))
	copy(out, t.entries)
	return out
}

// Stale returns the entries created before cutoff. They are left in place.
func (t *Tracker) Stale(cutoff time.Time) []Pending {
	var out []Pending
	for _, p := range t.entries {
		if p.Created.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

func (t *Tracker) take(match func(Pending) bool) (Pending, bool) {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if match(t.entries[i]) {
			p := t.entries[i]
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return p, true
		}
	}
	return Pending{}, false
}
