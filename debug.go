package vista

import "time"

// pendingStaleAfter is how old an unacknowledged record must be before the
// debug log reports it.
const pendingStaleAfter = 30 * time.Second

// debugStats holds per-frame timing and workload metrics.
// Only populated when the editor's debug mode is on.
type debugStats struct {
	updateTime time.Duration
	drawTime   time.Duration
	messages   int
	triangles  int
	markers    int
}

// debugLog writes the previous frame's statistics at debug level.
func (e *Editor) debugLog() {
	s := e.stats
	e.log.Debug().
		Dur("update", s.updateTime).
		Dur("draw", s.drawTime).
		Int("messages", s.messages).
		Int("triangles", s.triangles).
		Int("markers", s.markers).
		Int("pending", e.pending.Len()).
		Int("textures", e.textures.Len()).
		Str("gesture", e.gesture.State().String()).
		Msg("frame")

	if stale := e.pending.Stale(e.clock().Add(-pendingStaleAfter)); len(stale) > 0 {
		e.log.Warn().Int("count", len(stale)).Int64("oldest", int64(stale[0].TentativeID)).
			Msg("records still awaiting acknowledgment")
	}
}
