package tour

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// ErrNoTourData is returned when an export file holds no tourData object.
var ErrNoTourData = errors.New("tour: export contains no tourData object")

// ImportExport reads an exported tourData.js file (or plain JSON) and returns
// the tour snapshot it holds. The JavaScript wrapper
//
//	const tourData = { ... };
//
// is stripped before decoding. Connections that fail validation are dropped
// and counted in the returned ImportStats.
func ImportExport(r io.Reader) (Tour, ImportStats, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Tour{}, ImportStats{}, fmt.Errorf("read export: %w", err)
	}
	body, err := extractObject(raw)
	if err != nil {
		return Tour{}, ImportStats{}, err
	}
	var t Tour
	if err := json.Unmarshal(body, &t); err != nil {
		return Tour{}, ImportStats{}, fmt.Errorf("decode export: %w", err)
	}

	var stats ImportStats
	for i := range t.Scenes {
		s := &t.Scenes[i]
		kept := s.Connections[:0]
		for _, conn := range s.Connections {
			if err := conn.Validate(); err != nil {
				stats.Dropped++
				continue
			}
			if conn.Type == Closeup {
				stats.Closeups++
			} else {
				stats.Connections++
			}
			kept = append(kept, conn)
		}
		s.Connections = kept
	}
	stats.Scenes = len(t.Scenes)
	if t.InitialSceneID == 0 && len(t.Scenes) > 0 {
		t.InitialSceneID = t.Scenes[0].ID
	}
	return t, stats, nil
}

// ImportStats summarises an import.
type ImportStats struct {
	Scenes      int
	Connections int
	Closeups    int
	Dropped     int
}

// extractObject returns the outermost {...} of an export file.
func extractObject(raw []byte) ([]byte, error) {
	start := bytes.IndexByte(raw, '{')
	end := bytes.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, ErrNoTourData
	}
	return raw[start : end+1], nil
}
