package vista

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/phanxgames/vista/protocol"
)

func TestDebugLogReportsStalePending(t *testing.T) {
	var buf bytes.Buffer
	clk := &fakeClock{t: time.UnixMilli(1000)}
	e, err := NewEditor(Options{
		Sender: &recordingSender{},
		Logger: zerolog.New(&buf).Level(zerolog.DebugLevel),
		Now:    clk.Now,
		Debug:  true,
	})
	if err != nil {
		t.Fatal(err)
	}
	e.Handle(protocol.TourData{Data: sampleTour()})
	if _, err := e.AddConnection(hallID, LonLat{}, nil); err != nil {
		t.Fatal(err)
	}

	buf.Reset()
	e.debugLog()
	if !strings.Contains(buf.String(), `"message":"frame"`) {
		t.Errorf("no frame line in %q", buf.String())
	}
	if strings.Contains(buf.String(), "awaiting acknowledgment") {
		t.Error("fresh pending record reported as stale")
	}

	clk.Advance(pendingStaleAfter + time.Second)
	buf.Reset()
	e.debugLog()
	if !strings.Contains(buf.String(), "awaiting acknowledgment") {
		t.Errorf("stale pending record not reported: %q", buf.String())
	}
}
