package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanxgames/vista/protocol"
)

// echoServer records every frame it receives and pushes the given frames on
// connect.
type echoServer struct {
	mu       sync.Mutex
	received [][]byte
	push     [][]byte
	got      chan struct{}
}

func (s *echoServer) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer ws.Close()
		for _, p := range s.push {
			if err := ws.WriteMessage(websocket.TextMessage, p); err != nil {
				return
			}
		}
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, data)
			s.mu.Unlock()
			s.got <- struct{}{}
		}
	}
}

func (s *echoServer) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.received))
	for _, raw := range s.received {
		var env struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(raw, &env); err == nil {
			out = append(out, env.Action)
		}
	}
	return out
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFrames(t *testing.T, s *echoServer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.got:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for frame %d of %d", i+1, n)
		}
	}
}

func TestConnFlushesQueuedActionsAfterOpen(t *testing.T) {
	s := &echoServer{got: make(chan struct{}, 16)}
	srv := httptest.NewServer(s.handler(t))
	defer srv.Close()

	c := New(Config{
		URL:    wsURL(srv),
		OnOpen: func() []protocol.Envelope { return []protocol.Envelope{protocol.OpenTour(7)} },
		Logger: zerolog.Nop(),
	})
	// Queued before Run starts.
	require.NoError(t, c.Send(protocol.EditTour(7, protocol.DeleteConnection{ConnectionID: 3})))
	assert.Equal(t, 1, c.Pending())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFrames(t, s, 2)
	assert.Equal(t, []string{"EditTour", "EditTour"}, s.actions())

	s.mu.Lock()
	first := string(s.received[0])
	s.mu.Unlock()
	assert.JSONEq(t, `{"action":"EditTour","data":{"tour_id":"7"}}`, first)

	require.NoError(t, c.Send(protocol.Disconnect()))
	waitFrames(t, s, 1)
	assert.Equal(t, "Disconnect", s.actions()[2])
	assert.Equal(t, 0, c.Pending())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StatusClosed, c.Status())
}

func TestConnDeliversInboundAndDropsMalformed(t *testing.T) {
	s := &echoServer{
		got: make(chan struct{}, 16),
		push: [][]byte{
			[]byte(`{"type":"scene_deleted","scene_id":4}`),
			[]byte(`not json`),
			[]byte(`{"type":"mystery"}`),
			[]byte(`{"type":"connection_added","connection_id":55,"start_scene":1,"target_scene":2}`),
		},
	}
	srv := httptest.NewServer(s.handler(t))
	defer srv.Close()

	c := New(Config{URL: wsURL(srv), Logger: zerolog.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	var got []protocol.Message
	for len(got) < 2 {
		select {
		case m := <-c.Inbox():
			got = append(got, m)
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d messages, want 2", len(got))
		}
	}
	assert.Equal(t, protocol.SceneDeleted{SceneID: 4}, got[0])
	assert.Equal(t, protocol.ConnectionAdded{ConnectionID: 55, StartScene: 1, TargetScene: 2}, got[1])
}

func TestConnGivesUpAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	c := New(Config{
		URL:             url,
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Logger:          zerolog.Nop(),
	})
	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusGaveUp, c.Status())

	var last Event
	for {
		select {
		case ev := <-c.Events():
			last = ev
			continue
		default:
		}
		break
	}
	assert.Equal(t, StatusGaveUp, last.Status)
	assert.Equal(t, 3, last.Attempt)
}

func TestSendAfterClose(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:1/connect", Logger: zerolog.Nop()})
	c.Close()
	assert.ErrorIs(t, c.Send(protocol.Disconnect()), ErrClosed)
	assert.ErrorIs(t, c.Run(context.Background()), ErrClosed)
}

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "closeups", r.FormValue("type"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "door.jpg", hdr.Filename)
		assert.Equal(t, "jpegbytes", string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"file_path":"closeups/door.jpg","thumbnail_path":"closeups/door_t.jpg"}`)
	}))
	defer srv.Close()

	u := NewUploader(srv.URL, zerolog.Nop())
	res, err := u.Upload(context.Background(), UploadCloseup, "door.jpg", strings.NewReader("jpegbytes"))
	require.NoError(t, err)
	assert.Equal(t, UploadResult{FilePath: "closeups/door.jpg", ThumbnailPath: "closeups/door_t.jpg"}, res)
}

func TestUploadErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/reject":
			http.Error(w, "too large", http.StatusRequestEntityTooLarge)
		default:
			_, _ = io.WriteString(w, `{"thumbnail_path":"x"}`)
		}
	}))
	defer srv.Close()

	u := NewUploader(srv.URL+"/reject", zerolog.Nop())
	_, err := u.Upload(context.Background(), UploadPanorama, "a.jpg", strings.NewReader("x"))
	var ue *UploadError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusRequestEntityTooLarge, ue.Status)

	u.URL = srv.URL + "/ok"
	_, err = u.Upload(context.Background(), UploadFloorplan, "a.png", strings.NewReader("x"))
	require.Error(t, err, "missing file_path must be rejected")

	_, err = u.Upload(context.Background(), UploadKind("video"), "a.mp4", strings.NewReader("x"))
	require.Error(t, err)
}
