// Command vista opens the tour editor. With tour.id set it edits the tour
// live over a websocket session; with only tour.export_path set it shows an
// exported tourData.js file and reloads it when the file changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/phanxgames/vista"
	"github.com/phanxgames/vista/config"
	"github.com/phanxgames/vista/logging"
	"github.com/phanxgames/vista/protocol"
	"github.com/phanxgames/vista/session"
	"github.com/phanxgames/vista/tour"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file")
	scriptPath = flag.String("script", "", "JSON input script replayed after start")
	panorama   = flag.String("panorama", "", "upload this panorama and add it as a scene")
	sceneName  = flag.String("scene-name", "", "name of the scene created by -panorama")
	floorplan  = flag.String("floorplan", "", "upload this image and attach it as the floorplan")
	closeup    = flag.String("closeup", "", "upload this image for closeups placed with the C key")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "vista:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	opts := vista.Options{
		TourID:            tour.ID(cfg.Tour.ID),
		UI:                &logUI{log: log.With().Str("component", "ui").Logger(), title: cfg.Window.Title},
		Fetcher:           vista.HTTPFetcher{BaseURL: cfg.Server.AssetBaseURL, Client: &http.Client{Timeout: time.Minute}},
		Logger:            log,
		LongPress:         cfg.Editor.LongPress,
		PanSensitivity:    cfg.Editor.PanSensitivity,
		Dampening:         cfg.Editor.Dampening,
		MomentumEpsilon:   cfg.Editor.MomentumEpsilon,
		DragDeadZone:      cfg.Editor.DragDeadZone,
		TextureRetryDelay: cfg.Editor.TextureRetryDelay,
		Debug:             cfg.Editor.Debug,
	}

	live := cfg.Tour.ID != 0
	if live {
		tourID := tour.ID(cfg.Tour.ID)
		conn := session.New(session.Config{
			URL:             cfg.Server.WSURL,
			MaxAttempts:     cfg.Reconnect.MaxAttempts,
			InitialInterval: cfg.Reconnect.InitialInterval,
			MaxInterval:     cfg.Reconnect.MaxInterval,
			OnOpen:          func() []protocol.Envelope { return []protocol.Envelope{protocol.OpenTour(tourID)} },
			Logger:          log,
		})
		defer conn.Close()
		g.Go(func() error { return conn.Run(gctx) })
		opts.Sender, opts.Inbox, opts.Status = conn, conn.Inbox(), conn.Events()
	} else {
		if _, err := os.Stat(cfg.Tour.ExportPath); err != nil {
			return fmt.Errorf("tour export: %w", err)
		}
		inbox := make(chan protocol.Message, 4)
		g.Go(func() error {
			return tour.WatchExport(gctx, cfg.Tour.ExportPath, log, func(t tour.Tour) {
				select {
				case inbox <- protocol.TourData{Data: t}:
				case <-gctx.Done():
				}
			})
		})
		opts.Sender, opts.Inbox = readOnlySender{}, inbox
	}

	ed, err := vista.NewEditor(opts)
	if err != nil {
		return err
	}

	if *panorama != "" || *floorplan != "" || *closeup != "" {
		if !live {
			return errors.New("uploads need a live session (set tour.id)")
		}
		up := session.NewUploader(cfg.Server.UploadURL, log)
		if err := uploadAssets(ctx, up, ed); err != nil {
			return err
		}
	}

	if *scriptPath != "" {
		data, err := os.ReadFile(*scriptPath)
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		runner, err := vista.LoadTestScript(data)
		if err != nil {
			return err
		}
		ed.SetTestRunner(runner)
	}

	runErr := vista.Run(ed, vista.RunConfig{Title: cfg.Window.Title, Width: cfg.Window.Width, Height: cfg.Window.Height})
	stop()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, session.ErrClosed) {
		log.Warn().Err(err).Msg("background task ended with an error")
	}
	return runErr
}

// uploadAssets uploads the files named on the command line and queues the
// actions that attach them. Actions wait in the session queue until the
// connection opens.
func uploadAssets(ctx context.Context, up *session.Uploader, ed *vista.Editor) error {
	if *panorama != "" {
		res, err := uploadFile(ctx, up, session.UploadPanorama, *panorama)
		if err != nil {
			return err
		}
		name := *sceneName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(*panorama), filepath.Ext(*panorama))
		}
		if err := ed.AddScene(name, res.FilePath); err != nil {
			return err
		}
	}
	if *floorplan != "" {
		res, err := uploadFile(ctx, up, session.UploadFloorplan, *floorplan)
		if err != nil {
			return err
		}
		if err := ed.AddFloorplan(res.FilePath); err != nil {
			return err
		}
	}
	if *closeup != "" {
		res, err := uploadFile(ctx, up, session.UploadCloseup, *closeup)
		if err != nil {
			return err
		}
		ed.SetCloseupFile(res.FilePath)
	}
	return nil
}

func uploadFile(ctx context.Context, up *session.Uploader, kind session.UploadKind, path string) (session.UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return session.UploadResult{}, err
	}
	defer f.Close()
	return up.Upload(ctx, kind, filepath.Base(path), f)
}

// readOnlySender rejects edits while viewing an export.
type readOnlySender struct{}

var errReadOnly = errors.New("viewing an exported tour; edits are not saved")

func (readOnlySender) Send(protocol.Envelope) error { return errReadOnly }

// logUI records dialog activity in the log and keeps the window title and
// cursor current. The dialogs themselves are drawn and keyed by the editor.
type logUI struct {
	log   zerolog.Logger
	title string
}

func (u *logUI) OpenConnectionEditor(m *vista.Marker) {
	u.log.Info().Int64("connection_id", int64(m.ID)).Stringer("kind", m.Kind).Msg("edit connection")
}

func (u *logUI) OpenCloseupViewer(m *vista.Marker) {
	u.log.Info().Int64("connection_id", int64(m.ID)).Str("file", m.FilePath).Msg("view closeup")
}

func (u *logUI) OpenFloorplanPinEditor(m *vista.Marker) {
	u.log.Info().Int64("pin_id", int64(m.ID)).Int64("scene_id", int64(m.SceneID)).Msg("edit floorplan pin")
}

func (u *logUI) OpenPlacement(p vista.Placement) {
	u.log.Info().Float64("lon", p.Position.Lon).Float64("lat", p.Position.Lat).Msg("place marker")
}

func (u *logUI) CloseModal() {}

func (u *logUI) ShowTooltip(string, float64, float64) {}

func (u *logUI) HideTooltip() {}

func (u *logUI) SetCursor(shape ebiten.CursorShapeType) { ebiten.SetCursorShape(shape) }

func (u *logUI) Notify(n vista.Notice) {
	ev := u.log.Info()
	if n.Level == vista.NoticeError {
		ev = u.log.Error()
	}
	ev.Str("title", n.Title).Msg(n.Message)
}

func (u *logUI) SceneChanged(s *tour.Scene) {
	if s == nil {
		ebiten.SetWindowTitle(u.title)
		return
	}
	ebiten.SetWindowTitle(u.title + " - " + s.Name)
}
