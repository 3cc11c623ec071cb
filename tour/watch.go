package tour

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// WatchExport calls fn with the tour held in the export file at path, first
// immediately and then after every change to the file, until ctx is done.
// The parent directory is watched so files replaced by rename are picked up.
// A reload that fails is logged and skipped.
func WatchExport(ctx context.Context, path string, log zerolog.Logger, fn func(Tour)) error {
	path = filepath.Clean(path)
	log = log.With().Str("component", "export_watch").Str("path", path).Logger()

	if err := reloadExport(path, log, fn); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch export: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch export: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := reloadExport(path, log, fn); err != nil {
				log.Warn().Err(err).Msg("export reload failed")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func reloadExport(path string, log zerolog.Logger, fn func(Tour)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	t, stats, err := ImportExport(f)
	if err != nil {
		return err
	}
	if stats.Dropped > 0 {
		log.Warn().Int("dropped", stats.Dropped).Msg("invalid connections skipped")
	}
	log.Info().Int("scenes", len(t.Scenes)).Msg("export loaded")
	fn(t)
	return nil
}
