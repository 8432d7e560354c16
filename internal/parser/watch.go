package parser

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"git.lost.host/meutraa/vbeat/internal/game"
	"github.com/fsnotify/fsnotify"
)

// Debounce is how long Watch waits after the last change before reparsing.
// Editors tend to write a file in several steps.
var Debounce = 150 * time.Millisecond

// Watch reparses file whenever it changes and sends the chart named
// difficulty to out. It watches the parent directory so that editors which
// save by renaming a temporary file are seen too. Parse failures are logged
// and the previous chart stays in use. Watch returns when ctx is done.
func Watch(ctx context.Context, file, difficulty string, opts Options, out chan<- *game.Chart) error {
	logger := opts.Logger
	if nil == logger {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if nil != err {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(file)
	if nil != err {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); nil != err {
		return err
	}
	logger.Info("watcher: started", slog.String("chart", abs))

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if nil != timer {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			fire = nil
			chart, err := Open(abs, difficulty, opts)
			if nil != err {
				logger.Warn("watcher: reload failed", slog.String("chart", abs), slog.String("error", err.Error()))
				continue
			}
			logger.Info("watcher: reloaded", slog.String("chart", abs), slog.Int("notes", len(chart.Notes)))
			select {
			case out <- chart:
			case <-ctx.Done():
				return nil
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if nil == timer {
				timer = time.NewTimer(Debounce)
			} else {
				timer.Reset(Debounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}
