package input

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eiannone/keyboard"
)

// Terminal reads keys from the controlling terminal. Terminals only report
// presses, repeated while a key is held, so a lane is released once it has
// been quiet for Quiet. The release carries the time of the last repeat.
type Terminal struct {
	Keys   KeyMap
	Quiet  time.Duration
	Logger *slog.Logger

	now func() time.Time
}

// DefaultQuiet outlasts the usual terminal autorepeat delay.
const DefaultQuiet = 550 * time.Millisecond

func NewTerminal(keys KeyMap, quiet time.Duration, logger *slog.Logger) *Terminal {
	if nil == logger {
		logger = slog.Default()
	}
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	return &Terminal{Keys: keys, Quiet: quiet, Logger: logger, now: time.Now}
}

func (t *Terminal) Run(ctx context.Context, out chan<- LaneEvent) error {
	keys, err := keyboard.GetKeys(128)
	if nil != err {
		return fmt.Errorf("unable to open keyboard: %w", err)
	}
	defer func() {
		if err := keyboard.Close(); nil != err {
			t.Logger.Warn("unable to close keyboard", slog.String("error", err.Error()))
		}
	}()
	return t.loop(ctx, keys, out)
}

func (t *Terminal) loop(ctx context.Context, keys <-chan keyboard.KeyEvent, out chan<- LaneEvent) error {
	lastSeen := map[int]time.Time{}
	ticker := time.NewTicker(t.Quiet / 4)
	defer ticker.Stop()

	send := func(le LaneEvent) bool {
		select {
		case out <- le:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case now := <-ticker.C:
			for lane, seen := range lastSeen {
				if now.Sub(seen) < t.Quiet {
					continue
				}
				delete(lastSeen, lane)
				if !send(LaneEvent{Lane: lane, At: seen}) {
					return nil
				}
			}

		case key, ok := <-keys:
			if !ok {
				return nil
			}
			if nil != key.Err {
				return fmt.Errorf("unable to read keyboard: %w", key.Err)
			}
			now := t.now()
			var le LaneEvent
			switch key.Key {
			case keyboard.KeyEsc, keyboard.KeyCtrlC:
				le = LaneEvent{Command: Quit, Down: true, At: now}
			case keyboard.KeyEnter:
				le = LaneEvent{Command: TogglePause, Down: true, At: now}
			case keyboard.KeyBackspace, keyboard.KeyBackspace2:
				le = LaneEvent{Command: Restart, Down: true, At: now}
			default:
				r := key.Rune
				if key.Key == keyboard.KeySpace {
					r = ' '
				}
				lane := t.Keys.Lane(r)
				if lane < 0 {
					continue
				}
				_, held := lastSeen[lane]
				lastSeen[lane] = now
				if held {
					// autorepeat
					continue
				}
				le = LaneEvent{Lane: lane, Down: true, At: now}
			}
			if !send(le) {
				return nil
			}
		}
	}
}
