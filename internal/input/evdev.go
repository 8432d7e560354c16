package input

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// https://github.com/torvalds/linux/blob/master/include/uapi/linux/input-event-codes.h
const (
	evKey  = 0x01
	keyEsc = 1
)

// input_event as laid out on 64 bit Linux
type keyEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

var keyCodes = map[rune]uint16{
	'1': 2, '2': 3, '3': 4, '4': 5, '5': 6, '6': 7, '7': 8, '8': 9, '9': 10, '0': 11,
	'q': 16, 'w': 17, 'e': 18, 'r': 19, 't': 20, 'y': 21, 'u': 22, 'i': 23, 'o': 24, 'p': 25,
	'a': 30, 's': 31, 'd': 32, 'f': 33, 'g': 34, 'h': 35, 'j': 36, 'k': 37, 'l': 38, ';': 39,
	'z': 44, 'x': 45, 'c': 46, 'v': 47, 'b': 48, 'n': 49, 'm': 50, ',': 51, '.': 52, '/': 53,
	' ': 57,
}

// Evdev reads key edges straight from a /dev/input event device. Unlike a
// terminal it reports releases, so holds are judged exactly.
type Evdev struct {
	Device string
	Logger *slog.Logger

	codes map[uint16]int
}

func NewEvdev(device string, keys KeyMap, logger *slog.Logger) *Evdev {
	if nil == logger {
		logger = slog.Default()
	}
	codes := map[uint16]int{}
	for r, lane := range keys {
		if code, ok := keyCodes[r]; ok {
			codes[code] = lane
		} else {
			logger.Warn("evdev: no key code for lane key", slog.String("key", string(r)), slog.Int("lane", lane))
		}
	}
	return &Evdev{Device: device, Logger: logger, codes: codes}
}

func (e *Evdev) Run(ctx context.Context, out chan<- LaneEvent) error {
	file, err := os.Open(e.Device)
	if nil != err {
		return fmt.Errorf("unable to open input device: %w", err)
	}
	defer file.Close()
	// Closing the device is what unblocks a pending read
	stop := context.AfterFunc(ctx, func() { file.Close() })
	defer stop()

	err = e.decode(ctx, file, out)
	if nil != ctx.Err() {
		return nil
	}
	return err
}

func (e *Evdev) decode(ctx context.Context, r io.Reader, out chan<- LaneEvent) error {
	var ev keyEvent
	for {
		if err := binary.Read(r, binary.LittleEndian, &ev); nil != err {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("unable to read keyboard input: %w", err)
		}
		// Value 2 is autorepeat
		if ev.Type != evKey || ev.Value > 1 {
			continue
		}
		le := LaneEvent{Down: ev.Value == 1, At: time.Unix(ev.Sec, ev.Usec*1000)}
		if ev.Code == keyEsc {
			if !le.Down {
				continue
			}
			le.Command = Quit
		} else if lane, ok := e.codes[ev.Code]; ok {
			le.Lane = lane
		} else {
			continue
		}
		select {
		case out <- le:
		case <-ctx.Done():
			return nil
		}
	}
}
