package input

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Escapes that switch SGR mouse reporting on and off. Motion is reported
// only while a button is down.
const (
	MouseOn  = "\033[?1000h\033[?1002h\033[?1006h"
	MouseOff = "\033[?1006l\033[?1002l\033[?1000l"
)

type TermKind uint8

const (
	NoTermEvent TermKind = iota
	Key
	Escape
	ArrowUp
	ArrowDown
	PointerDown
	PointerMove
	PointerUp
	WheelUp
	WheelDown
)

func (k TermKind) String() string {
	return [...]string{"none", "key", "escape", "up", "down", "pointer-down", "pointer-move", "pointer-up", "wheel-up", "wheel-down"}[k]
}

// TermEvent is a key or a left button mouse report read from a raw mode
// terminal. Col and Row are zero based cells.
type TermEvent struct {
	Kind TermKind
	Rune rune
	Col  int
	Row  int
}

// ReadTerminal decodes keys and SGR mouse reports from r until it ends or ctx
// is done. A read that never returns keeps the caller's goroutine, so r
// should be something the process can abandon, like stdin.
func ReadTerminal(ctx context.Context, r io.Reader, out chan<- TermEvent) error {
	d := &termDecoder{r: bufio.NewReader(r)}
	for {
		ev, err := d.next()
		if nil != err {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("unable to read terminal: %w", err)
		}
		if ev.Kind == NoTermEvent {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

type termDecoder struct {
	r *bufio.Reader
}

func (d *termDecoder) next() (TermEvent, error) {
	b, err := d.r.ReadByte()
	if nil != err {
		return TermEvent{}, err
	}
	if b != 0x1b {
		if b < utf8.RuneSelf {
			return TermEvent{Kind: Key, Rune: rune(b)}, nil
		}
		if err := d.r.UnreadByte(); nil != err {
			return TermEvent{}, err
		}
		r, _, err := d.r.ReadRune()
		return TermEvent{Kind: Key, Rune: r}, err
	}

	// A lone escape arrives on its own
	if d.r.Buffered() == 0 {
		return TermEvent{Kind: Escape}, nil
	}
	if b, err = d.r.ReadByte(); nil != err {
		return TermEvent{}, err
	}
	if b != '[' {
		return TermEvent{Kind: Escape}, nil
	}
	if b, err = d.r.ReadByte(); nil != err {
		return TermEvent{}, err
	}
	switch b {
	case 'A':
		return TermEvent{Kind: ArrowUp}, nil
	case 'B':
		return TermEvent{Kind: ArrowDown}, nil
	case '<':
		return d.mouse()
	}
	// Skip the rest of any other control sequence
	for b < 0x40 || b > 0x7e {
		if b, err = d.r.ReadByte(); nil != err {
			return TermEvent{}, err
		}
	}
	return TermEvent{}, nil
}

// mouse reads the rest of "\033[<b;x;yM", a lower case m is a release.
func (d *termDecoder) mouse() (TermEvent, error) {
	var seq []byte
	for len(seq) < 32 {
		b, err := d.r.ReadByte()
		if nil != err {
			return TermEvent{}, err
		}
		if b == 'M' || b == 'm' {
			return parseMouse(string(seq), b == 'm'), nil
		}
		seq = append(seq, b)
	}
	return TermEvent{}, nil
}

func parseMouse(seq string, release bool) TermEvent {
	fields := strings.Split(seq, ";")
	if len(fields) != 3 {
		return TermEvent{}
	}
	var v [3]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if nil != err {
			return TermEvent{}
		}
		v[i] = n
	}
	button, col, row := v[0], v[1]-1, v[2]-1

	switch {
	case button&64 != 0:
		if button&1 == 0 {
			return TermEvent{Kind: WheelUp, Col: col, Row: row}
		}
		return TermEvent{Kind: WheelDown, Col: col, Row: row}
	case button&3 != 0:
		// only the left button edits
		return TermEvent{}
	case release:
		return TermEvent{Kind: PointerUp, Col: col, Row: row}
	case button&32 != 0:
		return TermEvent{Kind: PointerMove, Col: col, Row: row}
	}
	return TermEvent{Kind: PointerDown, Col: col, Row: row}
}
