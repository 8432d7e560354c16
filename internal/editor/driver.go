package editor

import (
	"context"
	"fmt"
	"log/slog"

	"git.lost.host/meutraa/vbeat/internal/game"
	"git.lost.host/meutraa/vbeat/internal/input"
	"git.lost.host/meutraa/vbeat/internal/mapper"
	"git.lost.host/meutraa/vbeat/internal/session"
)

// ScrollMs is how far one scroll step moves the view.
const ScrollMs = 250

// Canvas turns grid cells into canvas points and draws the editor.
type Canvas interface {
	Point(col, row int) mapper.Point
	RenderEdit(f session.Frame, marked []*game.Note, status []string) error
}

// SaveFunc writes the chart of e somewhere durable.
type SaveFunc func(e *Editor) error

// Driver feeds terminal events into an Editor and redraws after each one.
type Driver struct {
	editor *Editor
	canvas Canvas
	save   SaveFunc
	logger *slog.Logger

	view    View
	message string
	leaving bool // quit was asked for with unsaved changes
}

func NewDriver(e *Editor, c Canvas, speed float64, save SaveFunc, logger *slog.Logger) *Driver {
	if nil == logger {
		logger = slog.Default()
	}
	return &Driver{editor: e, canvas: c, save: save, logger: logger, view: View{Speed: speed}}
}

func (d *Driver) View() View {
	return d.view
}

func (d *Driver) Message() string {
	return d.message
}

// Run handles events until quit, the channel closes or ctx is done.
func (d *Driver) Run(ctx context.Context, events <-chan input.TermEvent) error {
	if err := d.Draw(); nil != err {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			quit, err := d.Handle(ev)
			if nil != err {
				return err
			}
			if quit {
				return nil
			}
			if err := d.Draw(); nil != err {
				return err
			}
		}
	}
}

// Handle applies one event and reports whether the editor should close.
func (d *Driver) Handle(ev input.TermEvent) (bool, error) {
	if ev.Kind != input.Key || (ev.Rune != 'q' && ev.Rune != 0x03) {
		d.leaving = false
	}
	switch ev.Kind {
	case input.PointerDown:
		d.result(d.editor.PointerDown(d.canvas.Point(ev.Col, ev.Row), d.view))
	case input.PointerMove:
		d.editor.PointerMove(d.canvas.Point(ev.Col, ev.Row), d.view)
	case input.PointerUp:
		d.result(d.editor.PointerUp(d.canvas.Point(ev.Col, ev.Row), d.view))
	case input.Escape:
		d.result(d.editor.Cancel())
	case input.ArrowUp, input.WheelUp:
		d.scroll(ScrollMs)
	case input.ArrowDown, input.WheelDown:
		d.scroll(-ScrollMs)
	case input.Key:
		return d.key(ev.Rune)
	}
	return false, nil
}

func (d *Driver) key(r rune) (bool, error) {
	switch r {
	case 't':
		d.tool(ToolTap)
	case 'h':
		d.tool(ToolHold)
	case 's':
		d.tool(ToolSelect)
	case 'd':
		d.tool(ToolDelete)
	case 'm':
		d.tool(ToolMarquee)
	case 'a':
		d.editor.SelectAll()
		d.message = fmt.Sprintf("selected %d", len(d.editor.Selection()))
	case 'x', 0x7f:
		d.result(d.editor.DeleteSelected())
	case 'u':
		d.result(d.editor.Undo())
	case 'k':
		d.scroll(ScrollMs)
	case 'j':
		d.scroll(-ScrollMs)
	case 'g':
		d.view.NowMs = 0
	case '+', '=':
		d.view.Speed *= 1.25
	case '-':
		d.view.Speed /= 1.25
	case 'w':
		if err := d.save(d.editor); nil != err {
			return false, fmt.Errorf("unable to save chart: %w", err)
		}
		d.message = "saved"
		d.logger.Info("chart saved", slog.Int("notes", len(d.editor.Chart().Notes)))
	case 'q', 0x03:
		if d.editor.Dirty() && !d.leaving {
			d.leaving = true
			d.message = "unsaved changes, q again to quit"
			return false, nil
		}
		return true, nil
	}
	return false, nil
}

func (d *Driver) tool(t Tool) {
	d.editor.SetTool(t)
	d.message = ""
}

func (d *Driver) scroll(ms int64) {
	d.view.NowMs = max(0, d.view.NowMs+ms)
}

func (d *Driver) result(r Result) {
	switch {
	case nil != r.Err:
		d.message = r.Err.Error()
	case r.Changed:
		d.message = r.Op.String()
	}
}

// marked lists the selected notes, moved to where a drag in progress would
// put them.
func (d *Driver) marked() []*game.Note {
	chart := d.editor.Chart()
	preview := d.editor.Preview()
	ids := d.editor.Selection()
	for id := range preview {
		if !d.editor.Selected(id) {
			ids = append(ids, id)
		}
	}
	marked := make([]*game.Note, 0, len(ids))
	for _, id := range ids {
		n := chart.Find(id)
		if nil == n {
			continue
		}
		if p, ok := preview[id]; ok {
			moved := *n
			moved.Lane, moved.Ms, moved.EndMs = p.Lane, p.Ms, p.EndMs
			n = &moved
		}
		marked = append(marked, n)
	}
	return marked
}

func (d *Driver) Draw() error {
	chart := d.editor.Chart()
	f := session.Frame{NowMs: d.view.NowMs, Speed: d.view.Speed, Chart: chart}
	taps, holds := chart.Counts()
	modified := ""
	if d.editor.Dirty() {
		modified = "modified"
	}
	status := []string{
		fmt.Sprintf("%-10s %12v", "Tool", d.editor.Tool()),
		fmt.Sprintf("%-10s %12.3f", "Time", float64(d.view.NowMs)/1000),
		fmt.Sprintf("%-10s %12.2f", "Speed", d.view.Speed),
		fmt.Sprintf("%-10s %12v", "Taps", taps),
		fmt.Sprintf("%-10s %12v", "Holds", holds),
		fmt.Sprintf("%-10s %12v", "Selected", len(d.editor.Selection())),
		fmt.Sprintf("%-10s %12v", "Undo", d.editor.UndoDepth()),
		modified,
		"",
		"t h s d m  tools",
		"a x        select all, delete",
		"u          undo",
		"j k        scroll",
		"w q        save, quit",
		"",
		d.message,
	}
	return d.canvas.RenderEdit(f, d.marked(), status)
}
