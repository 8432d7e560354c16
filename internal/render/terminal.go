package render

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"git.lost.host/meutraa/vbeat/internal/config"
	"git.lost.host/meutraa/vbeat/internal/effects"
	"git.lost.host/meutraa/vbeat/internal/game"
	"git.lost.host/meutraa/vbeat/internal/input"
	"git.lost.host/meutraa/vbeat/internal/mapper"
	"git.lost.host/meutraa/vbeat/internal/score"
	"git.lost.host/meutraa/vbeat/internal/session"
	"git.lost.host/meutraa/vbeat/internal/theme"
	"golang.org/x/term"
)

const (
	panelWidth  = 28
	defaultCols = 100
	defaultRows = 40
)

// Terminal draws frames with ANSI escapes. The canvas the mapper works in is
// scaled onto the character grid, so notes appear where the editor would
// find them.
type Terminal struct {
	out     io.Writer
	fd      int
	restore *term.State
	buffer  strings.Builder

	cfg    *config.Config
	mapper *mapper.Mapper
	theme  theme.Theme
	logger *slog.Logger

	cols, rows int
	field      int // columns used by the lanes, the rest is the side panel
	mouse      bool
	cells      [][]string
}

func NewTerminal(out io.Writer, cfg *config.Config, m *mapper.Mapper, th theme.Theme, logger *slog.Logger) *Terminal {
	if nil == logger {
		logger = slog.Default()
	}
	r := &Terminal{out: out, fd: -1, cfg: cfg, mapper: m, theme: th, logger: logger}
	r.Resize(defaultCols, defaultRows)
	return r
}

func (r *Terminal) Init() error {
	if f, ok := r.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.fd = int(f.Fd())
		state, err := term.MakeRaw(r.fd)
		if nil != err {
			return fmt.Errorf("unable to make terminal raw: %w", err)
		}
		r.restore = state
		r.size()
	}

	_, err := fmt.Fprintf(r.out, "%s%s%s",
		"\033[?1049h", // Enable alternate buffer
		"\033[?25l",   // Make the cursor invisible
		"\033[J",      // Clear the screen
	)
	return err
}

// EnableMouse asks the terminal for mouse reports until Deinit.
func (r *Terminal) EnableMouse() error {
	r.mouse = true
	_, err := io.WriteString(r.out, input.MouseOn)
	return err
}

func (r *Terminal) Deinit() error {
	if r.mouse {
		io.WriteString(r.out, input.MouseOff)
		r.mouse = false
	}
	fmt.Fprintf(r.out, "%s%s",
		"\033[?1049l", // Disable alternate buffer
		"\033[?25h",   // Make the cursor visible
	)
	if nil == r.restore {
		return nil
	}
	return term.Restore(r.fd, r.restore)
}

// Resize sets the character grid. The side panel is dropped when the
// terminal is too narrow for it.
func (r *Terminal) Resize(cols, rows int) {
	if cols == r.cols && rows == r.rows {
		return
	}
	r.cols, r.rows = cols, rows
	r.field = cols
	if cols > 2*panelWidth {
		r.field = cols - panelWidth
	}
	r.cells = make([][]string, rows)
	for i := range r.cells {
		r.cells[i] = make([]string, cols)
	}
	// The old frame is in the wrong place now
	r.buffer.WriteString("\033[2J")
}

func (r *Terminal) size() {
	cols, rows, err := term.GetSize(r.fd)
	if nil != err {
		r.logger.Debug("unable to get terminal size", slog.String("error", err.Error()))
		return
	}
	r.Resize(cols, rows)
}

func (r *Terminal) col(x float64) int {
	return int(x / r.mapper.Width() * float64(r.field))
}

func (r *Terminal) row(y float64) int {
	return int(y / r.mapper.Height() * float64(r.rows))
}

// Point is the canvas point at the middle of a cell, the inverse of the
// mapping used to draw.
func (r *Terminal) Point(col, row int) mapper.Point {
	return mapper.Point{
		X: (float64(col) + 0.5) * r.mapper.Width() / float64(r.field),
		Y: r.rowY(row),
	}
}

// rowY is the canvas height at the middle of row.
func (r *Terminal) rowY(row int) float64 {
	return (float64(row) + 0.5) * r.mapper.Height() / float64(r.rows)
}

func (r *Terminal) set(row, col int, s string) {
	if row < 0 || row >= r.rows || col < 0 || col >= r.cols {
		return
	}
	r.cells[row][col] = s
}

// text writes s into consecutive cells. The first cell carries the whole
// string and the rest are emptied so the row keeps its width.
func (r *Terminal) text(row, col int, painted string, width int) {
	r.set(row, col, painted)
	for i := 1; i < width; i++ {
		r.set(row, col+i, "")
	}
}

func (r *Terminal) clear() {
	if r.fd >= 0 {
		r.size()
	}
	for _, row := range r.cells {
		for c := range row {
			row[c] = " "
		}
	}
}

func (r *Terminal) Render(f session.Frame, fx []effects.Effect) error {
	r.clear()
	r.lanes()
	r.notes(f)
	r.effects(f, fx)
	if r.field < r.cols {
		r.panel(f)
	}
	return r.flush()
}

func (r *Terminal) lanes() {
	y := r.mapper.HitLineY()
	row := r.row(y)
	for lane := 0; lane < r.mapper.Lanes(); lane++ {
		left := r.col(r.mapper.ProjectX(r.mapper.LaneLeft(lane), y))
		right := r.col(r.mapper.ProjectX(r.mapper.LaneRight(lane), y))
		for c := left + 1; c < right; c++ {
			r.set(row, c, r.theme.RenderHitField(lane))
		}
	}
}

func (r *Terminal) notes(f session.Frame) {
	from, to := r.mapper.Visible(f.NowMs, f.Speed)
	for _, n := range f.Chart.Window(from, to) {
		if n.Status == game.Hit || n.Status == game.Released {
			continue
		}
		r.note(f, n, r.theme.RenderHoldBody(n), r.theme.RenderNote(n))
	}
}

func (r *Terminal) note(f session.Frame, n *game.Note, body, head string) {
	// A held note is eaten by the hit line
	ms := n.Ms
	if n.Status == game.Holding && ms < f.NowMs {
		ms = f.NowMs
	}
	if n.IsHold() {
		top := max(0, r.row(r.mapper.TimeToY(n.EndMs, f.NowMs, f.Speed)))
		bottom := r.row(r.mapper.TimeToY(ms, f.NowMs, f.Speed))
		center := r.mapper.LaneCenter(n.Lane)
		for row := top; row < bottom && row < r.rows; row++ {
			r.set(row, r.col(r.mapper.ProjectX(center, r.rowY(row))), body)
		}
	}
	p := r.mapper.Project(n.Lane, ms, f.NowMs, f.Speed)
	r.set(r.row(p.Y), r.col(p.X), head)
}

// RenderEdit draws the chart for editing: every note regardless of its
// judgement, the marked notes over them, and status in the side panel.
func (r *Terminal) RenderEdit(f session.Frame, marked []*game.Note, status []string) error {
	r.clear()
	r.lanes()
	from, to := r.mapper.Visible(f.NowMs, f.Speed)
	for _, n := range f.Chart.Window(from, to) {
		r.note(f, n, r.theme.RenderHoldBody(n), r.theme.RenderNote(n))
	}
	for _, n := range marked {
		r.note(f, n, r.theme.RenderSelected(n), r.theme.RenderSelected(n))
	}
	if r.field < r.cols {
		r.lines(status)
	}
	return r.flush()
}

func (r *Terminal) tierName(tier int) string {
	if tier < 0 || tier >= len(r.cfg.Judgement.Tiers) {
		return "MISS"
	}
	return r.cfg.Judgement.Tiers[tier].Name
}

func (r *Terminal) effects(f session.Frame, fx []effects.Effect) {
	hitRow := r.row(r.mapper.HitLineY())
	var judge *effects.Effect
	for i := range fx {
		e := &fx[i]
		if e.Lane < 0 || e.Lane >= r.mapper.Lanes() {
			continue
		}
		col := r.col(r.mapper.Project(e.Lane, f.NowMs, f.NowMs, f.Speed).X)
		switch e.Key.Kind {
		case effects.KindTap:
			r.set(hitRow-1, col, r.theme.RenderFlash(e.Tier, e.Alpha))
		case effects.KindHold:
			r.set(hitRow, col, r.theme.RenderFlare(e.Pulse, e.Alpha))
		case effects.KindJudge:
			if nil == judge || e.BornMs > judge.BornMs {
				judge = e
			}
		}
	}
	if nil == judge {
		return
	}

	name := r.tierName(judge.Tier)
	switch judge.Outcome {
	case score.PressMissed, score.ReleaseMissed, score.Swept:
		name = "MISS"
	}
	row := r.row(r.mapper.Height() / 2)
	r.text(row, r.field/2-len(name)/2, r.theme.RenderJudgement(name, judge.Alpha), len(name))
	if f.Tally.Combo > 1 {
		combo := strconv.Itoa(f.Tally.Combo)
		r.text(row+1, r.field/2-len(combo)/2, combo, len(combo))
	}
}

func (r *Terminal) panel(f session.Frame) {
	tally := f.Tally
	acc := tally.Accuracy()
	lines := []string{
		fmt.Sprintf("%-10s %12v", "Score", tally.Score),
		fmt.Sprintf("%-10s %12v", "Max", tally.MaxScore),
		fmt.Sprintf("%-10s %12v", "Combo", tally.Combo),
		fmt.Sprintf("%-10s %12v", "Max combo", tally.MaxCombo),
		fmt.Sprintf("%-10s %11.2f%%", "Accuracy", acc*100),
		fmt.Sprintf("%-10s %12v", "Grade", score.Grade(acc)),
		"",
	}
	for i, t := range r.cfg.Judgement.Tiers {
		if i < len(tally.Counts) {
			lines = append(lines, fmt.Sprintf("%-10s %12v", t.Name, tally.Counts[i]))
		}
	}
	lines = append(lines,
		fmt.Sprintf("%-10s %12v", "MISS", tally.Misses),
		"",
		fmt.Sprintf("%-10s %12.3f", "Time", float64(f.NowMs)/1000),
		fmt.Sprintf("%-10s %12v", "Notes", len(f.Chart.Notes)),
	)
	switch {
	case f.Finish != session.Running:
		lines = append(lines, "", strings.ToUpper(strings.ReplaceAll(f.Finish.String(), "-", " ")))
	case f.Paused:
		lines = append(lines, "", "PAUSED")
	}

	r.lines(lines)
}

func (r *Terminal) lines(lines []string) {
	col := r.field + 2
	for i, line := range lines {
		r.text(i+1, col, line, len([]rune(line)))
	}
}

func (r *Terminal) flush() error {
	for i, row := range r.cells {
		r.Fill(i+1, 1, strings.Join(row, ""))
	}
	_, err := io.WriteString(r.out, r.buffer.String())
	r.buffer.Reset()
	if nil != err {
		return fmt.Errorf("unable to write frame: %w", err)
	}
	return nil
}

// Fill writes message at the 1 based row and column.
func (r *Terminal) Fill(row, column int, message string) {
	r.buffer.WriteString("\033[")
	r.buffer.WriteString(strconv.Itoa(row))
	r.buffer.WriteString(";")
	r.buffer.WriteString(strconv.Itoa(column))
	r.buffer.WriteString("H")
	r.buffer.WriteString(message)
}
