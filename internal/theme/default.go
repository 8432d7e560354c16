package theme

import (
	"image/color"
	"strconv"
	"strings"

	"git.lost.host/meutraa/vbeat/internal/game"
)

type DefaultTheme struct {
}

func (t *DefaultTheme) RenderNote(n *game.Note) string {
	return t.Paint(noteColor(n), noteSym)
}

func (t *DefaultTheme) RenderHoldBody(n *game.Note) string {
	return t.Paint(noteColor(n), holdSym)
}

func (t *DefaultTheme) RenderSelected(n *game.Note) string {
	return t.Paint(white, selectedSym)
}

func (t *DefaultTheme) RenderHitField(lane int) string {
	return t.Paint(hitLineColor, barSym)
}

func (t *DefaultTheme) RenderFlash(tier int, alpha float64) string {
	c := flashColor
	if tier == game.NoTier {
		c = judgementColors["MISS"]
	}
	return t.Paint(fade(c, alpha), flashSym)
}

func (t *DefaultTheme) RenderFlare(pulse int64, alpha float64) string {
	return t.Paint(fade(flashColor, alpha), flareSyms[pulse%int64(len(flareSyms))])
}

func (t *DefaultTheme) RenderJudgement(name string, alpha float64) string {
	c, ok := judgementColors[name]
	if !ok {
		c = white
	}
	return t.Paint(fade(c, alpha), name)
}

// Paint wraps s in a 24 bit foreground colour.
func (t *DefaultTheme) Paint(c color.RGBA, s string) string {
	var b strings.Builder
	b.WriteString("\033[38;2;")
	b.WriteString(strconv.Itoa(int(c.R)))
	b.WriteByte(';')
	b.WriteString(strconv.Itoa(int(c.G)))
	b.WriteByte(';')
	b.WriteString(strconv.Itoa(int(c.B)))
	b.WriteByte('m')
	b.WriteString(s)
	b.WriteString("\033[0m")
	return b.String()
}

const (
	noteSym  = "⬤"
	holdSym  = "┃"
	barSym   = "-"
	flashSym = "✦"

	selectedSym = "◆"
)

var (
	flareSyms = [...]string{"✺", "✹"}

	white        = color.RGBA{255, 255, 255, 255}
	tapColor     = color.RGBA{200, 255, 0, 255}
	holdColor    = color.RGBA{230, 76, 76, 255}
	holdingColor = color.RGBA{34, 197, 94, 255}
	missedColor  = color.RGBA{106, 106, 106, 255}
	hitLineColor = color.RGBA{255, 76, 32, 255}
	flashColor   = color.RGBA{181, 238, 255, 255}

	judgementColors = map[string]color.RGBA{
		"PERFECT": {16, 175, 255, 255},
		"GREAT":   {255, 183, 77, 255},
		"GOOD":    {76, 255, 76, 255},
		"MISS":    {255, 77, 79, 255},
	}
)

func noteColor(n *game.Note) color.RGBA {
	switch {
	case n.Status == game.Missed:
		return missedColor
	case n.Status == game.Holding:
		return holdingColor
	case n.IsHold():
		return holdColor
	}
	return tapColor
}

// fade darkens c towards black, terminals have no alpha.
func fade(c color.RGBA, alpha float64) color.RGBA {
	alpha = max(0, min(1, alpha))
	return color.RGBA{
		R: uint8(float64(c.R) * alpha),
		G: uint8(float64(c.G) * alpha),
		B: uint8(float64(c.B) * alpha),
		A: c.A,
	}
}
