package theme

import (
	"image/color"

	"git.lost.host/meutraa/vbeat/internal/game"
)

type Theme interface {
	RenderNote(n *game.Note) string
	RenderHoldBody(n *game.Note) string
	RenderSelected(n *game.Note) string
	RenderHitField(lane int) string
	RenderFlash(tier int, alpha float64) string
	RenderFlare(pulse int64, alpha float64) string
	RenderJudgement(name string, alpha float64) string
	Paint(c color.RGBA, s string) string
}
