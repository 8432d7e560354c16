package render

import (
	"git.lost.host/meutraa/vbeat/internal/effects"
	"git.lost.host/meutraa/vbeat/internal/session"
)

// Renderer draws one frame at a time. It only reads the frame and the
// effects, judgement never happens here.
type Renderer interface {
	Init() error
	Deinit() error
	Render(f session.Frame, fx []effects.Effect) error
}
