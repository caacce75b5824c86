package bot

import (
	"context"
	"encoding/base64"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
	"github.com/park285/Cheese-Mancala-bot/internal/render"
)

// Egress is the reply side of the chat transport.
type Egress interface {
	SendText(ctx context.Context, room, message string) error
	SendImage(ctx context.Context, room, imageBase64 string) error
}

// Presenter delivers text and boards to a room. With images disabled the
// board is appended to the text as an ASCII diagram.
type Presenter struct {
	out      Egress
	renderer *render.Renderer
	images   bool
	logger   *zap.Logger
}

func NewPresenter(out Egress, images bool, logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{out: out, renderer: render.NewRenderer(), images: images, logger: logger}
}

func (p *Presenter) Text(ctx context.Context, room, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return p.out.SendText(ctx, room, text)
}

func (p *Presenter) Board(ctx context.Context, room, text string, b mancala.Board, opts render.Options) error {
	if !p.images {
		board := render.Text(b)
		if strings.TrimSpace(text) != "" {
			board = text + "\n\n" + board
		}
		return p.out.SendText(ctx, room, board)
	}
	if err := p.Text(ctx, room, text); err != nil {
		return err
	}
	png, err := p.renderer.RenderPNG(ctx, b, opts)
	if err != nil {
		p.logger.Warn("render_error", zap.String("room", room), zap.Error(err))
		return p.out.SendText(ctx, room, render.Text(b))
	}
	return p.out.SendImage(ctx, room, base64.StdEncoding.EncodeToString(png))
}
