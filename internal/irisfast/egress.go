package irisfast

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Egress sends replies to a room.
type Egress interface {
	SendText(ctx context.Context, room, message string) error
	SendImage(ctx context.Context, room, imageBase64 string) error
}

// NewEgress picks the reply path: "http", "ws", or "auto" (WebSocket while
// connected, falling back to HTTP once per failed frame). dryrun logs instead of sending.
func NewEgress(mode string, dryrun bool, c *Client, ws *WebSocket, logger *zap.Logger) Egress {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &egress{mode: mode, dryrun: dryrun, http: c, ws: ws, logger: logger}
}

type egress struct {
	mode   string
	dryrun bool
	http   *Client
	ws     *WebSocket
	logger *zap.Logger
}

func (e *egress) SendText(ctx context.Context, room, message string) error {
	return e.send(ctx, ReplyRequest{Type: "text", Room: room, Data: message})
}

func (e *egress) SendImage(ctx context.Context, room, imageBase64 string) error {
	return e.send(ctx, ReplyRequest{Type: "image", Room: room, Data: imageBase64})
}

func (e *egress) send(ctx context.Context, req ReplyRequest) error {
	if e.dryrun {
		e.logger.Info("egress_dryrun", zap.String("type", req.Type), zap.String("room", req.Room), zap.Int("bytes", len(req.Data)))
		return nil
	}
	switch e.mode {
	case "ws":
		if e.ws == nil {
			return errors.New("ws egress not available")
		}
		return e.ws.WriteJSON(ctx, &req)
	case "auto":
		if e.ws != nil && e.ws.State() == WSStateConnected {
			err := e.ws.WriteJSON(ctx, &req)
			if err == nil || e.http == nil {
				return err
			}
			e.logger.Warn("egress_fallback", zap.String("type", req.Type), zap.String("room", req.Room), zap.Error(err))
		}
	}
	if e.http == nil {
		return errors.New("http egress not available")
	}
	return e.http.Reply(ctx, req)
}
