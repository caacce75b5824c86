package irisfast

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrNotConnected = errors.New("ws not connected")

// WebSocket receives chat events from Iris and can also carry replies.
// After the first successful Connect a supervisor goroutine keeps the
// connection alive, redialing up to maxReconnect times per outage.
type WebSocket struct {
	url          string
	headers      HeaderProvider
	logger       *zap.Logger
	maxReconnect int
	pingInterval time.Duration

	mu    sync.RWMutex
	conn  *websocket.Conn
	state WebSocketState

	writeMu sync.Mutex

	cbMu     sync.RWMutex
	nextCb   int
	msgCbs   map[int]MessageCallback
	stateCbs map[int]StateCallback

	cancel context.CancelFunc
	done   chan struct{}
}

func NewWebSocket(url string, maxReconnect int, logger *zap.Logger) *WebSocket {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocket{
		url:          url,
		logger:       logger,
		maxReconnect: maxReconnect,
		pingInterval: 30 * time.Second,
		msgCbs:       make(map[int]MessageCallback),
		stateCbs:     make(map[int]StateCallback),
	}
}

// SetHeaderProvider adds headers to every handshake. Call before Connect.
func (ws *WebSocket) SetHeaderProvider(h HeaderProvider) { ws.headers = h }

func (ws *WebSocket) OnMessage(cb MessageCallback) int {
	ws.cbMu.Lock()
	defer ws.cbMu.Unlock()
	ws.nextCb++
	ws.msgCbs[ws.nextCb] = cb
	return ws.nextCb
}

func (ws *WebSocket) RemoveMessageCallback(id int) {
	ws.cbMu.Lock()
	delete(ws.msgCbs, id)
	ws.cbMu.Unlock()
}

func (ws *WebSocket) OnStateChange(cb StateCallback) int {
	ws.cbMu.Lock()
	defer ws.cbMu.Unlock()
	ws.nextCb++
	ws.stateCbs[ws.nextCb] = cb
	return ws.nextCb
}

func (ws *WebSocket) RemoveStateCallback(id int) {
	ws.cbMu.Lock()
	delete(ws.stateCbs, id)
	ws.cbMu.Unlock()
}

func (ws *WebSocket) State() WebSocketState {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.state
}

func (ws *WebSocket) Connect(ctx context.Context) error {
	ws.mu.Lock()
	if ws.cancel != nil {
		ws.mu.Unlock()
		return nil
	}
	root, cancel := context.WithCancel(context.Background())
	ws.cancel = cancel
	ws.done = make(chan struct{})
	ws.mu.Unlock()

	ws.setState(WSStateConnecting)
	conn, err := ws.dial(ctx)
	if err != nil {
		ws.mu.Lock()
		ws.cancel = nil
		ws.mu.Unlock()
		cancel()
		close(ws.done)
		ws.setState(WSStateFailed)
		return err
	}
	ws.attach(conn)
	go ws.supervise(root, conn)
	return nil
}

func (ws *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dctx, ws.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      ws.buildHeaders(),
	})
	return conn, err
}

func (ws *WebSocket) attach(conn *websocket.Conn) {
	ws.mu.Lock()
	ws.conn = conn
	ws.mu.Unlock()
	ws.setState(WSStateConnected)
}

func (ws *WebSocket) supervise(ctx context.Context, conn *websocket.Conn) {
	defer close(ws.done)
	for {
		err := ws.serve(ctx, conn)
		ws.mu.Lock()
		ws.conn = nil
		ws.mu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "reconnect")
		if ctx.Err() != nil {
			ws.setState(WSStateDisconnected)
			return
		}
		ws.logger.Warn("iris_ws_lost", zap.Error(err))
		ws.setState(WSStateReconnecting)

		conn = nil
		for attempt := 1; attempt <= ws.maxReconnect && conn == nil; attempt++ {
			if sleepCtx(ctx, backoff(attempt)) != nil {
				ws.setState(WSStateDisconnected)
				return
			}
			c, derr := ws.dial(ctx)
			if derr != nil {
				ws.logger.Debug("iris_ws_redial_error", zap.Int("attempt", attempt), zap.Error(derr))
				continue
			}
			conn = c
		}
		if conn == nil {
			ws.setState(WSStateFailed)
			return
		}
		ws.attach(conn)
	}
}

// serve reads frames until the connection breaks. Two missed pings in a row break it too.
func (ws *WebSocket) serve(ctx context.Context, conn *websocket.Conn) error {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		t := time.NewTicker(ws.pingInterval)
		defer t.Stop()
		misses := 0
		for {
			select {
			case <-sctx.Done():
				return
			case <-t.C:
			}
			pctx, pcancel := context.WithTimeout(sctx, 3*time.Second)
			err := conn.Ping(pctx)
			pcancel()
			if err == nil {
				misses = 0
				continue
			}
			if misses++; misses >= 2 {
				cancel()
				return
			}
		}
	}()

	for {
		var msg Message
		if err := wsjson.Read(sctx, conn, &msg); err != nil {
			return err
		}
		ws.cbMu.RLock()
		cbs := make([]MessageCallback, 0, len(ws.msgCbs))
		for _, cb := range ws.msgCbs {
			cbs = append(cbs, cb)
		}
		ws.cbMu.RUnlock()
		for _, cb := range cbs {
			cb(&msg)
		}
	}
}

// WriteJSON sends one frame; writes are serialized.
func (ws *WebSocket) WriteJSON(ctx context.Context, v any) error {
	ws.mu.RLock()
	conn, state := ws.conn, ws.state
	ws.mu.RUnlock()
	if conn == nil || state != WSStateConnected {
		return ErrNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	return wsjson.Write(ctx, conn, v)
}

func (ws *WebSocket) setState(state WebSocketState) {
	ws.mu.Lock()
	ws.state = state
	ws.mu.Unlock()

	ws.cbMu.RLock()
	cbs := make([]StateCallback, 0, len(ws.stateCbs))
	for _, cb := range ws.stateCbs {
		cbs = append(cbs, cb)
	}
	ws.cbMu.RUnlock()
	for _, cb := range cbs {
		cb(state)
	}
}

func (ws *WebSocket) Close(ctx context.Context) error {
	ws.mu.Lock()
	cancel, done, conn := ws.cancel, ws.done, ws.conn
	ws.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (ws *WebSocket) buildHeaders() http.Header {
	hdr := http.Header{}
	if ws.headers == nil {
		return hdr
	}
	for k, v := range ws.headers() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
