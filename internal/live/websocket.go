package live

import (
	"context"
	"time"

	"github.com/coder/websocket"
)

const dialTimeout = 5 * time.Second

type wsConn struct {
	c *websocket.Conn
}

// DialWebSocket opens a WebSocket to addr. Samples go out as binary frames;
// anything the collector sends back is discarded.
func DialWebSocket(ctx context.Context, addr string) (Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	c, _, err := websocket.Dial(dctx, addr, nil)
	if err != nil {
		return nil, err
	}
	c.CloseRead(context.Background())
	return &wsConn{c: c}, nil
}

func (w *wsConn) Write(ctx context.Context, msg []byte) error {
	return w.c.Write(ctx, websocket.MessageBinary, msg)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
