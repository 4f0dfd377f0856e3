package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/onnwee/chat-relay/event"
	"github.com/onnwee/chat-relay/registry"
	"github.com/onnwee/chat-relay/telemetry"
)

const (
	outboundBufferSize = 256
	heartbeatInterval  = time.Second
	readDeadline       = 60 * time.Second
	writeDeadline      = 10 * time.Second
	maxFrameSize       = 64 * 1024
)

// Conn is the per-socket unit of concurrency. After the handshake it runs a
// reader loop and a writer loop (the writer also owns the heartbeat ticker so
// pings are interleaved with real messages in send order) until the socket
// closes, then deregisters itself.
type Conn struct {
	id       uuid.UUID
	uid      uint64
	sock     *websocket.Conn
	outbound chan event.Message
	done     chan struct{}
	reg      *registry.Registry
	disp     *Dispatcher
	log      *slog.Logger
}

func newConn(uid uint64, sock *websocket.Conn, reg *registry.Registry, disp *Dispatcher) *Conn {
	id := uuid.New()
	return &Conn{
		id:       id,
		uid:      uid,
		sock:     sock,
		outbound: make(chan event.Message, outboundBufferSize),
		done:     make(chan struct{}),
		reg:      reg,
		disp:     disp,
		log:      slog.Default().With(slog.Uint64("uid", uid), slog.String("conn", id.String())),
	}
}

// run registers the connection, starts the writer, and drives the reader
// until the socket closes. It blocks for the life of the connection.
func (c *Conn) run(ctx context.Context) {
	c.reg.InsertUserConnection(c.uid, c.id)
	c.reg.InsertConnectionChannel(c.id, c.outbound)
	c.log.Info("connection open")

	telemetry.Go("conn-writer", c.writePump)
	c.readPump(ctx)

	// Closing: index removal only; other connections of the same user are
	// untouched. The done channel stops the writer, which closes the socket.
	c.reg.RemoveConnectionChannel(c.id)
	c.reg.RemoveUserConnection(c.uid, c.id)
	close(c.done)
	c.log.Info("connection closed")
}

// readPump parses inbound frames and queues them for dispatch. Malformed
// frames are logged and dropped; the connection stays open. Socket errors and
// close frames end the loop.
func (c *Conn) readPump(ctx context.Context) {
	c.sock.SetReadLimit(maxFrameSize)
	_ = c.sock.SetReadDeadline(time.Now().Add(readDeadline))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		kind, data, err := c.sock.ReadMessage()
		if err != nil {
			c.logReadEnd(err)
			return
		}
		switch kind {
		case websocket.TextMessage:
			var msg event.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				c.log.Info("dropping malformed frame", slog.Any("err", err))
				telemetry.CountDrop(telemetry.DropMalformed)
				continue
			}
			if err := msg.Validate(); err != nil {
				c.log.Info("dropping inconsistent frame", slog.Any("err", err))
				telemetry.CountDrop(telemetry.DropMalformed)
				continue
			}
			if err := c.disp.Enqueue(ctx, event.Envelope{ConnID: c.id, Msg: msg}); err != nil {
				return
			}
		case websocket.BinaryMessage:
			c.log.Debug("ignoring binary frame", slog.Int("bytes", len(data)))
		}
	}
}

// writePump serializes outbound messages to the socket and sends a ping on a
// fixed interval. It is the only goroutine that writes to the socket.
func (c *Conn) writePump() {
	ticker := time.NewTicker(heartbeatInterval)
	defer func() {
		ticker.Stop()
		if err := c.sock.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.log.Debug("socket close", slog.Any("err", err))
		}
	}()

	for {
		select {
		case msg := <-c.outbound:
			data, err := json.Marshal(msg)
			if err != nil {
				c.log.Error("marshal outbound message", slog.Any("err", err))
				continue
			}
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logWriteEnd(err)
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logWriteEnd(err)
				return
			}
		case <-c.done:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeDeadline))
			_ = c.sock.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Conn) logReadEnd(err error) {
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.log.Info("client disconnected")
	case errors.Is(err, io.EOF):
		c.log.Info("socket closed")
	default:
		c.log.Info("read ended", slog.Any("err", err))
	}
}

func (c *Conn) logWriteEnd(err error) {
	c.log.Info("write ended", slog.Any("err", err))
}
