package dcs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/dtspro/dcsync/wire"
)

// Message is a fully framed, decoded DCS message ready for dispatch: the
// request ID common to every kind, plus the kind-specific body left
// undecoded until the caller knows which Decode* function to call.
type Message struct {
	Kind      Kind
	RequestID uint32
	Body      *wire.Reader
}

// Conn wraps a single DCS TCP connection: one reader goroutine decoding
// inbound frames, one writer goroutine draining an outbound queue so
// writes are never interleaved (single-writer-in-flight, per spec.md
// §4.10's framing rule).
type Conn struct {
	log     *slog.Logger
	nc      net.Conn
	out     chan []byte
	onMsg   func(Message)
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// NewConn wraps nc. onMsg is invoked from the reader goroutine for every
// decoded message; it must not block.
func NewConn(nc net.Conn, log *slog.Logger, onMsg func(Message)) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		log:    log,
		nc:     nc,
		out:    make(chan []byte, 32),
		onMsg:  onMsg,
		ctx:    ctx,
		cancel: cancel,
	}
	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()
	return c
}

// Send queues a pre-encoded frame (as produced by a message's Encode
// method) for transmission.
func (c *Conn) Send(frame []byte) error {
	select {
	case c.out <- frame:
		return nil
	case <-c.ctx.Done():
		return net.ErrClosed
	}
}

// Close cancels both loops and closes the underlying connection. Safe to
// call more than once.
func (c *Conn) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	c.cancel()
	err := c.nc.Close()
	c.wg.Wait()
	return err
}

func (c *Conn) readLoop() {
	defer c.wg.Done()
	defer c.cancel()

	header := make([]byte, HeaderSize)
	for {
		if _, err := io.ReadFull(c.nc, header); err != nil {
			c.logReadErr("header", err)
			return
		}
		r := wire.NewReader(header)
		kind, length, err := readHeader(r)
		if err != nil {
			c.log.Error("dcs: malformed header", "error", err)
			return
		}

		payload := make([]byte, length)
		if length > 0 {
			if _, err := io.ReadFull(c.nc, payload); err != nil {
				c.logReadErr("payload", err)
				return
			}
		}

		pr := wire.NewReader(payload)
		requestID, err := pr.U32()
		if err != nil {
			c.log.Error("dcs: payload too short for request id", "kind", kind, "error", err)
			return
		}

		c.onMsg(Message{Kind: kind, RequestID: requestID, Body: pr})
	}
}

func (c *Conn) logReadErr(stage string, err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		c.log.Debug("dcs: connection closed", "stage", stage)
		return
	}
	c.log.Error("dcs: read failed", "stage", stage, "error", err)
}

func (c *Conn) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case frame, ok := <-c.out:
			if !ok {
				return
			}
			if _, err := c.nc.Write(frame); err != nil {
				c.log.Error("dcs: write failed", "error", err)
				c.cancel()
				return
			}
		}
	}
}

// SetDeadline arms a read/write deadline d from now on the underlying
// net.Conn, so that a peer that stops responding entirely is detected.
// The server and client conversations do not call it themselves.
func (c *Conn) SetDeadline(d time.Duration) error {
	return c.nc.SetDeadline(time.Now().Add(d))
}
