package dcs

import (
	"io"
	"log/slog"
	"net"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConnSendAndReceive(t *testing.T) {
	t.Parallel()

	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	received := make(chan Message, 1)
	connB := NewConn(b, discardLogger(), func(m Message) { received <- m })
	defer connB.Close()

	connA := NewConn(a, discardLogger(), func(Message) {})
	defer connA.Close()

	req := AnnounceRequest{RequestID: 55, ServerTime: 42, Description: "hello"}
	if err := connA.Send(req.Encode()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Kind != KindAnnounceRequest {
			t.Fatalf("kind = %v, want AnnounceRequest", msg.Kind)
		}
		if msg.RequestID != 55 {
			t.Fatalf("requestID = %d, want 55", msg.RequestID)
		}
		got, err := DecodeAnnounceRequest(msg.Body, msg.RequestID)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Description != "hello" {
			t.Fatalf("description = %q, want hello", got.Description)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestConnCloseUnblocksLoops(t *testing.T) {
	t.Parallel()

	a, b := net.Pipe()
	defer b.Close()

	conn := NewConn(a, discardLogger(), func(Message) {})
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Second close must be a no-op, not a panic or block.
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
