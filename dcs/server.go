package dcs

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"net"
	"sync/atomic"
)

// SetPlayoutIDCallback notifies the emitter of the playoutID chosen for
// this lease.
type SetPlayoutIDCallback func(playoutID uint32)

// SetProcessorReadyCallback arms or clears the emitter's isProcessorReady
// flag.
type SetProcessorReadyCallback func(ready bool)

// ServerConversation drives the server side of one DCS lease: announce,
// lease negotiation, playoutID assignment, and RPL-location handoff, per
// spec.md §4.10's server conversation description.
type ServerConversation struct {
	log            *slog.Logger
	conn           *Conn
	rplURL         string
	leaseDuration  uint32
	onPlayoutID    SetPlayoutIDCallback
	onReady        SetProcessorReadyCallback
	nextRequestID  atomic.Uint32
	playoutID      atomic.Uint32
	announceReqID  uint32
	leaseReqID     uint32
}

// NewServerConversation accepts raw, wraps it in a Conn, and immediately
// begins the announce handshake. rplURL is the aux-data endpoint this
// session's processor will be told to fetch from.
func NewServerConversation(raw net.Conn, log *slog.Logger, leaseDuration uint32, rplURL string, onPlayoutID SetPlayoutIDCallback, onReady SetProcessorReadyCallback) *ServerConversation {
	sc := &ServerConversation{
		log:           log,
		rplURL:        rplURL,
		leaseDuration: leaseDuration,
		onPlayoutID:   onPlayoutID,
		onReady:       onReady,
	}
	sc.conn = NewConn(raw, log, sc.handle)
	sc.sendAnnounce()
	return sc
}

// Close tears down the underlying connection.
func (sc *ServerConversation) Close() error { return sc.conn.Close() }

func (sc *ServerConversation) newRequestID() uint32 {
	return sc.nextRequestID.Add(1)
}

func (sc *ServerConversation) sendAnnounce() {
	sc.announceReqID = sc.newRequestID()
	req := AnnounceRequest{RequestID: sc.announceReqID, ServerTime: 0, Description: "dcsync dcs-server"}
	if err := sc.conn.Send(req.Encode()); err != nil {
		sc.log.Error("dcs server: send AnnounceRequest failed", "error", err)
	}
}

func (sc *ServerConversation) sendGetNewLease() {
	sc.leaseReqID = sc.newRequestID()
	req := GetNewLeaseRequest{RequestID: sc.leaseReqID, LeaseDuration: sc.leaseDuration}
	if err := sc.conn.Send(req.Encode()); err != nil {
		sc.log.Error("dcs server: send GetNewLeaseRequest failed", "error", err)
	}
}

func (sc *ServerConversation) sendSetRPLLocation() {
	playoutID := randomPlayoutID()
	sc.playoutID.Store(playoutID)
	if sc.onPlayoutID != nil {
		sc.onPlayoutID(playoutID)
	}
	req := SetRPLLocationRequest{RequestID: sc.newRequestID(), PlayoutID: playoutID, ResourceURL: sc.rplURL}
	if err := sc.conn.Send(req.Encode()); err != nil {
		sc.log.Error("dcs server: send SetRPLLocationRequest failed", "error", err)
	}
}

// PollStatus sends a GetStatusRequest; call periodically to learn when
// the processor has primed enough data to start playback.
func (sc *ServerConversation) PollStatus() {
	req := GetStatusRequest{RequestID: sc.newRequestID()}
	if err := sc.conn.Send(req.Encode()); err != nil {
		sc.log.Error("dcs server: send GetStatusRequest failed", "error", err)
	}
}

func (sc *ServerConversation) handle(msg Message) {
	switch msg.Kind {
	case KindAnnounceResponse:
		if msg.RequestID != sc.announceReqID {
			sc.log.Warn("dcs server: AnnounceResponse requestID mismatch", "got", msg.RequestID, "want", sc.announceReqID)
			return
		}
		if _, err := DecodeAnnounceResponse(msg.Body, msg.RequestID); err != nil {
			sc.log.Error("dcs server: decode AnnounceResponse", "error", err)
			return
		}
		sc.sendGetNewLease()

	case KindGetNewLeaseResponse:
		if msg.RequestID != sc.leaseReqID {
			sc.log.Warn("dcs server: GetNewLeaseResponse requestID mismatch", "got", msg.RequestID, "want", sc.leaseReqID)
			return
		}
		resp, err := DecodeGetNewLeaseResponse(msg.Body, msg.RequestID)
		if err != nil {
			sc.log.Error("dcs server: decode GetNewLeaseResponse", "error", err)
			return
		}
		if resp.Status.Status != StatusSuccessful {
			sc.log.Warn("dcs server: lease refused", "status", resp.Status.Status, "text", resp.Status.Text)
			return
		}
		sc.sendSetRPLLocation()

	case KindGetStatusResponse:
		resp, err := DecodeGetStatusResponse(msg.Body, msg.RequestID)
		if err != nil {
			sc.log.Error("dcs server: decode GetStatusResponse", "error", err)
			return
		}
		if resp.Status.Status == StatusSuccessful && sc.onReady != nil {
			sc.onReady(true)
		}

	default:
		sc.log.Warn("dcs server: unexpected message from client", "kind", msg.Kind)
	}
}

func randomPlayoutID() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable on any real
		// platform; fall back to a fixed value rather than panicking.
		return 1
	}
	return binary.BigEndian.Uint32(b[:])
}
