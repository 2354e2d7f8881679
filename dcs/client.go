package dcs

import (
	"fmt"
	"log/slog"
	"net"
)

// SetRPLLocationCallback is invoked with the resource URL carried by a
// SetRPLLocationRequest; the aux-data prefetcher uses it as its fetch
// endpoint.
type SetRPLLocationCallback func(url string)

// ClientConversation drives the client (processor) side of one DCS
// lease: it answers every request from the server immediately with the
// matching response, per spec.md §4.10.
type ClientConversation struct {
	log         *slog.Logger
	conn        *Conn
	description string
	onRPLURL    SetRPLLocationCallback
	logbook     *Logbook
}

// NewClientConversation wraps raw and begins answering server requests.
// description is reported back in AnnounceResponse. logbook backs
// GetLogEventList/GetLogEvent; pass a session-scoped *Logbook that the
// rest of the processor records diagnostic events into.
func NewClientConversation(raw net.Conn, log *slog.Logger, description string, onRPLURL SetRPLLocationCallback, logbook *Logbook) *ClientConversation {
	cc := &ClientConversation{
		log:         log,
		description: description,
		onRPLURL:    onRPLURL,
		logbook:     logbook,
	}
	cc.conn = NewConn(raw, log, cc.handle)
	return cc
}

// Close tears down the underlying connection.
func (cc *ClientConversation) Close() error { return cc.conn.Close() }

func (cc *ClientConversation) respond(frame []byte) {
	if err := cc.conn.Send(frame); err != nil {
		cc.log.Error("dcs client: send response failed", "error", err)
	}
}

func (cc *ClientConversation) handle(msg Message) {
	switch msg.Kind {
	case KindAnnounceRequest:
		if _, err := DecodeAnnounceRequest(msg.Body, msg.RequestID); err != nil {
			cc.log.Error("dcs client: decode AnnounceRequest", "error", err)
			return
		}
		resp := AnnounceResponse{
			RequestID:   msg.RequestID,
			Description: cc.description,
			Status:      StatusField{Status: StatusSuccessful},
		}
		cc.respond(resp.Encode())

	case KindGetNewLeaseRequest:
		req, err := DecodeGetNewLeaseRequest(msg.Body, msg.RequestID)
		if err != nil {
			cc.log.Error("dcs client: decode GetNewLeaseRequest", "error", err)
			return
		}
		cc.log.Debug("dcs client: lease granted", "duration", req.LeaseDuration)
		resp := GetNewLeaseResponse{RequestID: msg.RequestID, Status: StatusField{Status: StatusSuccessful}}
		cc.respond(resp.Encode())

	case KindGetStatusRequest:
		if _, err := DecodeGetStatusRequest(msg.Body, msg.RequestID); err != nil {
			cc.log.Error("dcs client: decode GetStatusRequest", "error", err)
			return
		}
		resp := GetStatusResponse{RequestID: msg.RequestID, Status: StatusField{Status: StatusSuccessful}}
		cc.respond(resp.Encode())

	case KindSetRPLLocationRequest:
		req, err := DecodeSetRPLLocationRequest(msg.Body, msg.RequestID)
		if err != nil {
			cc.log.Error("dcs client: decode SetRPLLocationRequest", "error", err)
			return
		}
		if cc.onRPLURL != nil {
			cc.onRPLURL(req.ResourceURL)
		}
		resp := SetRPLLocationResponse{RequestID: msg.RequestID, Status: StatusField{Status: StatusSuccessful}}
		cc.respond(resp.Encode())

	case KindSetOutputModeRequest:
		if _, err := DecodeSetOutputModeRequest(msg.Body, msg.RequestID); err != nil {
			cc.log.Error("dcs client: decode SetOutputModeRequest", "error", err)
			return
		}
		resp := SetOutputModeResponse{RequestID: msg.RequestID, Status: StatusField{Status: StatusSuccessful}}
		cc.respond(resp.Encode())

	case KindUpdateTimelineRequest:
		if _, err := DecodeUpdateTimelineRequest(msg.Body, msg.RequestID); err != nil {
			cc.log.Error("dcs client: decode UpdateTimelineRequest", "error", err)
			return
		}
		resp := UpdateTimelineResponse{RequestID: msg.RequestID, Status: StatusField{Status: StatusSuccessful}}
		cc.respond(resp.Encode())

	case KindTerminateLeaseRequest:
		if _, err := DecodeTerminateLeaseRequest(msg.Body, msg.RequestID); err != nil {
			cc.log.Error("dcs client: decode TerminateLeaseRequest", "error", err)
			return
		}
		resp := TerminateLeaseResponse{RequestID: msg.RequestID, Status: StatusField{Status: StatusSuccessful}}
		cc.respond(resp.Encode())

	case KindGetLogEventListRequest:
		req, err := DecodeGetLogEventListRequest(msg.Body, msg.RequestID)
		if err != nil {
			cc.log.Error("dcs client: decode GetLogEventListRequest", "error", err)
			return
		}
		var ids []uint32
		if cc.logbook != nil {
			ids = cc.logbook.IDsBetween(req.TimeStart, req.TimeStop)
		}
		resp := GetLogEventListResponse{RequestID: msg.RequestID, EventIDs: ids, Status: StatusField{Status: StatusSuccessful}}
		cc.respond(resp.Encode())

	case KindGetLogEventRequest:
		req, err := DecodeGetLogEventRequest(msg.Body, msg.RequestID)
		if err != nil {
			cc.log.Error("dcs client: decode GetLogEventRequest", "error", err)
			return
		}
		var resp GetLogEventResponse
		if event, ok := cc.logbookGet(req.EventID); ok {
			resp = GetLogEventResponse{RequestID: msg.RequestID, Text: event.Text, Status: StatusField{Status: StatusSuccessful}}
		} else {
			resp = GetLogEventResponse{
				RequestID: msg.RequestID,
				Status:    StatusField{Status: StatusFailed, Text: fmt.Sprintf("no log event %d", req.EventID)},
			}
		}
		cc.respond(resp.Encode())

	default:
		cc.log.Warn("dcs client: unexpected message from server", "kind", msg.Kind)
	}
}

func (cc *ClientConversation) logbookGet(id uint32) (LogEvent, bool) {
	if cc.logbook == nil {
		return LogEvent{}, false
	}
	return cc.logbook.Get(id)
}
