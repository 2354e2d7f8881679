// Package dcs implements the DCS TCP control protocol from spec.md §4.10:
// a 20-byte fixed header (16-byte pack key with a 2-byte message kind at
// offsets 11-12, plus a BER-4 payload length) followed by a per-message
// payload, carried over a persistent TCP connection with single-writer-
// in-flight queuing.
package dcs

import (
	"fmt"

	"github.com/dtspro/dcsync/wire"
)

// HeaderSize is the fixed header width: 16-byte pack key + BER-4 length.
const HeaderSize = 20

// Kind identifies a DCS message type by its (kind1, kind2) byte pair,
// carried at offsets 11-12 of the header pack key.
type Kind uint16

const (
	KindAnnounceRequest         Kind = 0x0200
	KindAnnounceResponse        Kind = 0x0201
	KindGetNewLeaseRequest      Kind = 0x0202
	KindGetNewLeaseResponse     Kind = 0x0203
	KindGetStatusRequest        Kind = 0x0204
	KindGetStatusResponse       Kind = 0x0205
	KindSetRPLLocationRequest   Kind = 0x0206
	KindSetRPLLocationResponse  Kind = 0x0207
	KindSetOutputModeRequest    Kind = 0x0208
	KindSetOutputModeResponse   Kind = 0x0209
	KindUpdateTimelineRequest   Kind = 0x020A
	KindUpdateTimelineResponse  Kind = 0x020B
	KindTerminateLeaseRequest   Kind = 0x020C
	KindTerminateLeaseResponse  Kind = 0x020D
	KindGetLogEventListRequest  Kind = 0x0210
	KindGetLogEventListResponse Kind = 0x0211
	KindGetLogEventRequest      Kind = 0x0212
	KindGetLogEventResponse     Kind = 0x0213
)

func (k Kind) String() string {
	switch k {
	case KindAnnounceRequest:
		return "AnnounceRequest"
	case KindAnnounceResponse:
		return "AnnounceResponse"
	case KindGetNewLeaseRequest:
		return "GetNewLeaseRequest"
	case KindGetNewLeaseResponse:
		return "GetNewLeaseResponse"
	case KindGetStatusRequest:
		return "GetStatusRequest"
	case KindGetStatusResponse:
		return "GetStatusResponse"
	case KindSetRPLLocationRequest:
		return "SetRPLLocationRequest"
	case KindSetRPLLocationResponse:
		return "SetRPLLocationResponse"
	case KindSetOutputModeRequest:
		return "SetOutputModeRequest"
	case KindSetOutputModeResponse:
		return "SetOutputModeResponse"
	case KindUpdateTimelineRequest:
		return "UpdateTimelineRequest"
	case KindUpdateTimelineResponse:
		return "UpdateTimelineResponse"
	case KindTerminateLeaseRequest:
		return "TerminateLeaseRequest"
	case KindTerminateLeaseResponse:
		return "TerminateLeaseResponse"
	case KindGetLogEventListRequest:
		return "GetLogEventListRequest"
	case KindGetLogEventListResponse:
		return "GetLogEventListResponse"
	case KindGetLogEventRequest:
		return "GetLogEventRequest"
	case KindGetLogEventResponse:
		return "GetLogEventResponse"
	default:
		return fmt.Sprintf("Kind(0x%04X)", uint16(k))
	}
}

// packKeyBase is the 16-byte SMPTE pack key shared by every DCS message;
// bytes 11-12 are overwritten with the message Kind. The concrete
// SMPTE-registered value is unspecified by spec.md; this is an
// implementation-chosen, SMPTE-UL-shaped placeholder.
var packKeyBase = wire.PackKey{0x06, 0x0E, 0x2B, 0x34, 0x02, 0x05, 0x01, 0x01, 0x0D, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}

func packKeyFor(k Kind) wire.PackKey {
	pk := packKeyBase
	pk[11] = byte(k >> 8)
	pk[12] = byte(k)
	return pk
}

func kindFromPackKey(pk wire.PackKey) Kind {
	return Kind(pk[11])<<8 | Kind(pk[12])
}

// writeHeader appends a 20-byte header for kind with the given payload
// length to w.
func writeHeader(w *wire.Writer, k Kind, payloadLen uint32) {
	w.WriteUL(packKeyFor(k))
	w.BER4(payloadLen)
}

// readHeader reads a 20-byte header and returns the message kind and
// payload length.
func readHeader(r *wire.Reader) (Kind, uint32, error) {
	pk, err := r.ReadUL()
	if err != nil {
		return 0, 0, fmt.Errorf("dcs: header pack-key: %w", err)
	}
	length, err := r.BER4()
	if err != nil {
		return 0, 0, fmt.Errorf("dcs: header length: %w", err)
	}
	return kindFromPackKey(pk), length, nil
}
