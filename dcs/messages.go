package dcs

import (
	"fmt"

	"github.com/dtspro/dcsync/wire"
)

func writeString(w *wire.Writer, s string) {
	w.BER4(uint32(len(s)))
	w.Bytes([]byte(s))
}

func readString(r *wire.Reader) (string, error) {
	n, err := r.BER4()
	if err != nil {
		return "", err
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return "", fmt.Errorf("dcs: string body: %w", err)
	}
	return string(b), nil
}

func writeStatus(w *wire.Writer, s StatusField) {
	w.U8(uint8(s.Status))
	writeString(w, s.Text)
}

func readStatus(r *wire.Reader) (StatusField, error) {
	b, err := r.U8()
	if err != nil {
		return StatusField{}, err
	}
	text, err := readString(r)
	if err != nil {
		return StatusField{}, err
	}
	return StatusField{Status: Status(b), Text: text}, nil
}

// frame builds a complete header+payload message: kind, requestID, then
// body (already encoded, not including requestID).
func frame(k Kind, requestID uint32, body []byte) []byte {
	payload := wire.NewWriter()
	payload.U32(requestID)
	payload.Bytes(body)

	w := wire.NewWriter()
	writeHeader(w, k, uint32(len(payload.Buf)))
	w.Bytes(payload.Buf)
	return w.Buf
}

// AnnounceRequest (kind 02 00).
type AnnounceRequest struct {
	RequestID   uint32
	ServerTime  int64
	Description string
}

func (m AnnounceRequest) Encode() []byte {
	w := wire.NewWriter()
	w.I64(m.ServerTime)
	writeString(w, m.Description)
	return frame(KindAnnounceRequest, m.RequestID, w.Buf)
}

func DecodeAnnounceRequest(r *wire.Reader, requestID uint32) (AnnounceRequest, error) {
	t, err := r.I64()
	if err != nil {
		return AnnounceRequest{}, err
	}
	desc, err := readString(r)
	if err != nil {
		return AnnounceRequest{}, err
	}
	return AnnounceRequest{RequestID: requestID, ServerTime: t, Description: desc}, nil
}

// AnnounceResponse (kind 02 01).
type AnnounceResponse struct {
	RequestID   uint32
	ClientTime  int64
	Description string
	Status      StatusField
}

func (m AnnounceResponse) Encode() []byte {
	w := wire.NewWriter()
	w.I64(m.ClientTime)
	writeString(w, m.Description)
	writeStatus(w, m.Status)
	return frame(KindAnnounceResponse, m.RequestID, w.Buf)
}

func DecodeAnnounceResponse(r *wire.Reader, requestID uint32) (AnnounceResponse, error) {
	t, err := r.I64()
	if err != nil {
		return AnnounceResponse{}, err
	}
	desc, err := readString(r)
	if err != nil {
		return AnnounceResponse{}, err
	}
	status, err := readStatus(r)
	if err != nil {
		return AnnounceResponse{}, err
	}
	return AnnounceResponse{RequestID: requestID, ClientTime: t, Description: desc, Status: status}, nil
}

// GetNewLeaseRequest (kind 02 02).
type GetNewLeaseRequest struct {
	RequestID    uint32
	LeaseDuration uint32
}

func (m GetNewLeaseRequest) Encode() []byte {
	w := wire.NewWriter()
	w.U32(m.LeaseDuration)
	return frame(KindGetNewLeaseRequest, m.RequestID, w.Buf)
}

func DecodeGetNewLeaseRequest(r *wire.Reader, requestID uint32) (GetNewLeaseRequest, error) {
	d, err := r.U32()
	if err != nil {
		return GetNewLeaseRequest{}, err
	}
	return GetNewLeaseRequest{RequestID: requestID, LeaseDuration: d}, nil
}

// GetNewLeaseResponse (kind 02 03).
type GetNewLeaseResponse struct {
	RequestID uint32
	Status    StatusField
}

func (m GetNewLeaseResponse) Encode() []byte {
	w := wire.NewWriter()
	writeStatus(w, m.Status)
	return frame(KindGetNewLeaseResponse, m.RequestID, w.Buf)
}

func DecodeGetNewLeaseResponse(r *wire.Reader, requestID uint32) (GetNewLeaseResponse, error) {
	status, err := readStatus(r)
	if err != nil {
		return GetNewLeaseResponse{}, err
	}
	return GetNewLeaseResponse{RequestID: requestID, Status: status}, nil
}

// GetStatusRequest (kind 02 04).
type GetStatusRequest struct {
	RequestID uint32
}

func (m GetStatusRequest) Encode() []byte {
	return frame(KindGetStatusRequest, m.RequestID, nil)
}

func DecodeGetStatusRequest(r *wire.Reader, requestID uint32) (GetStatusRequest, error) {
	return GetStatusRequest{RequestID: requestID}, nil
}

// GetStatusResponse (kind 02 05). Status is Processing until the server
// enters Playing, Successful thereafter.
type GetStatusResponse struct {
	RequestID uint32
	Status    StatusField
}

func (m GetStatusResponse) Encode() []byte {
	w := wire.NewWriter()
	writeStatus(w, m.Status)
	return frame(KindGetStatusResponse, m.RequestID, w.Buf)
}

func DecodeGetStatusResponse(r *wire.Reader, requestID uint32) (GetStatusResponse, error) {
	status, err := readStatus(r)
	if err != nil {
		return GetStatusResponse{}, err
	}
	return GetStatusResponse{RequestID: requestID, Status: status}, nil
}

// SetRPLLocationRequest (kind 02 06).
type SetRPLLocationRequest struct {
	RequestID   uint32
	PlayoutID   uint32
	ResourceURL string
}

func (m SetRPLLocationRequest) Encode() []byte {
	w := wire.NewWriter()
	w.U32(m.PlayoutID)
	writeString(w, m.ResourceURL)
	return frame(KindSetRPLLocationRequest, m.RequestID, w.Buf)
}

func DecodeSetRPLLocationRequest(r *wire.Reader, requestID uint32) (SetRPLLocationRequest, error) {
	playoutID, err := r.U32()
	if err != nil {
		return SetRPLLocationRequest{}, err
	}
	url, err := readString(r)
	if err != nil {
		return SetRPLLocationRequest{}, err
	}
	return SetRPLLocationRequest{RequestID: requestID, PlayoutID: playoutID, ResourceURL: url}, nil
}

// SetRPLLocationResponse (kind 02 07).
type SetRPLLocationResponse struct {
	RequestID uint32
	Status    StatusField
}

func (m SetRPLLocationResponse) Encode() []byte {
	w := wire.NewWriter()
	writeStatus(w, m.Status)
	return frame(KindSetRPLLocationResponse, m.RequestID, w.Buf)
}

func DecodeSetRPLLocationResponse(r *wire.Reader, requestID uint32) (SetRPLLocationResponse, error) {
	status, err := readStatus(r)
	if err != nil {
		return SetRPLLocationResponse{}, err
	}
	return SetRPLLocationResponse{RequestID: requestID, Status: status}, nil
}

// SetOutputModeRequest (kind 02 08).
type SetOutputModeRequest struct {
	RequestID uint32
	Enable    bool
}

func (m SetOutputModeRequest) Encode() []byte {
	w := wire.NewWriter()
	w.Bool(m.Enable)
	return frame(KindSetOutputModeRequest, m.RequestID, w.Buf)
}

func DecodeSetOutputModeRequest(r *wire.Reader, requestID uint32) (SetOutputModeRequest, error) {
	enable, err := r.Bool()
	if err != nil {
		return SetOutputModeRequest{}, err
	}
	return SetOutputModeRequest{RequestID: requestID, Enable: enable}, nil
}

// SetOutputModeResponse (kind 02 09).
type SetOutputModeResponse struct {
	RequestID uint32
	Status    StatusField
}

func (m SetOutputModeResponse) Encode() []byte {
	w := wire.NewWriter()
	writeStatus(w, m.Status)
	return frame(KindSetOutputModeResponse, m.RequestID, w.Buf)
}

func DecodeSetOutputModeResponse(r *wire.Reader, requestID uint32) (SetOutputModeResponse, error) {
	status, err := readStatus(r)
	if err != nil {
		return SetOutputModeResponse{}, err
	}
	return SetOutputModeResponse{RequestID: requestID, Status: status}, nil
}

// UpdateTimelineRequest (kind 02 0A). Extension is an opaque, unparsed
// list of extension KLVs carried verbatim; v1 senders emit it empty.
type UpdateTimelineRequest struct {
	RequestID        uint32
	PlayoutID        uint32
	TimelinePosition uint64
	EditRateNum      uint64
	EditRateDen      uint64
	Extension        []byte
}

func (m UpdateTimelineRequest) Encode() []byte {
	w := wire.NewWriter()
	w.U32(m.PlayoutID)
	w.U64(m.TimelinePosition)
	w.U64(m.EditRateNum)
	w.U64(m.EditRateDen)
	w.BER4(uint32(len(m.Extension)))
	w.Bytes(m.Extension)
	return frame(KindUpdateTimelineRequest, m.RequestID, w.Buf)
}

func DecodeUpdateTimelineRequest(r *wire.Reader, requestID uint32) (UpdateTimelineRequest, error) {
	var m UpdateTimelineRequest
	m.RequestID = requestID
	var err error
	if m.PlayoutID, err = r.U32(); err != nil {
		return m, err
	}
	if m.TimelinePosition, err = r.U64(); err != nil {
		return m, err
	}
	if m.EditRateNum, err = r.U64(); err != nil {
		return m, err
	}
	if m.EditRateDen, err = r.U64(); err != nil {
		return m, err
	}
	extLen, err := r.BER4()
	if err != nil {
		return m, err
	}
	ext, err := r.Bytes(int(extLen))
	if err != nil {
		return m, fmt.Errorf("dcs: extension KLVs: %w", err)
	}
	m.Extension = append([]byte(nil), ext...)
	return m, nil
}

// UpdateTimelineResponse (kind 02 0B).
type UpdateTimelineResponse struct {
	RequestID uint32
	Status    StatusField
}

func (m UpdateTimelineResponse) Encode() []byte {
	w := wire.NewWriter()
	writeStatus(w, m.Status)
	return frame(KindUpdateTimelineResponse, m.RequestID, w.Buf)
}

func DecodeUpdateTimelineResponse(r *wire.Reader, requestID uint32) (UpdateTimelineResponse, error) {
	status, err := readStatus(r)
	if err != nil {
		return UpdateTimelineResponse{}, err
	}
	return UpdateTimelineResponse{RequestID: requestID, Status: status}, nil
}

// TerminateLeaseRequest (kind 02 0C).
type TerminateLeaseRequest struct {
	RequestID uint32
}

func (m TerminateLeaseRequest) Encode() []byte {
	return frame(KindTerminateLeaseRequest, m.RequestID, nil)
}

func DecodeTerminateLeaseRequest(r *wire.Reader, requestID uint32) (TerminateLeaseRequest, error) {
	return TerminateLeaseRequest{RequestID: requestID}, nil
}

// TerminateLeaseResponse (kind 02 0D).
type TerminateLeaseResponse struct {
	RequestID uint32
	Status    StatusField
}

func (m TerminateLeaseResponse) Encode() []byte {
	w := wire.NewWriter()
	writeStatus(w, m.Status)
	return frame(KindTerminateLeaseResponse, m.RequestID, w.Buf)
}

func DecodeTerminateLeaseResponse(r *wire.Reader, requestID uint32) (TerminateLeaseResponse, error) {
	status, err := readStatus(r)
	if err != nil {
		return TerminateLeaseResponse{}, err
	}
	return TerminateLeaseResponse{RequestID: requestID, Status: status}, nil
}

// GetLogEventListRequest (kind 02 10).
type GetLogEventListRequest struct {
	RequestID uint32
	TimeStart int64
	TimeStop  int64
}

func (m GetLogEventListRequest) Encode() []byte {
	w := wire.NewWriter()
	w.I64(m.TimeStart)
	w.I64(m.TimeStop)
	return frame(KindGetLogEventListRequest, m.RequestID, w.Buf)
}

func DecodeGetLogEventListRequest(r *wire.Reader, requestID uint32) (GetLogEventListRequest, error) {
	start, err := r.I64()
	if err != nil {
		return GetLogEventListRequest{}, err
	}
	stop, err := r.I64()
	if err != nil {
		return GetLogEventListRequest{}, err
	}
	return GetLogEventListRequest{RequestID: requestID, TimeStart: start, TimeStop: stop}, nil
}

// GetLogEventListResponse (kind 02 11): count, a BER-4 itemLength fixed
// at 4 (each ID is a u32), the IDs, then status.
type GetLogEventListResponse struct {
	RequestID uint32
	EventIDs  []uint32
	Status    StatusField
}

func (m GetLogEventListResponse) Encode() []byte {
	w := wire.NewWriter()
	w.U32(uint32(len(m.EventIDs)))
	w.BER4(4)
	for _, id := range m.EventIDs {
		w.U32(id)
	}
	writeStatus(w, m.Status)
	return frame(KindGetLogEventListResponse, m.RequestID, w.Buf)
}

func DecodeGetLogEventListResponse(r *wire.Reader, requestID uint32) (GetLogEventListResponse, error) {
	count, err := r.U32()
	if err != nil {
		return GetLogEventListResponse{}, err
	}
	itemLen, err := r.BER4()
	if err != nil {
		return GetLogEventListResponse{}, err
	}
	if itemLen != 4 {
		return GetLogEventListResponse{}, fmt.Errorf("dcs: GetLogEventListResponse itemLength = %d, want 4", itemLen)
	}
	ids := make([]uint32, count)
	for i := range ids {
		if ids[i], err = r.U32(); err != nil {
			return GetLogEventListResponse{}, err
		}
	}
	status, err := readStatus(r)
	if err != nil {
		return GetLogEventListResponse{}, err
	}
	return GetLogEventListResponse{RequestID: requestID, EventIDs: ids, Status: status}, nil
}

// GetLogEventRequest (kind 02 12).
type GetLogEventRequest struct {
	RequestID uint32
	EventID   uint32
}

func (m GetLogEventRequest) Encode() []byte {
	w := wire.NewWriter()
	w.U32(m.EventID)
	return frame(KindGetLogEventRequest, m.RequestID, w.Buf)
}

func DecodeGetLogEventRequest(r *wire.Reader, requestID uint32) (GetLogEventRequest, error) {
	id, err := r.U32()
	if err != nil {
		return GetLogEventRequest{}, err
	}
	return GetLogEventRequest{RequestID: requestID, EventID: id}, nil
}

// GetLogEventResponse (kind 02 13): BER-4 text length, text, then status.
type GetLogEventResponse struct {
	RequestID uint32
	Text      string
	Status    StatusField
}

func (m GetLogEventResponse) Encode() []byte {
	w := wire.NewWriter()
	writeString(w, m.Text)
	writeStatus(w, m.Status)
	return frame(KindGetLogEventResponse, m.RequestID, w.Buf)
}

func DecodeGetLogEventResponse(r *wire.Reader, requestID uint32) (GetLogEventResponse, error) {
	text, err := readString(r)
	if err != nil {
		return GetLogEventResponse{}, err
	}
	status, err := readStatus(r)
	if err != nil {
		return GetLogEventResponse{}, err
	}
	return GetLogEventResponse{RequestID: requestID, Text: text, Status: status}, nil
}
