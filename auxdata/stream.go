package auxdata

import "fmt"

// DecodeBody parses a full HTTP aux-data response body: one TransferHeader
// followed by exactly EditUnitRangeCount Blocks, per spec.md §4.9
// ("repeatedly parse AuxDataBlocks until bytesConsumed == payloadLength").
func DecodeBody(body []byte) (TransferHeader, []Block, error) {
	hdr, n, err := DecodeTransferHeader(body)
	if err != nil {
		return TransferHeader{}, nil, err
	}
	blocks := make([]Block, 0, hdr.EditUnitRangeCount)
	off := n
	for off < len(body) {
		b, consumed, err := DecodeBlock(body[off:])
		if err != nil {
			return TransferHeader{}, nil, fmt.Errorf("auxdata: block at offset %d: %w", off, err)
		}
		blocks = append(blocks, b)
		off += consumed
	}
	if uint32(len(blocks)) != hdr.EditUnitRangeCount {
		return TransferHeader{}, nil, fmt.Errorf("auxdata: transfer header count %d disagrees with %d parsed blocks",
			hdr.EditUnitRangeCount, len(blocks))
	}
	return hdr, blocks, nil
}

// EncodeBody serializes a TransferHeader and its Blocks into one
// concatenated HTTP response body.
func EncodeBody(hdr TransferHeader, blocks []Block) []byte {
	out := hdr.Encode()
	for _, b := range blocks {
		out = append(out, b.Encode()...)
	}
	return out
}
