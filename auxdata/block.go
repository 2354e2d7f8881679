// Package auxdata implements the KLV-style aux-data block codec from
// spec.md §4.7: AuxDataBlock and AuxDataBlockTransferHeader, each a
// pack-key followed by a BER5 length and a fixed-then-variable payload.
package auxdata

import (
	"fmt"

	"github.com/dtspro/dcsync/wire"
)

// TransferHeaderPackKey and BlockPackKey are the two distinct pack-key
// constants that open an AuxDataBlockTransferHeader and an AuxDataBlock
// respectively. spec.md leaves the concrete SMPTE-registered UL values
// unspecified; these are implementation-chosen, SMPTE-UL-shaped
// placeholders (06.0E.2B.34 prefix, distinct final octets) so the two
// record types are unambiguously distinguishable on the wire.
var (
	TransferHeaderPackKey = wire.PackKey{0x06, 0x0E, 0x2B, 0x34, 0x02, 0x05, 0x01, 0x01, 0x0D, 0x01, 0x03, 0x01, 0x02, 0x0C, 0x00, 0x00}
	BlockPackKey          = wire.PackKey{0x06, 0x0E, 0x2B, 0x34, 0x02, 0x05, 0x01, 0x01, 0x0D, 0x01, 0x03, 0x01, 0x02, 0x0C, 0x00, 0x01}
)

// TransferHeader prefixes a sequence of AuxDataBlocks within a single HTTP
// response body.
type TransferHeader struct {
	EditUnitRangeStartIndex uint32
	EditUnitRangeCount      uint32
}

// Encode returns the wire form of h.
func (h TransferHeader) Encode() []byte {
	const payloadLen = 8 // editUnitRangeStartIndex + editUnitRangeCount
	w := wire.NewWriter()
	w.WriteUL(TransferHeaderPackKey)
	w.BER5(payloadLen)
	w.U32(h.EditUnitRangeStartIndex)
	w.U32(h.EditUnitRangeCount)
	return w.Buf
}

// DecodeTransferHeader parses a TransferHeader from the front of src and
// returns it along with the number of bytes consumed.
func DecodeTransferHeader(src []byte) (TransferHeader, int, error) {
	r := wire.NewReader(src)
	key, err := r.ReadUL()
	if err != nil {
		return TransferHeader{}, 0, fmt.Errorf("auxdata: transfer header pack-key: %w", err)
	}
	if key != TransferHeaderPackKey {
		return TransferHeader{}, 0, fmt.Errorf("auxdata: unexpected transfer header pack-key %x", key)
	}
	length, err := r.BER5()
	if err != nil {
		return TransferHeader{}, 0, fmt.Errorf("auxdata: transfer header length: %w", err)
	}
	if length != 8 {
		return TransferHeader{}, 0, fmt.Errorf("auxdata: transfer header length = %d, want 8", length)
	}
	start, err := r.U32()
	if err != nil {
		return TransferHeader{}, 0, err
	}
	count, err := r.U32()
	if err != nil {
		return TransferHeader{}, 0, err
	}
	return TransferHeader{EditUnitRangeStartIndex: start, EditUnitRangeCount: count}, r.Off, nil
}

// Block is one edit unit's auxiliary essence, wrapped with the edit
// index, rate, essence-coding UL, and an optional cryptographic context.
type Block struct {
	EditUnitIndex uint32
	EditRateNum   int32
	EditRateDen   int32
	SourceUL      wire.UL
	SourceData    []byte
	CryptContext  []byte
}

// Encode returns the wire form of b.
func (b Block) Encode() []byte {
	payloadLen := 4 + 4 + 4 + wire.Size + 8 + len(b.SourceData) + 8 + len(b.CryptContext)
	w := wire.NewWriter()
	w.WriteUL(BlockPackKey)
	w.BER5(uint32(payloadLen))
	w.U32(b.EditUnitIndex)
	w.I32(b.EditRateNum)
	w.I32(b.EditRateDen)
	w.WriteUL(b.SourceUL)
	w.U64(uint64(len(b.SourceData)))
	w.Bytes(b.SourceData)
	w.U64(uint64(len(b.CryptContext)))
	w.Bytes(b.CryptContext)
	return w.Buf
}

// DecodeBlock parses a Block from the front of src and returns it along
// with the number of bytes consumed.
func DecodeBlock(src []byte) (Block, int, error) {
	r := wire.NewReader(src)
	key, err := r.ReadUL()
	if err != nil {
		return Block{}, 0, fmt.Errorf("auxdata: block pack-key: %w", err)
	}
	if key != BlockPackKey {
		return Block{}, 0, fmt.Errorf("auxdata: unexpected block pack-key %x", key)
	}
	length, err := r.BER5()
	if err != nil {
		return Block{}, 0, fmt.Errorf("auxdata: block length: %w", err)
	}
	startAfterLength := r.Off

	var b Block
	if b.EditUnitIndex, err = r.U32(); err != nil {
		return Block{}, 0, err
	}
	if b.EditRateNum, err = r.I32(); err != nil {
		return Block{}, 0, err
	}
	if b.EditRateDen, err = r.I32(); err != nil {
		return Block{}, 0, err
	}
	if b.SourceUL, err = r.ReadUL(); err != nil {
		return Block{}, 0, err
	}
	srcLen, err := r.U64()
	if err != nil {
		return Block{}, 0, err
	}
	srcBytes, err := r.Bytes(int(srcLen))
	if err != nil {
		return Block{}, 0, fmt.Errorf("auxdata: source data: %w", err)
	}
	b.SourceData = append([]byte(nil), srcBytes...)
	cryptLen, err := r.U64()
	if err != nil {
		return Block{}, 0, err
	}
	cryptBytes, err := r.Bytes(int(cryptLen))
	if err != nil {
		return Block{}, 0, fmt.Errorf("auxdata: crypt context: %w", err)
	}
	b.CryptContext = append([]byte(nil), cryptBytes...)

	consumed := r.Off
	if uint32(consumed-startAfterLength) != length {
		return Block{}, 0, fmt.Errorf("auxdata: block length field %d disagrees with consumed payload %d",
			length, consumed-startAfterLength)
	}
	return b, consumed, nil
}
