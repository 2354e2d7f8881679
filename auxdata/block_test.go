package auxdata

import (
	"bytes"
	"testing"

	"github.com/dtspro/dcsync/wire"
)

func TestTransferHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	h := TransferHeader{EditUnitRangeStartIndex: 0, EditUnitRangeCount: 3}
	enc := h.Encode()

	got, n, err := DecodeTransferHeader(enc)
	if err != nil {
		t.Fatalf("DecodeTransferHeader: %v", err)
	}
	if n != len(enc) {
		t.Fatalf("consumed %d, want %d", n, len(enc))
	}
	if got != h {
		t.Fatalf("got %+v, want %+v", got, h)
	}
}

// TestTransferHeaderFraming covers scenario S4: leading bytes are the
// transfer pack-key, 0x84 00 00 00 0D (BER5 length 13), then the
// big-endian start/count fields.
func TestTransferHeaderFraming(t *testing.T) {
	t.Parallel()

	h := TransferHeader{EditUnitRangeStartIndex: 0, EditUnitRangeCount: 3}
	enc := h.Encode()

	want := append(append([]byte{}, TransferHeaderPackKey[:]...), 0x84, 0x00, 0x00, 0x00, 0x0D, 0, 0, 0, 0, 0, 0, 0, 3)
	if !bytes.Equal(enc, want) {
		t.Fatalf("encoding = % X, want % X", enc, want)
	}
}

func TestBlockRoundTrip(t *testing.T) {
	t.Parallel()

	b := Block{
		EditUnitIndex: 42,
		EditRateNum:   24,
		EditRateDen:   1,
		SourceUL:      wire.UL{0x01, 0x02, 0x03},
		SourceData:    []byte("subtitle payload"),
		CryptContext:  []byte{0xAA, 0xBB},
	}
	enc := b.Encode()

	got, n, err := DecodeBlock(enc)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if n != len(enc) {
		t.Fatalf("consumed %d, want %d", n, len(enc))
	}
	if got.EditUnitIndex != b.EditUnitIndex || got.EditRateNum != b.EditRateNum || got.EditRateDen != b.EditRateDen {
		t.Fatalf("scalar fields mismatch: got %+v", got)
	}
	if !bytes.Equal(got.SourceData, b.SourceData) {
		t.Fatalf("SourceData = %q, want %q", got.SourceData, b.SourceData)
	}
	if !bytes.Equal(got.CryptContext, b.CryptContext) {
		t.Fatalf("CryptContext = %q, want %q", got.CryptContext, b.CryptContext)
	}
}

func TestBlockEmptyDataAndCrypt(t *testing.T) {
	t.Parallel()
	b := Block{EditUnitIndex: 1, EditRateNum: 25, EditRateDen: 1}
	enc := b.Encode()
	got, _, err := DecodeBlock(enc)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if len(got.SourceData) != 0 || len(got.CryptContext) != 0 {
		t.Fatalf("expected empty data/crypt, got %+v", got)
	}
}

func TestDecodeBodyRoundTrip(t *testing.T) {
	t.Parallel()

	hdr := TransferHeader{EditUnitRangeStartIndex: 10, EditUnitRangeCount: 2}
	blocks := []Block{
		{EditUnitIndex: 10, EditRateNum: 24, EditRateDen: 1, SourceData: []byte("a")},
		{EditUnitIndex: 11, EditRateNum: 24, EditRateDen: 1, SourceData: []byte("bb")},
	}
	body := EncodeBody(hdr, blocks)

	gotHdr, gotBlocks, err := DecodeBody(body)
	if err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	if gotHdr != hdr {
		t.Fatalf("header = %+v, want %+v", gotHdr, hdr)
	}
	if len(gotBlocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(gotBlocks))
	}
	for i, b := range gotBlocks {
		if b.EditUnitIndex != blocks[i].EditUnitIndex {
			t.Fatalf("block %d index = %d, want %d", i, b.EditUnitIndex, blocks[i].EditUnitIndex)
		}
	}
}

func TestDecodeBodyCountMismatch(t *testing.T) {
	t.Parallel()
	hdr := TransferHeader{EditUnitRangeStartIndex: 0, EditUnitRangeCount: 5}
	body := EncodeBody(hdr, nil) // header claims 5 blocks but none follow
	if _, _, err := DecodeBody(body); err == nil {
		t.Fatal("expected error for count/body mismatch")
	}
}
