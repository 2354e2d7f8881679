package wire

import "testing"

func TestFixedWidthRoundTrip(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	w.U8(0xAB)
	w.I8(-5)
	w.Bool(true)
	w.Bool(false)
	w.U16(0xBEEF)
	w.I16(-1234)
	w.U32(0xDEADBEEF)
	w.I32(-123456)
	w.U64(0x0102030405060708)
	w.I64(-9001)

	r := NewReader(w.Buf)

	if v, err := r.U8(); err != nil || v != 0xAB {
		t.Fatalf("U8 = %v, %v", v, err)
	}
	if v, err := r.I8(); err != nil || v != -5 {
		t.Fatalf("I8 = %v, %v", v, err)
	}
	if v, err := r.Bool(); err != nil || v != true {
		t.Fatalf("Bool = %v, %v", v, err)
	}
	if v, err := r.Bool(); err != nil || v != false {
		t.Fatalf("Bool = %v, %v", v, err)
	}
	if v, err := r.U16(); err != nil || v != 0xBEEF {
		t.Fatalf("U16 = %v, %v", v, err)
	}
	if v, err := r.I16(); err != nil || v != -1234 {
		t.Fatalf("I16 = %v, %v", v, err)
	}
	if v, err := r.U32(); err != nil || v != 0xDEADBEEF {
		t.Fatalf("U32 = %v, %v", v, err)
	}
	if v, err := r.I32(); err != nil || v != -123456 {
		t.Fatalf("I32 = %v, %v", v, err)
	}
	if v, err := r.U64(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("U64 = %v, %v", v, err)
	}
	if v, err := r.I64(); err != nil || v != -9001 {
		t.Fatalf("I64 = %v, %v", v, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("Remaining() = %d, want 0", r.Remaining())
	}
}

func TestU32Exhaustive1000Samples(t *testing.T) {
	t.Parallel()
	vals := []uint32{0, 1, 0xFFFFFFFF, 0x80000000, 0x7FFFFFFF}
	var v uint32 = 2463534242 // xorshift seed
	for i := 0; i < 1000; i++ {
		v ^= v << 13
		v ^= v >> 17
		v ^= v << 5
		vals = append(vals, v)
	}
	for _, want := range vals {
		w := NewWriter()
		w.U32(want)
		got, err := NewReader(w.Buf).U32()
		if err != nil || got != want {
			t.Fatalf("U32 round trip: got %d, %v, want %d", got, err, want)
		}
	}
}

func TestU8ExhaustiveFullRange(t *testing.T) {
	t.Parallel()
	for v := 0; v <= 0xFF; v++ {
		w := NewWriter()
		w.U8(uint8(v))
		got, err := NewReader(w.Buf).U8()
		if err != nil || int(got) != v {
			t.Fatalf("U8 round trip: got %d, %v, want %d", got, err, v)
		}
	}
}

func TestBER4RoundTrip(t *testing.T) {
	t.Parallel()
	for _, v := range []uint32{0, 1, 0xABCDEF, 0xFFFFFF} {
		w := NewWriter()
		w.BER4(v)
		if len(w.Buf) != 4 || w.Buf[0] != 0x83 {
			t.Fatalf("BER4(%d) encoding = % X", v, w.Buf)
		}
		got, err := NewReader(w.Buf).BER4()
		if err != nil || got != v {
			t.Fatalf("BER4 round trip: got %d, %v, want %d", got, err, v)
		}
	}
}

func TestBER5RoundTrip(t *testing.T) {
	t.Parallel()
	for _, v := range []uint32{0, 1, 0xABCDEF01, 0xFFFFFFFF} {
		w := NewWriter()
		w.BER5(v)
		if len(w.Buf) != 5 || w.Buf[0] != 0x84 {
			t.Fatalf("BER5(%d) encoding = % X", v, w.Buf)
		}
		got, err := NewReader(w.Buf).BER5()
		if err != nil || got != v {
			t.Fatalf("BER5 round trip: got %d, %v, want %d", got, err, v)
		}
	}
}

func TestBER4BadLead(t *testing.T) {
	t.Parallel()
	_, err := NewReader([]byte{0x84, 0, 0, 0}).BER4()
	if err == nil {
		t.Fatal("expected error for wrong BER4 lead byte")
	}
}

func TestBER5BadLead(t *testing.T) {
	t.Parallel()
	_, err := NewReader([]byte{0x83, 0, 0, 0, 0}).BER5()
	if err == nil {
		t.Fatal("expected error for wrong BER5 lead byte")
	}
}

func TestReadPastEndFails(t *testing.T) {
	t.Parallel()
	r := NewReader([]byte{1, 2})
	if _, err := r.U32(); err == nil {
		t.Fatal("expected short-buffer error")
	}
}

func TestUUIDTextualRoundTrip(t *testing.T) {
	t.Parallel()
	want := UUID{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF, 0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF}

	dashed := want.String()
	got, err := ParseUUID(dashed)
	if err != nil || got != want {
		t.Fatalf("ParseUUID(%q) = %v, %v, want %v", dashed, got, err, want)
	}

	bare := ""
	for _, b := range want {
		bare += hexByte(b)
	}
	got, err = ParseUUID(bare)
	if err != nil || got != want {
		t.Fatalf("ParseUUID(%q) = %v, %v, want %v", bare, got, err, want)
	}
}

func hexByte(b byte) string {
	const hexdigits = "0123456789abcdef"
	return string([]byte{hexdigits[b>>4], hexdigits[b&0xF]})
}

func TestULDottedRoundTrip(t *testing.T) {
	t.Parallel()
	want := UL{0x06, 0x0E, 0x2B, 0x34, 0x04, 0x01, 0x01, 0x0D, 0x01, 0x01, 0x01, 0x01, 0x02, 0x00, 0x00, 0x00}
	s := want.ULString()
	got, err := ParseUL(s)
	if err != nil || got != want {
		t.Fatalf("ParseUL(%q) = %v, %v, want %v", s, got, err, want)
	}
}
