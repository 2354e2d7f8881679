package wire

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Size is the fixed byte width of a UL, PackKey, or UUID on the wire.
const Size = 16

// UUID is a 16-byte identifier. Equality and copy are byte-wise; the zero
// value is the all-zero UUID used by unpopulated show/asset references.
type UUID [Size]byte

// UL is a 16-byte SMPTE Universal Label. It shares UUID's wire shape but is
// kept as a distinct type so callers cannot accidentally mix the two
// namespaces (e.g. a pack key used where a track-file UUID was expected).
type UL [Size]byte

// PackKey is a 16-byte label identifying a structure on the wire. It is an
// alias of UL: both are opaque 16-byte labels per spec.md §3.
type PackKey = UL

// Bytes returns the raw 16 bytes of u.
func (u UUID) Bytes() []byte { return u[:] }

// Bytes returns the raw 16 bytes of l.
func (l UL) Bytes() []byte { return l[:] }

// IsZero reports whether u is the all-zero UUID.
func (u UUID) IsZero() bool { return u == UUID{} }

// ReadUUID reads 16 raw bytes and returns them as a UUID.
func (r *Reader) ReadUUID() (UUID, error) {
	b, err := r.Bytes(Size)
	if err != nil {
		return UUID{}, err
	}
	var u UUID
	copy(u[:], b)
	return u, nil
}

// ReadUL reads 16 raw bytes and returns them as a UL.
func (r *Reader) ReadUL() (UL, error) {
	b, err := r.Bytes(Size)
	if err != nil {
		return UL{}, err
	}
	var l UL
	copy(l[:], b)
	return l, nil
}

// WriteUUID appends the raw 16 bytes of u.
func (w *Writer) WriteUUID(u UUID) { w.Bytes(u[:]) }

// WriteUL appends the raw 16 bytes of l.
func (w *Writer) WriteUL(l UL) { w.Bytes(l[:]) }

// String renders u in the dashed urn:uuid: textual form.
func (u UUID) String() string {
	return "urn:uuid:" + hex.EncodeToString(u[0:4]) + "-" +
		hex.EncodeToString(u[4:6]) + "-" +
		hex.EncodeToString(u[6:8]) + "-" +
		hex.EncodeToString(u[8:10]) + "-" +
		hex.EncodeToString(u[10:16])
}

// ULString renders l in the dotted urn:smpte:ul: textual form.
func (l UL) ULString() string {
	var sb strings.Builder
	sb.WriteString("urn:smpte:ul:")
	for i, b := range l {
		if i > 0 {
			sb.WriteByte('.')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// ParseUUID accepts the bare 32-char hex form, the dashed urn:uuid: form
// (hyphens optional), and delegates hyphen handling to google/uuid so that
// canonical RFC-4122 strings from external callers parse the same way a
// generic UUID library would before being re-encoded to the wire's raw
// 16 bytes.
func ParseUUID(s string) (UUID, error) {
	s = strings.TrimPrefix(s, "urn:uuid:")
	s = strings.TrimPrefix(s, "uuid:")
	if !strings.Contains(s, "-") {
		// Bare 32-char hex form.
		b, err := hex.DecodeString(s)
		if err != nil || len(b) != Size {
			return UUID{}, fmt.Errorf("wire: invalid UUID %q", s)
		}
		var u UUID
		copy(u[:], b)
		return u, nil
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, fmt.Errorf("wire: invalid UUID %q: %w", s, err)
	}
	var u UUID
	copy(u[:], parsed[:])
	return u, nil
}

// ParseUL accepts the dotted urn:smpte:ul: form or bare 32-char hex.
func ParseUL(s string) (UL, error) {
	s = strings.TrimPrefix(s, "urn:smpte:ul:")
	s = strings.ReplaceAll(s, ".", "")
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != Size {
		return UL{}, fmt.Errorf("wire: invalid UL %q", s)
	}
	var l UL
	copy(l[:], b)
	return l, nil
}

// NewRandomUUID generates a random UUID using google/uuid and re-encodes it
// into the wire's raw 16-byte form. Used by show/test code that needs
// synthetic identifiers rather than ones parsed from a CPL.
func NewRandomUUID() UUID {
	id := uuid.New()
	var u UUID
	copy(u[:], id[:])
	return u
}
