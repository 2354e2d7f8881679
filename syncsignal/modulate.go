package syncsignal

import (
	"fmt"

	"github.com/dtspro/dcsync/wire"
)

// Sample is one 24-bit PCM sample, held in the low 24 bits of a uint32.
type Sample = uint32

const sampleMask = 0xFFFFFF

// negate24 returns the 24-bit two's-complement negation of v, masked to 24
// bits, per spec.md §4.2.
func negate24(v uint32) uint32 {
	return (^v + 1) & sampleMask
}

// leadTail renders one logical 16-bit word into its lead/tail sample pair.
// first is true only for the sync marker, the very first word of a frame.
func leadTail(word uint16, first bool) (lead, tail Sample) {
	lead = uint32(word)
	if first {
		lead |= 1 << 16
	}
	tail = negate24(lead)
	return lead, tail
}

// headerWordValues returns the baseline header's logical 16-bit words in
// wire order: marker, length, flags, and the documented field sequence.
func (p *Packet) headerWordValues() []uint16 {
	words := make([]uint16, 0, headerWords)
	words = append(words, Marker)
	words = append(words, p.Length())
	words = append(words, uint16(p.Flags))
	words = appendU32Words(words, p.TimelineEditUnitIndex)
	words = appendU32Words(words, p.PlayoutID)
	words = append(words, p.EditUnitDuration)
	words = appendU32Words(words, p.SampleDurationNum)
	words = appendU32Words(words, p.SampleDurationDen)
	words = appendU32Words(words, uint32(p.PrimaryPictureOutputOffset))
	words = appendU32Words(words, p.PrimaryPictureScreenOffset)
	words = appendU32Words(words, p.PrimaryPictureTrackFileEditUnitIndex)
	words = appendUUIDWords(words, p.PrimaryPictureTrackFileUUID)
	words = appendU32Words(words, p.PrimarySoundTrackFileEditUnitIndex)
	words = appendUUIDWords(words, p.PrimarySoundTrackFileUUID)
	words = appendUUIDWords(words, p.CompositionPlaylistUUID)
	return words
}

func appendU32Words(words []uint16, v uint32) []uint16 {
	return append(words, uint16(v>>16), uint16(v))
}

func appendUUIDWords(words []uint16, u wire.UUID) []uint16 {
	for i := 0; i < wire.Size; i += 2 {
		words = append(words, uint16(u[i])<<8|uint16(u[i+1]))
	}
	return words
}

// PayloadSamples returns the number of PCM samples the header plus
// extension words occupy (lead+tail per word).
func (p *Packet) PayloadSamples() int {
	return (headerWords + len(p.ExtensionWords)) * 2
}

// Modulate renders p into dst, a frame-sized buffer of editUnitDuration
// samples. The header (and any extension words) are written as lead/tail
// sample pairs; the remainder of dst is zero-filled. dst must have length
// >= editUnitDuration.
func Modulate(p *Packet, dst []Sample) error {
	if int(p.EditUnitDuration) > len(dst) {
		return fmt.Errorf("syncsignal: dst has %d samples, need %d", len(dst), p.EditUnitDuration)
	}
	words := p.headerWordValues()
	words = append(words, p.ExtensionWords...)

	if len(words)*2 > int(p.EditUnitDuration) {
		return fmt.Errorf("syncsignal: packet payload (%d samples) exceeds editUnitDuration (%d)",
			len(words)*2, p.EditUnitDuration)
	}

	for i, word := range words {
		lead, tail := leadTail(word, i == 0)
		dst[2*i] = lead
		dst[2*i+1] = tail
	}
	for i := len(words) * 2; i < int(p.EditUnitDuration); i++ {
		dst[i] = 0
	}
	for i := int(p.EditUnitDuration); i < len(dst); i++ {
		dst[i] = 0
	}
	return nil
}
