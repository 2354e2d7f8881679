package syncsignal

import (
	"fmt"

	"github.com/dtspro/dcsync/wire"
)

// ErrLeadTailMismatch indicates a sample pair's tail was not the 24-bit
// negation of its lead, invalidating the candidate frame.
type ErrLeadTailMismatch struct{ WordIndex int }

func (e *ErrLeadTailMismatch) Error() string {
	return fmt.Sprintf("syncsignal: lead/tail mismatch at word %d", e.WordIndex)
}

// readWord extracts and validates one logical word from a lead/tail pair.
func readWord(lead, tail Sample, index int) (uint16, error) {
	if negate24(lead) != tail {
		return 0, &ErrLeadTailMismatch{WordIndex: index}
	}
	hasSentinel := lead&(1<<16) != 0
	if index == 0 && !hasSentinel {
		return 0, fmt.Errorf("syncsignal: marker word missing sentinel bit")
	}
	if index != 0 && hasSentinel {
		return 0, fmt.Errorf("syncsignal: unexpected sentinel bit at word %d", index)
	}
	return uint16(lead & 0xFFFF), nil
}

// Demodulate reverses Modulate: given at least HeaderSamples worth of
// samples, it recovers the Packet. Any lead/tail mismatch, bad marker, or
// malformed length invalidates the frame.
func Demodulate(samples []Sample) (*Packet, error) {
	if len(samples) < HeaderSamples {
		return nil, fmt.Errorf("syncsignal: need at least %d samples, have %d", HeaderSamples, len(samples))
	}

	marker, err := readWord(samples[0], samples[1], 0)
	if err != nil {
		return nil, err
	}
	if marker != Marker {
		return nil, fmt.Errorf("syncsignal: bad sync marker 0x%04X", marker)
	}

	words := make([]uint16, 1, headerWords)
	words[0] = marker
	for i := 1; i < headerWords; i++ {
		w, err := readWord(samples[2*i], samples[2*i+1], i)
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}

	length := words[1]
	if int(length) < payloadWords {
		return nil, fmt.Errorf("syncsignal: length %d shorter than baseline %d", length, payloadWords)
	}
	extLen := int(length) - payloadWords
	needSamples := (headerWords + extLen) * 2
	if needSamples > len(samples) {
		return nil, fmt.Errorf("syncsignal: need %d samples for declared length, have %d", needSamples, len(samples))
	}
	ext := make([]uint16, extLen)
	for i := 0; i < extLen; i++ {
		idx := headerWords + i
		w, err := readWord(samples[2*idx], samples[2*idx+1], idx)
		if err != nil {
			return nil, err
		}
		ext[i] = w
	}

	p := &Packet{
		Flags:                                State(words[2]),
		TimelineEditUnitIndex:                u32FromWords(words[3], words[4]),
		PlayoutID:                             u32FromWords(words[5], words[6]),
		EditUnitDuration:                      words[7],
		SampleDurationNum:                     u32FromWords(words[8], words[9]),
		SampleDurationDen:                     u32FromWords(words[10], words[11]),
		PrimaryPictureOutputOffset:            int32(u32FromWords(words[12], words[13])),
		PrimaryPictureScreenOffset:            u32FromWords(words[14], words[15]),
		PrimaryPictureTrackFileEditUnitIndex:  u32FromWords(words[16], words[17]),
		PrimaryPictureTrackFileUUID:           uuidFromWords(words[18:26]),
		PrimarySoundTrackFileEditUnitIndex:    u32FromWords(words[26], words[27]),
		PrimarySoundTrackFileUUID:             uuidFromWords(words[28:36]),
		CompositionPlaylistUUID:               uuidFromWords(words[36:44]),
		ExtensionWords:                        ext,
	}
	return p, nil
}

func u32FromWords(hi, lo uint16) uint32 {
	return uint32(hi)<<16 | uint32(lo)
}

func uuidFromWords(words []uint16) wire.UUID {
	var u wire.UUID
	for i, w := range words {
		u[2*i] = byte(w >> 8)
		u[2*i+1] = byte(w)
	}
	return u
}
