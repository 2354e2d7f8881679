// Package syncsignal implements the per-edit-unit sync packet carried in
// the AES/EBU PCM sync signal: the in-memory Packet record, its
// lead/tail modulation onto 24-bit PCM samples (packet.go, modulate.go),
// and the resynchronizing stream parser that recovers packets from an
// opaque, buffer-boundary-agnostic PCM stream (recovery.go).
package syncsignal

import (
	"fmt"

	"github.com/dtspro/dcsync/wire"
)

// Marker is the constant 16-bit sync marker value that begins every packet.
const Marker uint16 = 0xAAF0

// State is the play-state tag carried in a packet's flags field.
type State uint16

const (
	StateStopped State = 0
	StatePaused  State = 1
	StatePlaying State = 2
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StatePaused:
		return "Paused"
	case StatePlaying:
		return "Playing"
	default:
		return fmt.Sprintf("State(%d)", uint16(s))
	}
}

// Valid reports whether s is one of the three documented flag values.
// Other values are reserved per spec and rejected by validation.
func (s State) Valid() bool {
	return s == StateStopped || s == StatePaused || s == StatePlaying
}

// headerWords is the number of 16-bit words in a baseline packet (marker
// through compositionPlaylistUUID, before any extension words), derived
// directly from the field layout below rather than hardcoded: marker(1) +
// length(1) + flags(1) + timelineEditUnitIndex(2) + playoutID(2) +
// editUnitDuration(1) + sampleDurationNum(2) + sampleDurationDen(2) +
// primaryPictureOutputOffset(2) + primaryPictureScreenOffset(2) +
// primaryPictureTrackFileEditUnitIndex(2) + primaryPictureTrackFileUUID(8)
// + primarySoundTrackFileEditUnitIndex(2) + primarySoundTrackFileUUID(8)
// + compositionPlaylistUUID(8) = 44 words. The length field itself carries
// only the 42 words from flags onward; marker and length are not counted.
const headerWords = 44

// HeaderWords is the fixed word count of a packet with no extension.
const HeaderWords = headerWords

// HeaderSamples is the number of PCM samples (lead+tail pairs) occupied
// by a baseline packet's header.
const HeaderSamples = headerWords * 2

// payloadWords is the length field's baseline value: headerWords minus
// the marker and length words themselves.
const payloadWords = headerWords - 2

// Packet is the in-memory record for one edit-unit's sync packet.
type Packet struct {
	Flags                                State
	TimelineEditUnitIndex                uint32
	PlayoutID                            uint32
	EditUnitDuration                     uint16
	SampleDurationNum                    uint32
	SampleDurationDen                    uint32
	PrimaryPictureOutputOffset           int32
	PrimaryPictureScreenOffset           uint32
	PrimaryPictureTrackFileEditUnitIndex uint32
	PrimaryPictureTrackFileUUID          wire.UUID
	PrimarySoundTrackFileEditUnitIndex   uint32
	PrimarySoundTrackFileUUID            wire.UUID
	CompositionPlaylistUUID              wire.UUID
	ExtensionWords                       []uint16 // presently always empty
}

// Length returns the packet's wire length field: 42 (flags through
// compositionPlaylistUUID) plus the number of extension words.
func (p *Packet) Length() uint16 {
	return uint16(payloadWords + len(p.ExtensionWords))
}

// Validate checks the invariants from spec.md §3: flags must be one of
// the three documented states, and editUnitDuration must match the
// sample-duration/edit-rate relationship for the given edit rate.
func (p *Packet) Validate(editRateNum, editRateDen uint32) error {
	if !p.Flags.Valid() {
		return fmt.Errorf("syncsignal: invalid flags %d", p.Flags)
	}
	if p.EditUnitDuration == 0 {
		return fmt.Errorf("syncsignal: editUnitDuration must be nonzero")
	}
	if editRateNum == 0 || editRateDen == 0 {
		return fmt.Errorf("syncsignal: invalid edit rate %d/%d", editRateNum, editRateDen)
	}
	want := uint64(p.SampleDurationDen) * uint64(editRateDen) / uint64(editRateNum)
	if uint64(p.EditUnitDuration) != want {
		return fmt.Errorf("syncsignal: editUnitDuration %d does not match rate-derived %d",
			p.EditUnitDuration, want)
	}
	return nil
}
