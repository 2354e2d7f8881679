package emitter

import "github.com/dtspro/dcsync/wire"

// FrameInfo is the per-edit-unit data the engine needs to build a sync
// packet: asset UUIDs, rate, and duration, resolved by the caller from the
// active show for the requested frame index.
type FrameInfo struct {
	EditRateNum, EditRateDen             uint32
	SampleDurationNum, SampleDurationDen uint32
	EditUnitDuration                     uint16

	PrimaryPictureOutputOffset           int32
	PrimaryPictureScreenOffset           uint32
	PrimaryPictureTrackFileEditUnitIndex uint32
	PrimaryPictureTrackFileUUID          wire.UUID

	PrimarySoundTrackFileEditUnitIndex uint32
	PrimarySoundTrackFileUUID          wire.UUID

	CompositionPlaylistUUID wire.UUID
}

// GetFrameDataCallback resolves the FrameInfo for currentFrame. An error is
// fatal to playback: the engine resets to NoData.
type GetFrameDataCallback func(currentFrame uint32) (FrameInfo, error)
