// Package show models the Show/CPL/Reel/Asset tree (spec.md §3): an
// arena-owned, back-pointer-free structure built once per "load" and
// read by everything downstream (the emitter's GetFrameData callback,
// the aux-data responder's timeline walk).
package show

import "github.com/dtspro/dcsync/wire"

// AssetKind distinguishes the three asset roles a Reel may carry, plus
// Unknown for asset types the parser does not recognize (ignored, not an
// error, per spec.md §3).
type AssetKind int

const (
	AssetUnknown AssetKind = iota
	AssetMainPicture
	AssetMainSound
	AssetAuxData
)

func (k AssetKind) String() string {
	switch k {
	case AssetMainPicture:
		return "MainPicture"
	case AssetMainSound:
		return "MainSound"
	case AssetAuxData:
		return "AuxData"
	default:
		return "Unknown"
	}
}

// Asset is one CPL reel asset: its CPL-declared rate/duration metadata
// plus the ASSETMAP-resolved filesystem location, and the show-assigned
// startFrame/endFrame computed by Show.resolveFrames.
type Asset struct {
	UUID                 wire.UUID
	Kind                  AssetKind
	EditRateNum           uint32
	EditRateDen           uint32
	IntrinsicDuration     uint32
	EntryPoint            uint32
	Duration              uint32
	DataEssenceCodingUL   wire.UL
	HasDataEssenceCoding  bool

	// Path, VolumeIndex, Offset, and Length are resolved from the sibling
	// ASSETMAP.xml by Show.ResolveAssetMap.
	Path        string
	VolumeIndex int
	Offset      uint64
	Length      uint64

	// StartFrame and EndFrame are assigned by the show: StartFrame
	// accumulates main-picture durations across preceding reels;
	// EndFrame is startFrame+duration-1 when duration > 0 (HasEndFrame
	// true); otherwise HasEndFrame is false and EndFrame is not set.
	StartFrame  uint32
	EndFrame    uint32
	HasEndFrame bool
}

// Reel holds up to one asset of each of the three recognized kinds.
type Reel struct {
	MainPicture *Asset
	MainSound   *Asset
	AuxData     *Asset
}

// CPL is an ordered sequence of Reels.
type CPL struct {
	ID    string
	Reels []*Reel
}

// Show is an ordered sequence of CPLs, owned for the lifetime of one load.
type Show struct {
	CPLs []*CPL
}

// New returns an empty Show.
func New() *Show {
	return &Show{}
}

// AssetMapEntry is one ASSETMAP.xml chunk resolved by UUID.
type AssetMapEntry struct {
	UUID        wire.UUID
	Path        string
	VolumeIndex int
	Offset      uint64
	Length      uint64
}

// ResolveAssetMap fills Path/VolumeIndex/Offset/Length on every asset in
// s whose UUID appears in entries. Assets with no matching entry are left
// with their zero-value location fields.
func (s *Show) ResolveAssetMap(entries []AssetMapEntry) {
	byUUID := make(map[wire.UUID]AssetMapEntry, len(entries))
	for _, e := range entries {
		byUUID[e.UUID] = e
	}
	for _, cpl := range s.CPLs {
		for _, reel := range cpl.Reels {
			for _, a := range []*Asset{reel.MainPicture, reel.MainSound, reel.AuxData} {
				if a == nil {
					continue
				}
				if e, ok := byUUID[a.UUID]; ok {
					a.Path = e.Path
					a.VolumeIndex = e.VolumeIndex
					a.Offset = e.Offset
					a.Length = e.Length
				}
			}
		}
	}
}

// resolveFrames assigns StartFrame/EndFrame to every asset by accumulating
// main-picture durations across all reels of all CPLs, in order.
func (s *Show) resolveFrames() {
	var cursor uint32
	for _, cpl := range s.CPLs {
		for _, reel := range cpl.Reels {
			for _, a := range []*Asset{reel.MainPicture, reel.MainSound, reel.AuxData} {
				if a == nil {
					continue
				}
				a.StartFrame = cursor
				if a.Duration > 0 {
					a.EndFrame = cursor + a.Duration - 1
					a.HasEndFrame = true
				} else {
					a.HasEndFrame = false
				}
			}
			if reel.MainPicture != nil {
				cursor += reel.MainPicture.Duration
			}
		}
	}
}

// Length returns the show's total duration in edit units: the sum of
// every reel's main-picture duration, across all CPLs in order. Zero if
// the show has no main-picture assets.
func (s *Show) Length() uint32 {
	var total uint32
	for _, cpl := range s.CPLs {
		for _, reel := range cpl.Reels {
			if reel.MainPicture != nil {
				total += reel.MainPicture.Duration
			}
		}
	}
	return total
}

// AuxDataAssetAt returns the aux-data asset covering edit unit frame, or
// (nil, false) if none does. Used by the responder's timeline walk
// (spec.md §4.9).
func (s *Show) AuxDataAssetAt(frame uint32) (*Asset, bool) {
	for _, cpl := range s.CPLs {
		for _, reel := range cpl.Reels {
			a := reel.AuxData
			if a == nil {
				continue
			}
			if frame >= a.StartFrame && a.HasEndFrame && frame <= a.EndFrame {
				return a, true
			}
		}
	}
	return nil, false
}

// FrameAt returns the main-picture and main-sound assets covering frame,
// the per-asset edit-unit index within that asset (accounting for the
// asset's EntryPoint), and whether a covering reel was found.
func (s *Show) FrameAt(frame uint32) (picture, sound *Asset, assetFrame uint32, ok bool) {
	for _, cpl := range s.CPLs {
		for _, reel := range cpl.Reels {
			a := reel.MainPicture
			if a == nil {
				continue
			}
			if frame >= a.StartFrame && a.HasEndFrame && frame <= a.EndFrame {
				return reel.MainPicture, reel.MainSound, a.EntryPoint + (frame - a.StartFrame), true
			}
		}
	}
	return nil, nil, 0, false
}
