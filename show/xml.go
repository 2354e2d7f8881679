package show

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/dtspro/dcsync/wire"
)

// cplDoc mirrors the subset of a SMPTE CompositionPlaylist document
// described in spec.md §6: ReelList/Reel/AssetList/{AuxData,MainSound,
// MainPicture}, each carrying Id, EditRate, FrameRate, IntrinsicDuration,
// EntryPoint, and Duration, with AuxData additionally carrying
// DataEssenceCoding. Go's XML decoder matches by local name, so the
// axd-cpl namespace prefix on AuxData/DataEssenceCoding in real files
// does not need to be declared here.
type cplDoc struct {
	XMLName  xml.Name `xml:"CompositionPlaylist"`
	Id       string   `xml:"Id"`
	ReelList struct {
		Reel []struct {
			AssetList struct {
				MainPicture *cplAsset `xml:"MainPicture"`
				MainSound   *cplAsset `xml:"MainSound"`
				AuxData     *cplAsset `xml:"AuxData"`
			} `xml:"AssetList"`
		} `xml:"Reel"`
	} `xml:"ReelList"`
}

type cplAsset struct {
	Id                string `xml:"Id"`
	EditRate          string `xml:"EditRate"`
	FrameRate         string `xml:"FrameRate"`
	IntrinsicDuration uint32 `xml:"IntrinsicDuration"`
	EntryPoint        uint32 `xml:"EntryPoint"`
	Duration          uint32 `xml:"Duration"`
	DataEssenceCoding string `xml:"DataEssenceCoding"`
}

func parseRate(s string) (num, den uint32, err error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("show: rate %q is not two space-separated integers", s)
	}
	n, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("show: rate numerator %q: %w", fields[0], err)
	}
	d, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("show: rate denominator %q: %w", fields[1], err)
	}
	return uint32(n), uint32(d), nil
}

func (a *cplAsset) toAsset(kind AssetKind) (*Asset, error) {
	id, err := wire.ParseUUID(a.Id)
	if err != nil {
		return nil, fmt.Errorf("show: asset Id: %w", err)
	}
	num, den, err := parseRate(a.EditRate)
	if err != nil {
		return nil, err
	}
	out := &Asset{
		UUID:              id,
		Kind:              kind,
		EditRateNum:       num,
		EditRateDen:       den,
		IntrinsicDuration: a.IntrinsicDuration,
		EntryPoint:        a.EntryPoint,
		Duration:          a.Duration,
	}
	if a.DataEssenceCoding != "" {
		ul, err := wire.ParseUL(a.DataEssenceCoding)
		if err != nil {
			return nil, fmt.Errorf("show: DataEssenceCoding: %w", err)
		}
		out.DataEssenceCodingUL = ul
		out.HasDataEssenceCoding = true
	}
	return out, nil
}

// ParseCPL parses one CPL document. Assets of an unrecognized kind are
// never produced by this parser since only the three known tag names are
// matched; anything else in the source XML is ignored per spec.md §3.
func ParseCPL(data []byte) (*CPL, error) {
	var doc cplDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("show: parsing CPL: %w", err)
	}
	cpl := &CPL{ID: doc.Id}
	for _, r := range doc.ReelList.Reel {
		reel := &Reel{}
		if r.AssetList.MainPicture != nil {
			a, err := r.AssetList.MainPicture.toAsset(AssetMainPicture)
			if err != nil {
				return nil, err
			}
			reel.MainPicture = a
		}
		if r.AssetList.MainSound != nil {
			a, err := r.AssetList.MainSound.toAsset(AssetMainSound)
			if err != nil {
				return nil, err
			}
			reel.MainSound = a
		}
		if r.AssetList.AuxData != nil {
			a, err := r.AssetList.AuxData.toAsset(AssetAuxData)
			if err != nil {
				return nil, err
			}
			reel.AuxData = a
		}
		cpl.Reels = append(cpl.Reels, reel)
	}
	return cpl, nil
}

// IsCPL reports whether data's XML root element is CompositionPlaylist,
// without fully parsing the document.
func IsCPL(data []byte) bool {
	d := xml.NewDecoder(strings.NewReader(string(data)))
	for {
		tok, err := d.Token()
		if err != nil {
			return false
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local == "CompositionPlaylist"
		}
	}
}

// AddCPLList parses each of files (a path -> contents map, already read by
// the caller) as a CPL and appends them to s, but only if every file is a
// valid CPL. spec.md §9 notes the original implementation's predicate was
// inverted (it rejected exactly the files that *were* valid CPLs); this
// applies the semantically correct rule: add all, or add none.
func (s *Show) AddCPLList(files map[string][]byte) (bool, error) {
	parsed := make([]*CPL, 0, len(files))
	for path, data := range files {
		if !IsCPL(data) {
			return false, fmt.Errorf("show: %s is not a CompositionPlaylist", path)
		}
		cpl, err := ParseCPL(data)
		if err != nil {
			return false, fmt.Errorf("show: %s: %w", path, err)
		}
		parsed = append(parsed, cpl)
	}
	s.CPLs = append(s.CPLs, parsed...)
	s.resolveFrames()
	return true, nil
}

// assetMapDoc mirrors the sibling ASSETMAP.xml: AssetList/Asset/Id plus
// ChunkList/Chunk/{Path,VolumeIndex,Offset,Length}.
type assetMapDoc struct {
	XMLName   xml.Name `xml:"AssetMap"`
	AssetList struct {
		Asset []struct {
			Id        string `xml:"Id"`
			ChunkList struct {
				Chunk []struct {
					Path        string `xml:"Path"`
					VolumeIndex int    `xml:"VolumeIndex"`
					Offset      uint64 `xml:"Offset"`
					Length      uint64 `xml:"Length"`
				} `xml:"Chunk"`
			} `xml:"ChunkList"`
		} `xml:"Asset"`
	} `xml:"AssetList"`
}

// ParseAssetMap parses an ASSETMAP.xml document into a flat list of
// entries, one per asset's first chunk (multi-chunk assets are not used
// by this system).
func ParseAssetMap(data []byte) ([]AssetMapEntry, error) {
	var doc assetMapDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("show: parsing ASSETMAP: %w", err)
	}
	var out []AssetMapEntry
	for _, a := range doc.AssetList.Asset {
		id, err := wire.ParseUUID(a.Id)
		if err != nil {
			return nil, fmt.Errorf("show: ASSETMAP asset Id: %w", err)
		}
		if len(a.ChunkList.Chunk) == 0 {
			continue
		}
		c := a.ChunkList.Chunk[0]
		out = append(out, AssetMapEntry{
			UUID:        id,
			Path:        c.Path,
			VolumeIndex: c.VolumeIndex,
			Offset:      c.Offset,
			Length:      c.Length,
		})
	}
	return out, nil
}
