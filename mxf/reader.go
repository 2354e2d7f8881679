// Package mxf defines the injected MXF essence-reader seam: spec.md treats
// MXF parsing as an external collaborator ("an injected reader returns
// the bytes for edit unit N"), so this package only provides the
// interface and a minimal byte-range-based default implementation driven
// by the show package's resolved Asset location metadata.
package mxf

import (
	"fmt"
	"io"
	"os"

	"github.com/dtspro/dcsync/show"
)

// Reader returns raw essence bytes for a single edit unit of an MXF
// asset, and must be closed when no longer needed.
type Reader interface {
	ReadEditUnit(editUnitIndex uint32) ([]byte, error)
	Close() error
}

// FileReader is the default Reader: it opens the asset's underlying file
// once and serves edit units from a precomputed per-unit byte range. It
// does not parse real MXF KLV structure; bytesPerUnit is a fixed stride
// supplied by the caller (e.g. derived from the asset's declared
// source-data-item length), which is sufficient for the fixed-size aux
// essence this system carries.
type FileReader struct {
	f            *os.File
	baseOffset   int64
	bytesPerUnit int64
}

// OpenFileReader opens asset.Path at asset.Offset and serves edit units of
// bytesPerUnit bytes each. editUnitIndex passed to ReadEditUnit is
// asset-relative, already adjusted for the asset's EntryPoint by the
// caller (show.Show.FrameAt does this for picture assets; the aux-data
// responder in auxdata/serve computes it for aux-data assets).
func OpenFileReader(asset *show.Asset, bytesPerUnit int64) (*FileReader, error) {
	f, err := os.Open(asset.Path)
	if err != nil {
		return nil, fmt.Errorf("mxf: open %s: %w", asset.Path, err)
	}
	return &FileReader{
		f:            f,
		baseOffset:   int64(asset.Offset),
		bytesPerUnit: bytesPerUnit,
	}, nil
}

// ReadEditUnit reads the bytes for editUnitIndex, an asset-relative edit
// unit index.
func (r *FileReader) ReadEditUnit(editUnitIndex uint32) ([]byte, error) {
	if r.bytesPerUnit <= 0 {
		return nil, fmt.Errorf("mxf: bytesPerUnit must be positive")
	}
	off := r.baseOffset + int64(editUnitIndex)*r.bytesPerUnit
	buf := make([]byte, r.bytesPerUnit)
	n, err := r.f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("mxf: read edit unit %d: %w", editUnitIndex, err)
	}
	return buf[:n], nil
}

// Close releases the underlying file handle.
func (r *FileReader) Close() error {
	return r.f.Close()
}
