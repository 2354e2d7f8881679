// Package serve implements the server-side aux-data responder of
// spec.md §4.9: an HTTP handler that walks the show timeline, reads
// essence from the covering MXF asset, and serves it as a
// transfer-header-prefixed sequence of AuxDataBlocks.
package serve

import (
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/dtspro/dcsync/auxdata"
	"github.com/dtspro/dcsync/mxf"
	"github.com/dtspro/dcsync/show"
	"github.com/dtspro/dcsync/wire"
)

// OpenReader opens an mxf.Reader for asset; overridable in tests to avoid
// touching the filesystem.
type OpenReader func(asset *show.Asset, bytesPerUnit int64) (mxf.Reader, error)

func defaultOpenReader(asset *show.Asset, bytesPerUnit int64) (mxf.Reader, error) {
	return mxf.OpenFileReader(asset, bytesPerUnit)
}

// Handler serves GET /v1/auxdata/editunits requests. It keeps at most
// one MXF reader open at a time, reused across requests that stay
// within the same aux-data asset and closed when the walk crosses into
// the next one.
type Handler struct {
	log          *slog.Logger
	show         *show.Show
	bytesPerUnit int64
	openReader   OpenReader

	mu        sync.Mutex
	openAsset *show.Asset
	openMXF   mxf.Reader
}

// New returns a Handler serving s's timeline. bytesPerUnit is the fixed
// per-edit-unit byte stride passed to the MXF reader.
func New(s *show.Show, bytesPerUnit int64, log *slog.Logger) *Handler {
	return &Handler{log: log, show: s, bytesPerUnit: bytesPerUnit, openReader: defaultOpenReader}
}

// Close releases any open MXF reader.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeOpenLocked()
}

func (h *Handler) closeOpenLocked() error {
	if h.openMXF == nil {
		return nil
	}
	err := h.openMXF.Close()
	h.openMXF = nil
	h.openAsset = nil
	return err
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/auxdata/editunits" {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	start, err := strconv.ParseUint(q.Get("start"), 10, 32)
	if err != nil {
		http.Error(w, "bad start parameter", http.StatusBadRequest)
		return
	}
	count, err := strconv.ParseUint(q.Get("count"), 10, 32)
	if err != nil {
		http.Error(w, "bad count parameter", http.StatusBadRequest)
		return
	}
	var wantUL wire.UL
	var filterByUL bool
	if s := q.Get("coding_UL"); s != "" {
		b, err := hex.DecodeString(s)
		if err != nil || len(b) != wire.Size {
			http.Error(w, "bad coding_UL parameter", http.StatusBadRequest)
			return
		}
		copy(wantUL[:], b)
		filterByUL = true
	}

	blocks, itemsRead := h.collect(uint32(start), uint32(count), wantUL, filterByUL)
	hdr := auxdata.TransferHeader{EditUnitRangeStartIndex: uint32(start), EditUnitRangeCount: itemsRead}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Connection", "close")
	w.Write(auxdata.EncodeBody(hdr, blocks))
}

func (h *Handler) collect(start, count uint32, wantUL wire.UL, filterByUL bool) ([]auxdata.Block, uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var blocks []auxdata.Block
	for i := uint32(0); i < count; i++ {
		edUnit := start + i
		asset, ok := h.show.AuxDataAssetAt(edUnit)
		if !ok {
			// No asset covers this edit unit; truncate the response here
			// rather than erroring (spec.md §4.9).
			break
		}
		if filterByUL && asset.HasDataEssenceCoding && asset.DataEssenceCodingUL != wantUL {
			break
		}

		if h.openAsset != asset {
			if err := h.closeOpenLocked(); err != nil {
				h.log.Error("auxdata serve: close reader", "error", err)
			}
			reader, err := h.openReader(asset, h.bytesPerUnit)
			if err != nil {
				h.log.Error("auxdata serve: open reader", "asset_uuid", asset.UUID, "error", err)
				break
			}
			h.openMXF = reader
			h.openAsset = asset
		}

		assetFrame := asset.EntryPoint + (edUnit - asset.StartFrame)
		data, err := h.openMXF.ReadEditUnit(assetFrame)
		if err != nil {
			h.log.Error("auxdata serve: read edit unit", "edit_unit_index", edUnit, "error", err)
			break
		}

		blocks = append(blocks, auxdata.Block{
			EditUnitIndex: edUnit,
			EditRateNum:   int32(asset.EditRateNum),
			EditRateDen:   int32(asset.EditRateDen),
			SourceUL:      asset.DataEssenceCodingUL,
			SourceData:    data,
		})
	}
	return blocks, uint32(len(blocks))
}
