// Package validator correlates sync packets recovered by the processor
// against aux-data blocks fetched by the prefetcher, per spec.md §4.11.
package validator

import (
	"log/slog"
	"sync/atomic"

	"github.com/dtspro/dcsync/auxdata"
	"github.com/dtspro/dcsync/rtring"
)

// Validator holds a reference to the aux-data SPSC queue and the result
// of the most recent correlation check. It is driven by one goroutine
// (the processor's Validator callback) and read by any goroutine via
// Valid/LastBlock.
type Validator struct {
	log     *slog.Logger
	queue   *rtring.Ring[*auxdata.Block]
	pending *auxdata.Block

	valid       atomic.Bool
	lastBlock   atomic.Pointer[auxdata.Block]
	haveLastIdx bool
	lastIdx     uint32
}

// New returns a Validator reading from queue, the same SPSC ring the
// prefetcher enqueues fetched blocks onto.
func New(queue *rtring.Ring[*auxdata.Block], log *slog.Logger) *Validator {
	return &Validator{log: log, queue: queue}
}

// Check correlates timelineEditUnitIndex, the index carried by the most
// recently recovered sync packet, against the aux-data queue. It pops
// blocks until it finds one whose EditUnitIndex matches: earlier blocks
// are dropped with a warning (stale), a later block is held in pending
// for the next call rather than requeued (the ring is single-producer,
// single-consumer and cannot be pushed back onto). Returns whether a
// match was found.
func (v *Validator) Check(timelineEditUnitIndex uint32) bool {
	// Paused/Stopped playback repeats the same timelineEditUnitIndex on
	// every packet; a block is only consumed once per new index.
	if v.haveLastIdx && timelineEditUnitIndex == v.lastIdx {
		return v.valid.Load()
	}
	v.haveLastIdx = true
	v.lastIdx = timelineEditUnitIndex

	if v.pending != nil {
		switch {
		case v.pending.EditUnitIndex == timelineEditUnitIndex:
			v.accept(v.pending)
			v.pending = nil
			return true
		case v.pending.EditUnitIndex < timelineEditUnitIndex:
			v.log.Warn("validator: dropping stale held block", "block_index", v.pending.EditUnitIndex, "want", timelineEditUnitIndex)
			v.pending = nil
		default:
			// pending is ahead of the current packet; nothing to do
			// until the timeline catches up to it.
			v.valid.Store(false)
			return false
		}
	}

	for {
		blk, ok := v.queue.TryPop()
		if !ok {
			v.valid.Store(false)
			return false
		}
		switch {
		case blk.EditUnitIndex == timelineEditUnitIndex:
			v.accept(blk)
			return true
		case blk.EditUnitIndex < timelineEditUnitIndex:
			v.log.Warn("validator: dropping stale block", "block_index", blk.EditUnitIndex, "want", timelineEditUnitIndex)
			continue
		default:
			v.pending = blk
			v.valid.Store(false)
			return false
		}
	}
}

func (v *Validator) accept(blk *auxdata.Block) {
	v.valid.Store(true)
	v.lastBlock.Store(blk)
}

// Valid reports whether the most recent Check call found a matching
// block.
func (v *Validator) Valid() bool { return v.valid.Load() }

// LastBlock returns the most recently matched block, or nil if none has
// matched yet.
func (v *Validator) LastBlock() *auxdata.Block { return v.lastBlock.Load() }
