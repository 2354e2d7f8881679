// Package processor implements the consuming half of the sync-signal
// pipeline: it drains raw PCM pushed by an audio callback, recovers sync
// packets via syncsignal.Recovery, and tracks play state and current
// frame for a validator to correlate against aux data.
package processor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dtspro/dcsync/emitter"
	"github.com/dtspro/dcsync/pcm"
	"github.com/dtspro/dcsync/rtring"
	"github.com/dtspro/dcsync/syncsignal"
)

// ValidatorCallback is invoked once per validated sync packet, after state
// and currentFrame have been updated.
type ValidatorCallback func(pkt *syncsignal.Packet)

// Processor is the processor engine described in spec.md §4.6.
type Processor struct {
	log      *slog.Logger
	pool     *rtring.Pool
	recovery *syncsignal.Recovery

	state        atomic.Int32
	currentFrame atomic.Uint32

	// Validator is invoked for every packet the recovery parser emits.
	Validator ValidatorCallback
}

// NewProcessor creates a Processor reading sampleRate-Hz audio from pool's
// Filled ring (the audio callback fills, the worker drains).
func NewProcessor(sampleRate int, pool *rtring.Pool, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	p := &Processor{
		log:  log.With("component", "processor"),
		pool: pool,
	}
	p.state.Store(int32(emitter.NoData))
	p.recovery = syncsignal.NewRecovery(sampleRate, p.log)
	p.recovery.OnFrame = p.onFrame
	p.recovery.OnSilence = p.onSilence
	return p
}

// State returns the processor's current play state.
func (p *Processor) State() emitter.State {
	return emitter.State(p.state.Load())
}

// CurrentFrame returns the most recently recovered timelineEditUnitIndex.
func (p *Processor) CurrentFrame() uint32 {
	return p.currentFrame.Load()
}

// Stats returns the underlying recovery parser's diagnostics.
func (p *Processor) Stats() syncsignal.Stats {
	return p.recovery.Stats()
}

// AcquireBuffer is called by the audio callback to obtain a free buffer
// to fill with the next block of input PCM.
func (p *Processor) AcquireBuffer() (*rtring.PCMBuffer, bool) {
	return p.pool.Free.TryPop()
}

// SubmitBuffer is called by the audio callback once buf has been filled.
// Per spec.md §4.4, overflow is dropped silently rather than blocking the
// real-time thread; the buffer is returned to Free immediately so it is
// not lost.
func (p *Processor) SubmitBuffer(buf *rtring.PCMBuffer) {
	if !p.pool.Filled.TryPush(buf) {
		p.pool.Free.TryPush(buf)
	}
}

// Tick drains one buffer from Filled, if any, converts it to 24-bit fixed,
// and feeds it to the recovery parser. It returns false when Filled was
// empty (a transient underrun, logged by the caller's loop at most once
// per occurrence).
func (p *Processor) Tick() bool {
	buf, ok := p.pool.Filled.TryPop()
	if !ok {
		return false
	}
	samples := make([]syncsignal.Sample, buf.Len)
	for i := 0; i < buf.Len; i++ {
		samples[i] = pcm.Float32ToInt24(buf.Samples[i])
	}
	p.recovery.Append(samples)
	buf.Len = 0
	p.pool.Free.TryPush(buf)
	return true
}

func (p *Processor) onFrame(pkt *syncsignal.Packet) {
	p.currentFrame.Store(pkt.TimelineEditUnitIndex)
	p.state.Store(int32(mapFlags(pkt.Flags)))
	if p.Validator != nil {
		p.Validator(pkt)
	}
}

func (p *Processor) onSilence(crossed bool) {
	if crossed {
		p.log.Info("silence threshold crossed, forcing NoData")
		p.state.Store(int32(emitter.NoData))
	}
}

func mapFlags(f syncsignal.State) emitter.State {
	switch f {
	case syncsignal.StateStopped:
		return emitter.Stopped
	case syncsignal.StatePaused:
		return emitter.Paused
	case syncsignal.StatePlaying:
		return emitter.Playing
	default:
		return emitter.NoData
	}
}

// Run drains Filled continuously (one Tick per iteration, logging once per
// underrun occurrence) until ctx is done.
func (p *Processor) Run(ctx context.Context) error {
	loggedUnderrun := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if p.Tick() {
			loggedUnderrun = false
			continue
		}
		if !loggedUnderrun {
			p.log.Debug("filled ring empty, underrun")
			loggedUnderrun = true
		}
		time.Sleep(time.Millisecond)
	}
}
