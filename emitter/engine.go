// Package emitter drives the play/pause/stop state machine that builds
// each edit unit's sync-packet PCM image at video cadence and feeds it to
// the audio callback through a real-time ring (rtring).
package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dtspro/dcsync/pcm"
	"github.com/dtspro/dcsync/rtring"
	"github.com/dtspro/dcsync/syncsignal"
)

// Engine is the emitter play-state machine and PCM worker.
type Engine struct {
	log *slog.Logger

	sampleRate   int
	chunkSamples int
	showLength   uint32

	pool *rtring.Pool

	// GetFrameData resolves asset/rate data for the frame currently being
	// built. Must be set before Run or Tick is called.
	GetFrameData GetFrameDataCallback

	state          atomic.Int32
	currentFrame   atomic.Uint32
	playoutID      atomic.Uint32
	processorReady atomic.Bool

	mu           sync.Mutex
	waitingSince time.Time
	waitTimeout  time.Duration

	frameBuf   []syncsignal.Sample
	pending    []float32
	pendingLen int
}

// NewEngine creates an Engine. chunkSamples is the audio-callback chunk
// size; showLength is the edit-unit count of the active composition
// (playing past its last edit unit resets the engine to NoData with
// currentFrame 0).
func NewEngine(sampleRate, chunkSamples int, showLength uint32, pool *rtring.Pool, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		log:          log.With("component", "emitter"),
		sampleRate:   sampleRate,
		chunkSamples: chunkSamples,
		showLength:   showLength,
		pool:         pool,
		pending:      make([]float32, chunkSamples),
	}
	e.state.Store(int32(NoData))
	return e
}

// State returns the engine's current play state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// CurrentFrame returns the edit-unit index currently being built or played.
func (e *Engine) CurrentFrame() uint32 {
	return e.currentFrame.Load()
}

// PlayoutID returns the playout identifier assigned by SetPlayoutID.
func (e *Engine) PlayoutID() uint32 {
	return e.playoutID.Load()
}

// SetPlayoutID installs the playoutID assigned by the DCS conversation
// (SetPlayoutIDCallback in spec terms).
func (e *Engine) SetPlayoutID(id uint32) {
	e.playoutID.Store(id)
}

// SetWaitTimeout bounds how long WaitingToPlay waits for processor
// readiness before auto-promoting to Playing regardless. Zero (the
// default) means wait indefinitely for SetProcessorReady(true).
func (e *Engine) SetWaitTimeout(d time.Duration) {
	e.mu.Lock()
	e.waitTimeout = d
	e.mu.Unlock()
}

// SetProcessorReady is the IsReadyCallback hook: it arms or disarms
// readiness, promoting WaitingToPlay to Playing the moment it becomes true.
func (e *Engine) SetProcessorReady(ready bool) {
	e.processorReady.Store(ready)
	if ready && e.State() == WaitingToPlay {
		e.setState(Playing)
	}
}

// Play requests playback. If the processor is not yet ready, the engine
// enters WaitingToPlay and auto-promotes once readiness arrives (or the
// wait timeout elapses, if set). NoData refuses the transition.
func (e *Engine) Play() {
	if e.State() == NoData {
		return
	}
	if e.processorReady.Load() {
		e.setState(Playing)
		return
	}
	e.mu.Lock()
	e.waitingSince = time.Now()
	e.mu.Unlock()
	e.setState(WaitingToPlay)
}

// Pause requests a pause. NoData refuses the transition.
func (e *Engine) Pause() {
	if e.State() == NoData {
		return
	}
	e.setState(Paused)
}

// Stop requests a stop. NoData refuses the transition.
func (e *Engine) Stop() {
	if e.State() == NoData {
		return
	}
	e.setState(Stopped)
}

// SetFrame jumps playback to edit unit n.
func (e *Engine) SetFrame(n uint32) {
	e.currentFrame.Store(n)
}

// ReturnToStart rewinds to edit unit 0.
func (e *Engine) ReturnToStart() {
	e.currentFrame.Store(0)
}

// Reset re-initializes the engine into NoData, from any state. Play, Pause
// and Stop are refused in NoData, so callers reload sample rate, max frame
// size, and show length (via Init) before resuming playback.
func (e *Engine) Reset() {
	e.setState(NoData)
	e.currentFrame.Store(0)
	e.frameBuf = nil
	e.pendingLen = 0
}

// Init re-establishes playback parameters after a Reset, then leaves the
// engine in Stopped.
func (e *Engine) Init(sampleRate, chunkSamples int, showLength uint32) {
	e.sampleRate = sampleRate
	e.chunkSamples = chunkSamples
	e.showLength = showLength
	e.pending = make([]float32, chunkSamples)
	e.pendingLen = 0
	e.setState(Stopped)
}

func (e *Engine) promoteIfWaitTimedOut() {
	if e.State() != WaitingToPlay {
		return
	}
	e.mu.Lock()
	timeout := e.waitTimeout
	since := e.waitingSince
	e.mu.Unlock()
	if timeout > 0 && time.Since(since) >= timeout {
		e.setState(Playing)
	}
}

// Tick runs one worker iteration: advances the frame counter when playing,
// resolves frame data, modulates the sync packet, and pushes PCM chunks
// onto the filled ring. A GetFrameData error or a zero-error Modulate
// failure is fatal to playback and resets the engine to NoData.
func (e *Engine) Tick() error {
	if e.State() == NoData {
		return nil
	}
	e.promoteIfWaitTimedOut()

	st := e.State()
	if st == Playing {
		next := e.currentFrame.Load() + 1
		if e.showLength > 0 && next >= e.showLength {
			e.log.Info("reached end of show, resetting")
			e.Reset()
			return nil
		}
		e.currentFrame.Store(next)
		st = e.State()
		if st == NoData {
			return nil
		}
	}

	cf := e.currentFrame.Load()
	if e.GetFrameData == nil {
		return fmt.Errorf("emitter: GetFrameData callback not set")
	}
	fi, err := e.GetFrameData(cf)
	if err != nil {
		e.log.Error("GetFrameData failed, resetting to NoData", "frame", cf, "error", err)
		e.Reset()
		return fmt.Errorf("emitter: GetFrameData: %w", err)
	}

	pkt := &syncsignal.Packet{
		Flags:                                syncsignal.State(syncFlags(st)),
		TimelineEditUnitIndex:                cf,
		PlayoutID:                            e.playoutID.Load(),
		EditUnitDuration:                     fi.EditUnitDuration,
		SampleDurationNum:                    fi.SampleDurationNum,
		SampleDurationDen:                    fi.SampleDurationDen,
		PrimaryPictureOutputOffset:           fi.PrimaryPictureOutputOffset,
		PrimaryPictureScreenOffset:           fi.PrimaryPictureScreenOffset,
		PrimaryPictureTrackFileEditUnitIndex: fi.PrimaryPictureTrackFileEditUnitIndex,
		PrimaryPictureTrackFileUUID:          fi.PrimaryPictureTrackFileUUID,
		PrimarySoundTrackFileEditUnitIndex:   fi.PrimarySoundTrackFileEditUnitIndex,
		PrimarySoundTrackFileUUID:            fi.PrimarySoundTrackFileUUID,
		CompositionPlaylistUUID:              fi.CompositionPlaylistUUID,
	}

	if cap(e.frameBuf) < int(fi.EditUnitDuration) {
		e.frameBuf = make([]syncsignal.Sample, fi.EditUnitDuration)
	}
	e.frameBuf = e.frameBuf[:fi.EditUnitDuration]
	if err := syncsignal.Modulate(pkt, e.frameBuf); err != nil {
		e.log.Error("modulate failed, resetting to NoData", "frame", cf, "error", err)
		e.Reset()
		return fmt.Errorf("emitter: modulate: %w", err)
	}

	e.pushChunks(e.frameBuf)
	return nil
}

// pushChunks slices frame into chunkSamples-sized float32 chunks, carrying
// a partial chunk at a frame boundary over into the next call.
func (e *Engine) pushChunks(frame []syncsignal.Sample) {
	i := 0
	for i < len(frame) {
		n := copy(e.pending[e.pendingLen:], floatChunk(frame[i:], e.chunkSamples-e.pendingLen))
		e.pendingLen += n
		i += n
		if e.pendingLen == e.chunkSamples {
			e.pushOneChunk()
		}
	}
}

func floatChunk(frame []syncsignal.Sample, max int) []float32 {
	n := len(frame)
	if n > max {
		n = max
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = pcm.Int24ToFloat32(frame[i])
	}
	return out
}

func (e *Engine) pushOneChunk() {
	buf, ok := e.pool.Free.TryPop()
	if !ok {
		e.log.Error("free ring exhausted, dropping chunk")
		e.pendingLen = 0
		return
	}
	copy(buf.Samples, e.pending[:e.pendingLen])
	buf.Len = e.pendingLen
	if !e.pool.Filled.TryPush(buf) {
		e.log.Error("filled ring full, programming error: pool undersized for consumer rate")
	}
	e.pendingLen = 0
}

// Run drives Tick on a fixed cadence until ctx is done: the worker sleeps
// a half-queue-depth's worth of wall time between ticks, per spec.md
// §4.5 ("queue-depth ÷ 2 × buffer-duration").
func (e *Engine) Run(ctx context.Context, queueDepth int) error {
	bufDur := time.Duration(float64(e.chunkSamples) / float64(e.sampleRate) * float64(time.Second))
	sleep := time.Duration(float64(queueDepth) / 2 * float64(bufDur))
	if sleep <= 0 {
		sleep = bufDur
	}
	ticker := time.NewTicker(sleep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Tick(); err != nil {
				e.log.Warn("tick error", "error", err)
			}
		}
	}
}
