package syncsignal

import (
	"log/slog"
)

// DefaultFrameSamples is the initial working-buffer size (samples) used
// before the first packet's editUnitDuration is known.
const DefaultFrameSamples = 2000

// syncMarkerLead is the lead sample value of the sync marker word: bit 16
// (the frame-start sentinel) set, low 16 bits the marker constant. Its
// little-endian byte image is {0xF0, 0xAA, 0x01}, the SYNCMARKER_LEAD
// pattern from spec.md §4.3.
const syncMarkerLead Sample = 1<<16 | uint32(Marker)

type recoveryPhase int

const (
	phaseHunting recoveryPhase = iota
	phaseWantTail
	phaseAccumulate
)

// Stats reports frame-recovery diagnostics, grounded on the teacher's
// PipelineDebugStats pattern: forwarding counters exposed for a debug
// endpoint rather than used for control flow.
type Stats struct {
	FramesEmitted     int64
	FramesReset       int64
	OverlapRecoveries int64
	SilenceStarted    int64
	SilenceThresholds int64
}

// Recovery is a stateful, resynchronizing parser that recovers sync
// packets from an append-only stream of 24-bit PCM samples delivered in
// buffers of arbitrary size with no alignment relationship to frame
// boundaries (spec.md §4.3).
type Recovery struct {
	log        *slog.Logger
	sampleRate int

	frame         []Sample
	duration      int
	offsetInFrame int
	phase         recoveryPhase

	zeroRun          int64
	silenceFirstSent bool
	silenceThreshSet bool

	stats Stats

	// OnFrame is invoked synchronously for each validated packet.
	OnFrame func(*Packet)
	// OnSilence is invoked once when silence begins (crossed=false) and
	// once more when the 3-second threshold is exceeded (crossed=true).
	OnSilence func(crossed bool)
}

// NewRecovery creates a Recovery for a stream at sampleRate samples/sec.
// If log is nil, slog.Default() is used.
func NewRecovery(sampleRate int, log *slog.Logger) *Recovery {
	if log == nil {
		log = slog.Default()
	}
	r := &Recovery{
		log:        log.With("component", "syncsignal-recovery"),
		sampleRate: sampleRate,
		frame:      make([]Sample, DefaultFrameSamples),
		duration:   DefaultFrameSamples,
	}
	return r
}

// Stats returns a snapshot of recovery diagnostics.
func (r *Recovery) Stats() Stats {
	return r.stats
}

// Append feeds the next buffer of PCM samples to the parser. It emits
// zero or more validated packets via OnFrame and zero or more silence
// notifications via OnSilence before returning.
func (r *Recovery) Append(buf []Sample) {
	for _, s := range buf {
		r.processSample(s)
	}
}

func (r *Recovery) processSample(s Sample) {
	switch r.phase {
	case phaseHunting:
		r.processHunting(s)
	case phaseWantTail:
		r.processWantTail(s)
	case phaseAccumulate:
		r.processAccumulate(s)
	}
}

func (r *Recovery) processHunting(s Sample) {
	if s == 0 {
		r.zeroRun++
		r.maybeNotifySilence()
	} else {
		r.resetSilenceCounter()
	}
	if s == syncMarkerLead {
		r.frame[0] = s
		r.offsetInFrame = 1
		r.phase = phaseWantTail
		r.resetSilenceCounter()
	}
}

func (r *Recovery) processWantTail(s Sample) {
	if negate24(r.frame[0]) == s {
		r.frame[1] = s
		r.offsetInFrame = 2
		r.phase = phaseAccumulate
		return
	}
	// Step 2: lead/tail mismatch invalidates the candidate and re-enters
	// hunting. The sample that failed to match is re-processed as a
	// hunting-phase sample: it may itself be silence or a fresh lead.
	r.resetToHunt()
	r.processHunting(s)
}

func (r *Recovery) processAccumulate(s Sample) {
	if r.offsetInFrame < HeaderSamples {
		r.frame[r.offsetInFrame] = s
		r.offsetInFrame++
		if r.offsetInFrame == HeaderSamples {
			r.validateHeader()
		}
		return
	}

	r.frame[r.offsetInFrame] = s
	r.offsetInFrame++
	if s != 0 {
		if !r.tryOverlapRecovery() {
			// No later lead was found in the buffer; the candidate is
			// discarded and the offending sample is re-processed as a
			// hunting-phase sample rather than silently dropped
			// (mirrors the lead/tail cross-buffer handling in
			// processWantTail).
			r.stats.FramesReset++
			r.resetToHunt()
			r.processHunting(s)
		}
		return
	}
	if r.offsetInFrame == r.duration {
		r.emit()
	}
}

// validateHeader runs step 4 of the recovery algorithm: checks for a
// spurious lead match inside the header, decodes the packet, rejects
// extensions (v1), and resizes the working buffer if editUnitDuration
// changed.
func (r *Recovery) validateHeader() {
	for i := 2; i < HeaderSamples; i++ {
		if r.frame[i] == syncMarkerLead {
			r.log.Debug("spurious lead pattern inside header, resetting")
			r.stats.FramesReset++
			r.resetToHunt()
			return
		}
	}

	pkt, err := Demodulate(r.frame[:HeaderSamples])
	if err != nil {
		r.log.Debug("header validation failed", "error", err)
		r.stats.FramesReset++
		r.resetToHunt()
		return
	}
	if int(pkt.Length()) != payloadWords {
		r.log.Debug("rejecting extended packet in v1", "length", pkt.Length())
		r.stats.FramesReset++
		r.resetToHunt()
		return
	}
	if pkt.EditUnitDuration == 0 {
		r.log.Warn("fatal per-frame error: editUnitDuration is zero")
		r.stats.FramesReset++
		r.resetToHunt()
		return
	}

	if int(pkt.EditUnitDuration) != len(r.frame) {
		newFrame := make([]Sample, pkt.EditUnitDuration)
		copy(newFrame, r.frame[:HeaderSamples])
		r.frame = newFrame
	}
	r.duration = int(pkt.EditUnitDuration)

	if r.offsetInFrame == r.duration {
		r.emitPacket(pkt)
	}
}

// tryOverlapRecovery implements step 6: when fill validation fails
// (a non-zero sample where zero fill was expected), scan the working
// buffer for a later lead occurrence. If found, shift the buffer down so
// that occurrence becomes the new candidate frame's start and resume
// without discarding its already-accumulated tail. The offending sample
// itself is included in the scan: if it is a lead, recovery resumes by
// waiting for its tail.
func (r *Recovery) tryOverlapRecovery() bool {
	for k := 1; k < r.offsetInFrame; k++ {
		if r.frame[k] != syncMarkerLead {
			continue
		}
		if k+1 < r.offsetInFrame && negate24(r.frame[k]) != r.frame[k+1] {
			continue
		}
		copy(r.frame, r.frame[k:r.offsetInFrame])
		r.offsetInFrame -= k
		r.phase = phaseAccumulate
		if r.offsetInFrame == 1 {
			// The lead is the newest sample; its tail has not arrived.
			r.phase = phaseWantTail
		}
		r.stats.OverlapRecoveries++
		r.log.Debug("overlap recovery: resyncing to later marker", "shift", k)
		if r.offsetInFrame >= HeaderSamples {
			r.validateHeader()
		}
		return true
	}
	return false
}

func (r *Recovery) emit() {
	pkt, err := Demodulate(r.frame[:HeaderSamples])
	if err != nil {
		r.stats.FramesReset++
		r.resetToHunt()
		return
	}
	r.emitPacket(pkt)
}

func (r *Recovery) emitPacket(pkt *Packet) {
	r.stats.FramesEmitted++
	if r.OnFrame != nil {
		r.OnFrame(pkt)
	}
	r.offsetInFrame = 0
	r.phase = phaseHunting
}

func (r *Recovery) resetToHunt() {
	r.offsetInFrame = 0
	r.phase = phaseHunting
}

func (r *Recovery) resetSilenceCounter() {
	r.zeroRun = 0
	r.silenceFirstSent = false
	r.silenceThreshSet = false
}

func (r *Recovery) maybeNotifySilence() {
	threshold := int64(3 * r.sampleRate)
	if r.zeroRun == 1 && !r.silenceFirstSent {
		r.silenceFirstSent = true
		r.stats.SilenceStarted++
		if r.OnSilence != nil {
			r.OnSilence(false)
		}
	}
	if r.zeroRun > threshold && !r.silenceThreshSet {
		r.silenceThreshSet = true
		r.stats.SilenceThresholds++
		if r.OnSilence != nil {
			r.OnSilence(true)
		}
	}
}
