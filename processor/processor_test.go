package processor

import (
	"testing"

	"github.com/dtspro/dcsync/emitter"
	"github.com/dtspro/dcsync/pcm"
	"github.com/dtspro/dcsync/rtring"
	"github.com/dtspro/dcsync/syncsignal"
)

func modulatedFloats(t *testing.T, pkt *syncsignal.Packet) []float32 {
	t.Helper()
	buf := make([]syncsignal.Sample, pkt.EditUnitDuration)
	if err := syncsignal.Modulate(pkt, buf); err != nil {
		t.Fatalf("Modulate: %v", err)
	}
	out := make([]float32, len(buf))
	for i, s := range buf {
		out[i] = pcm.Int24ToFloat32(s)
	}
	return out
}

func TestProcessorRecoversPacketAndUpdatesState(t *testing.T) {
	t.Parallel()

	pkt := &syncsignal.Packet{
		Flags:                 syncsignal.StatePlaying,
		TimelineEditUnitIndex: 3,
		EditUnitDuration:      2000,
		SampleDurationNum:     1,
		SampleDurationDen:     48000,
	}
	floats := modulatedFloats(t, pkt)

	pool := rtring.NewPool(8, len(floats))
	p := NewProcessor(48000, pool, nil)

	var validated []*syncsignal.Packet
	p.Validator = func(pkt *syncsignal.Packet) { validated = append(validated, pkt) }

	buf, ok := p.AcquireBuffer()
	if !ok {
		t.Fatal("expected a free buffer")
	}
	copy(buf.Samples, floats)
	buf.Len = len(floats)
	p.SubmitBuffer(buf)

	if !p.Tick() {
		t.Fatal("Tick() = false, want true (buffer was queued)")
	}

	if p.State() != emitter.Playing {
		t.Fatalf("State() = %v, want Playing", p.State())
	}
	if p.CurrentFrame() != 3 {
		t.Fatalf("CurrentFrame() = %d, want 3", p.CurrentFrame())
	}
	if len(validated) != 1 {
		t.Fatalf("validator invoked %d times, want 1", len(validated))
	}
}

func TestProcessorTickFalseOnEmptyRing(t *testing.T) {
	t.Parallel()
	pool := rtring.NewPool(4, 256)
	p := NewProcessor(48000, pool, nil)
	if p.Tick() {
		t.Fatal("Tick() = true on empty ring, want false")
	}
}

func TestProcessorSilenceForcesNoData(t *testing.T) {
	t.Parallel()
	pool := rtring.NewPool(4, 200000)
	p := NewProcessor(48000, pool, nil)

	buf, ok := p.AcquireBuffer()
	if !ok {
		t.Fatal("expected a free buffer")
	}
	n := 150000
	for i := 0; i < n; i++ {
		buf.Samples[i] = 0
	}
	buf.Len = n
	p.SubmitBuffer(buf)
	p.Tick()

	if p.State() != emitter.NoData {
		t.Fatalf("State() = %v, want NoData after silence threshold", p.State())
	}
}

func TestSubmitBufferDropsOnFullRing(t *testing.T) {
	t.Parallel()
	pool := rtring.NewPool(2, 16)
	p := NewProcessor(48000, pool, nil)

	bufs := make([]*rtring.PCMBuffer, 0, 2)
	for i := 0; i < 2; i++ {
		b, ok := p.AcquireBuffer()
		if !ok {
			t.Fatal("expected a free buffer")
		}
		bufs = append(bufs, b)
	}
	for _, b := range bufs {
		p.SubmitBuffer(b)
	}
	// Filled ring is now full (capacity 2); a third submit must not block
	// or panic, and the buffer should be returned to Free instead of lost.
	extra := &rtring.PCMBuffer{Samples: make([]float32, 16)}
	p.SubmitBuffer(extra)
	if pool.Free.Len() != 1 {
		t.Fatalf("Free.Len() = %d, want 1 (dropped buffer returned)", pool.Free.Len())
	}
}
