package syncsignal

import "testing"

func chunk(buf []Sample, size int) [][]Sample {
	var out [][]Sample
	for len(buf) > 0 {
		n := size
		if n > len(buf) {
			n = len(buf)
		}
		out = append(out, buf[:n])
		buf = buf[n:]
	}
	return out
}

// TestRecoveryAcrossBuffers covers testable property #5 and scenario S2:
// a stream formed by concatenating emitted frames, re-chunked at an
// arbitrary buffer boundary, recovers the identical packet sequence.
func TestRecoveryAcrossBuffers(t *testing.T) {
	t.Parallel()

	p := samplePacket()
	p.TimelineEditUnitIndex = 7
	buf := make([]Sample, p.EditUnitDuration)
	if err := Modulate(p, buf); err != nil {
		t.Fatalf("Modulate: %v", err)
	}

	r := NewRecovery(48000, nil)
	var got []*Packet
	r.OnFrame = func(pkt *Packet) { got = append(got, pkt) }

	for _, c := range chunk(buf, 137) {
		r.Append(c)
	}

	if len(got) != 1 {
		t.Fatalf("got %d packets, want 1", len(got))
	}
	if got[0].TimelineEditUnitIndex != 7 {
		t.Fatalf("TimelineEditUnitIndex = %d, want 7", got[0].TimelineEditUnitIndex)
	}
}

// TestRecoveryMonotonicSequence covers testable property #4: during
// Playing, timelineEditUnitIndex advances by exactly 1 per frame.
func TestRecoveryMonotonicSequence(t *testing.T) {
	t.Parallel()

	var all []Sample
	for i := uint32(0); i < 5; i++ {
		p := samplePacket()
		p.TimelineEditUnitIndex = i
		buf := make([]Sample, p.EditUnitDuration)
		if err := Modulate(p, buf); err != nil {
			t.Fatalf("Modulate: %v", err)
		}
		all = append(all, buf...)
	}

	r := NewRecovery(48000, nil)
	var got []uint32
	r.OnFrame = func(pkt *Packet) { got = append(got, pkt.TimelineEditUnitIndex) }
	for _, c := range chunk(all, 333) {
		r.Append(c)
	}

	if len(got) != 5 {
		t.Fatalf("got %d packets, want 5", len(got))
	}
	for i, v := range got {
		if v != uint32(i) {
			t.Fatalf("packet %d: index = %d, want %d", i, v, i)
		}
	}
}

// TestRecoveryLeadTailAcrossBoundary covers the boundary behavior where
// the sync-marker lead is the last sample of one buffer and its tail is
// the first sample of the next.
func TestRecoveryLeadTailAcrossBoundary(t *testing.T) {
	t.Parallel()

	p := samplePacket()
	buf := make([]Sample, p.EditUnitDuration)
	if err := Modulate(p, buf); err != nil {
		t.Fatalf("Modulate: %v", err)
	}

	r := NewRecovery(48000, nil)
	var got []*Packet
	r.OnFrame = func(pkt *Packet) { got = append(got, pkt) }

	r.Append(buf[:1]) // lead only
	r.Append(buf[1:]) // tail, then the rest of the frame

	if len(got) != 1 {
		t.Fatalf("got %d packets, want 1", len(got))
	}
}

// TestRecoveryTwoMarkersOneBuffer covers the boundary behavior simulating
// a dropped audio buffer: a later marker's frame is recovered and the
// earlier partial candidate is discarded without aborting recovery.
func TestRecoveryTwoMarkersOneBuffer(t *testing.T) {
	t.Parallel()

	p1 := samplePacket()
	p1.TimelineEditUnitIndex = 1
	f1 := make([]Sample, p1.EditUnitDuration)
	if err := Modulate(p1, f1); err != nil {
		t.Fatalf("Modulate p1: %v", err)
	}

	p2 := samplePacket()
	p2.TimelineEditUnitIndex = 2
	f2 := make([]Sample, p2.EditUnitDuration)
	if err := Modulate(p2, f2); err != nil {
		t.Fatalf("Modulate p2: %v", err)
	}

	// Simulate a dropped buffer: only the first 100 samples of frame 1
	// (a partial candidate) glue directly onto a complete frame 2.
	dropped := append(append([]Sample{}, f1[:100]...), f2...)

	r := NewRecovery(48000, nil)
	var got []*Packet
	r.OnFrame = func(pkt *Packet) { got = append(got, pkt) }
	r.Append(dropped)

	if len(got) != 1 {
		t.Fatalf("got %d packets, want 1", len(got))
	}
	if got[0].TimelineEditUnitIndex != 2 {
		t.Fatalf("recovered index = %d, want 2 (the later marker)", got[0].TimelineEditUnitIndex)
	}
	if r.Stats().OverlapRecoveries < 1 {
		t.Fatal("expected at least one overlap recovery")
	}
}

// TestRecoveryDurationChange covers the boundary behavior where
// editUnitDuration changes mid-stream: the working buffer reallocates
// and the next frame still validates.
func TestRecoveryDurationChange(t *testing.T) {
	t.Parallel()

	p1 := samplePacket()
	p1.EditUnitDuration = 2000
	f1 := make([]Sample, p1.EditUnitDuration)
	if err := Modulate(p1, f1); err != nil {
		t.Fatalf("Modulate p1: %v", err)
	}

	p2 := samplePacket()
	p2.EditUnitDuration = 1600
	p2.SampleDurationDen = 48000 * 1600 / 2000 // keep Validate's relation sane if invoked elsewhere
	p2.TimelineEditUnitIndex = 1
	f2 := make([]Sample, p2.EditUnitDuration)
	if err := Modulate(p2, f2); err != nil {
		t.Fatalf("Modulate p2: %v", err)
	}

	all := append(append([]Sample{}, f1...), f2...)

	r := NewRecovery(48000, nil)
	var got []*Packet
	r.OnFrame = func(pkt *Packet) { got = append(got, pkt) }
	r.Append(all)

	if len(got) != 2 {
		t.Fatalf("got %d packets, want 2", len(got))
	}
	if got[1].EditUnitDuration != 1600 {
		t.Fatalf("second packet duration = %d, want 1600", got[1].EditUnitDuration)
	}
}

// TestRecoverySilenceNotifications covers scenario S5: 150000 consecutive
// zero samples at 48kHz fire one notification at the first sample and a
// second once the cumulative count crosses 3*48000=144000.
func TestRecoverySilenceNotifications(t *testing.T) {
	t.Parallel()

	r := NewRecovery(48000, nil)
	var calls []bool
	r.OnSilence = func(crossed bool) { calls = append(calls, crossed) }

	zeros := make([]Sample, 150000)
	r.Append(zeros)

	if len(calls) != 2 {
		t.Fatalf("got %d silence notifications, want 2: %v", len(calls), calls)
	}
	if calls[0] != false || calls[1] != true {
		t.Fatalf("calls = %v, want [false true]", calls)
	}
}

func TestRecoveryZeroDurationIsFatal(t *testing.T) {
	t.Parallel()

	p := samplePacket()
	buf := make([]Sample, p.EditUnitDuration)
	if err := Modulate(p, buf); err != nil {
		t.Fatalf("Modulate: %v", err)
	}
	// Corrupt the editUnitDuration word (word index 7, samples 14/15) to zero.
	buf[14], buf[15] = leadTail(0, false)

	r := NewRecovery(48000, nil)
	var got []*Packet
	r.OnFrame = func(pkt *Packet) { got = append(got, pkt) }
	r.Append(buf)

	if len(got) != 0 {
		t.Fatalf("got %d packets, want 0 for zero-duration frame", len(got))
	}
	if r.Stats().FramesReset == 0 {
		t.Fatal("expected a frame reset to be recorded")
	}
}
