package rtring

import (
	"sync"
	"testing"
)

func TestNewRoundsCapacityToPowerOfTwo(t *testing.T) {
	t.Parallel()

	r := New[int](5)
	if r.Cap() != 8 {
		t.Fatalf("Cap() = %d, want 8", r.Cap())
	}
}

func TestPushPopOrder(t *testing.T) {
	t.Parallel()

	r := New[int](4)
	for i := 1; i <= 4; i++ {
		if !r.TryPush(i) {
			t.Fatalf("TryPush(%d) failed unexpectedly", i)
		}
	}
	if r.TryPush(5) {
		t.Fatal("TryPush on a full ring should fail")
	}
	for i := 1; i <= 4; i++ {
		v, ok := r.TryPop()
		if !ok {
			t.Fatalf("TryPop() failed unexpectedly at i=%d", i)
		}
		if v != i {
			t.Fatalf("TryPop() = %d, want %d", v, i)
		}
	}
	if _, ok := r.TryPop(); ok {
		t.Fatal("TryPop on an empty ring should fail")
	}
}

func TestLenTracksOccupancy(t *testing.T) {
	t.Parallel()

	r := New[int](8)
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}
	r.TryPush(1)
	r.TryPush(2)
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	r.TryPop()
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

// TestConcurrentSingleProducerSingleConsumer drives one producer and one
// consumer goroutine concurrently and checks every value arrives exactly
// once, in order, under the -race detector.
func TestConcurrentSingleProducerSingleConsumer(t *testing.T) {
	const n = 100000
	r := New[int](64)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !r.TryPush(i) {
			}
		}
	}()

	got := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for len(got) < n {
			if v, ok := r.TryPop(); ok {
				got = append(got, v)
			}
		}
	}()

	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("value at position %d = %d, want %d", i, v, i)
		}
	}
}

func TestNewPoolSeedsFreeRing(t *testing.T) {
	t.Parallel()

	p := NewPool(4, 256)
	if p.Free.Len() != 4 {
		t.Fatalf("Free.Len() = %d, want 4", p.Free.Len())
	}
	if p.Filled.Len() != 0 {
		t.Fatalf("Filled.Len() = %d, want 0", p.Filled.Len())
	}

	buf, ok := p.Free.TryPop()
	if !ok {
		t.Fatal("expected a free buffer")
	}
	if len(buf.Samples) != 256 {
		t.Fatalf("len(Samples) = %d, want 256", len(buf.Samples))
	}
}

func TestQuarterSecondBuffers(t *testing.T) {
	t.Parallel()

	got := QuarterSecondBuffers(48000, 2000)
	want := 6 // ceil(12000/2000)
	if got != want {
		t.Fatalf("QuarterSecondBuffers() = %d, want %d", got, want)
	}
}
