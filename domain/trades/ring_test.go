package trades

import "testing"

func TestRingFIFOAcrossGrowth(t *testing.T) {
	r := NewRing[int](2)

	for i := 0; i < 3; i++ {
		r.PushBack(i)
	}
	if v, _ := r.PopFront(); v != 0 {
		t.Fatalf("expected 0, got %d", v)
	}
	// wrap the head around before forcing a grow
	for i := 3; i < 10; i++ {
		r.PushBack(i)
	}

	if r.Len() != 9 {
		t.Fatalf("expected 9 elements, got %d", r.Len())
	}
	want := 1
	r.Each(func(v int) bool {
		if v != want {
			t.Fatalf("expected %d, got %d", want, v)
		}
		want++
		return true
	})
	for want := 1; want < 10; want++ {
		v, ok := r.PopFront()
		if !ok || v != want {
			t.Fatalf("PopFront = %d,%v want %d", v, ok, want)
		}
	}
	if _, ok := r.Front(); ok {
		t.Error("expected empty ring")
	}
}

func TestRingRejectsBadSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for non power of two size")
		}
	}()
	NewRing[int](3)
}
