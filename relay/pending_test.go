package relay

import "testing"

func TestPendingFIFOBoundedDropsOldest(t *testing.T) {
	p := newPendingFIFO(3)
	p.push([]byte("a"))
	p.push([]byte("b"))
	p.push([]byte("c"))
	p.push([]byte("d"))

	frames := p.drain()
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	want := []string{"b", "c", "d"}
	for i, f := range frames {
		if string(f) != want[i] {
			t.Fatalf("frame %d = %q, want %q", i, f, want[i])
		}
	}
}

func TestPendingFIFOPushFrontReinsertsAtHead(t *testing.T) {
	p := newPendingFIFO(5)
	p.push([]byte("b"))
	p.push([]byte("c"))
	p.pushFront([]byte("a"))

	first, ok := p.popFront()
	if !ok || string(first) != "a" {
		t.Fatalf("expected 'a' at front, got %q ok=%v", first, ok)
	}
}

func TestPendingFIFOPopFrontOnEmpty(t *testing.T) {
	p := newPendingFIFO(3)
	if _, ok := p.popFront(); ok {
		t.Fatal("expected popFront on empty FIFO to report false")
	}
}
