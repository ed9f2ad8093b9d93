package relay

import "testing"

func TestSocketSetInsertionOrderPreserved(t *testing.T) {
	ss := newSocketSet()
	a := newSocket(newFakeConn(), Attachment{}, "t")
	b := newSocket(newFakeConn(), Attachment{}, "t")
	c := newSocket(newFakeConn(), Attachment{}, "t")
	ss.insert(a)
	ss.insert(b)
	ss.insert(c)

	got := ss.byTagAll("t")
	if len(got) != 3 || got[0] != a || got[1] != b || got[2] != c {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestSocketSetRemoveDeletesEmptyTagBucket(t *testing.T) {
	ss := newSocketSet()
	a := newSocket(newFakeConn(), Attachment{}, "only")
	ss.insert(a)
	ss.remove(a)

	if ss.byTagOne("only") != nil {
		t.Fatal("expected tag bucket to be gone")
	}
	if !ss.isEmpty() {
		t.Fatal("expected empty set")
	}
}

func TestSocketSetRemoveIsIdempotent(t *testing.T) {
	ss := newSocketSet()
	a := newSocket(newFakeConn(), Attachment{}, "t")
	ss.insert(a)
	ss.remove(a)
	ss.remove(a) // should not panic or corrupt state
	if !ss.isEmpty() {
		t.Fatal("expected empty set")
	}
}

func TestSocketSetRemoveFromMultiMemberTag(t *testing.T) {
	ss := newSocketSet()
	a := newSocket(newFakeConn(), Attachment{}, "t")
	b := newSocket(newFakeConn(), Attachment{}, "t")
	ss.insert(a)
	ss.insert(b)
	ss.remove(a)

	got := ss.byTagAll("t")
	if len(got) != 1 || got[0] != b {
		t.Fatalf("unexpected remaining set: %+v", got)
	}
}
