package relay

import (
	"testing"
	"time"

	"github.com/relaybridge/relaybridge/observability"
)

func newV1TestSocket(role Role) (*socket, *fakeConn) {
	fc := newFakeConn()
	sock := newSocket(fc, Attachment{ServerID: "s", Role: role, Version: "1", CreatedAt: time.Now()})
	return sock, fc
}

func TestV1AttachReplacesSameRole(t *testing.T) {
	v := newV1Session(observability.NoopRelayObserver)

	s1, c1 := newV1TestSocket(RoleServer)
	v.attach(s1, &attachParams{Role: RoleServer, ServerID: "s", Version: "1"})

	s2, _ := newV1TestSocket(RoleServer)
	v.attach(s2, &attachParams{Role: RoleServer, ServerID: "s", Version: "1"})

	if !c1.closed || c1.closeCode != 1008 {
		t.Fatalf("expected s1 closed with 1008, got closed=%v code=%d", c1.closed, c1.closeCode)
	}
	if v.ss.byTagOne("server") != s2 {
		t.Fatal("expected s2 to be the current server socket")
	}
}

func TestV1ForwardsVerbatim(t *testing.T) {
	v := newV1Session(observability.NoopRelayObserver)
	server, serverConn := newV1TestSocket(RoleServer)
	client, clientConn := newV1TestSocket(RoleClient)
	v.attach(server, &attachParams{Role: RoleServer})
	v.attach(client, &attachParams{Role: RoleClient})

	v.onMessage(client, []byte("hello"))
	if len(serverConn.sent) != 1 || string(serverConn.sent[0]) != "hello" {
		t.Fatalf("server did not receive forwarded frame: %+v", serverConn.sent)
	}

	v.onMessage(server, []byte("world"))
	if len(clientConn.sent) != 1 || string(clientConn.sent[0]) != "world" {
		t.Fatalf("client did not receive forwarded frame: %+v", clientConn.sent)
	}
}

func TestV1OneSidedCloseLeavesPeerOpen(t *testing.T) {
	v := newV1Session(observability.NoopRelayObserver)
	server, _ := newV1TestSocket(RoleServer)
	client, clientConn := newV1TestSocket(RoleClient)
	v.attach(server, &attachParams{Role: RoleServer})
	v.attach(client, &attachParams{Role: RoleClient})

	v.onClose(server)

	if clientConn.closed {
		t.Fatal("expected client socket to remain open after server-side close")
	}
	if v.isEmpty() {
		t.Fatal("expected client socket to remain in the session")
	}
}
