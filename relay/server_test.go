package relay_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaybridge/relaybridge/relay"
)

func newTestServer(t *testing.T, cfg relay.Config) (*httptest.Server, string) {
	t.Helper()
	srv := relay.New(cfg, relay.ServerOptions{AllowNoOrigin: true})
	mux := http.NewServeMux()
	srv.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + cfg.Path
	return ts, wsURL
}

func dial(t *testing.T, wsURL, query string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(wsURL+"?"+query, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", query, err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readJSON(t *testing.T, c *websocket.Conn, v interface{}) {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
}

func TestFreshV2Pairing(t *testing.T) {
	cfg := relay.DefaultConfig()
	_, wsURL := newTestServer(t, cfg)

	control := dial(t, wsURL, "role=server&serverId=s1&v=2")

	var sync struct {
		Type          string   `json:"type"`
		ConnectionIDs []string `json:"connectionIds"`
	}
	readJSON(t, control, &sync)
	if sync.Type != "sync" || len(sync.ConnectionIDs) != 0 {
		t.Fatalf("unexpected initial sync: %+v", sync)
	}

	client := dial(t, wsURL, "role=client&serverId=s1&v=2")

	var connected struct {
		Type         string `json:"type"`
		ConnectionID string `json:"connectionId"`
	}
	readJSON(t, control, &connected)
	if connected.Type != "connected" || connected.ConnectionID == "" {
		t.Fatalf("unexpected connected message: %+v", connected)
	}
	cid := connected.ConnectionID

	data := dial(t, wsURL, "role=server&serverId=s1&v=2&connectionId="+cid)

	if err := client.WriteMessage(websocket.TextMessage, []byte("ping-ciphertext")); err != nil {
		t.Fatalf("client send: %v", err)
	}
	_ = data.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, got, err := data.ReadMessage()
	if err != nil || string(got) != "ping-ciphertext" {
		t.Fatalf("data read = %q, err %v", got, err)
	}
	if err := data.WriteMessage(websocket.TextMessage, []byte("pong-ciphertext")); err != nil {
		t.Fatalf("data send: %v", err)
	}
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, got, err = client.ReadMessage()
	if err != nil || string(got) != "pong-ciphertext" {
		t.Fatalf("client read = %q, err %v", got, err)
	}

	_ = client.Close()

	var disconnected struct {
		Type         string `json:"type"`
		ConnectionID string `json:"connectionId"`
	}
	readJSON(t, control, &disconnected)
	if disconnected.Type != "disconnected" || disconnected.ConnectionID != cid {
		t.Fatalf("unexpected disconnected message: %+v", disconnected)
	}

	_ = data.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = data.ReadMessage()
	if err == nil {
		t.Fatal("expected data socket to be closed")
	}
	if ce, ok := err.(*websocket.CloseError); ok && ce.Code != 1001 {
		t.Fatalf("expected close code 1001, got %d", ce.Code)
	}
}

func TestClientSendsBeforeDaemonDataSocket(t *testing.T) {
	cfg := relay.DefaultConfig()
	_, wsURL := newTestServer(t, cfg)

	control := dial(t, wsURL, "role=server&serverId=s2&v=2")
	var sync0 struct {
		Type          string   `json:"type"`
		ConnectionIDs []string `json:"connectionIds"`
	}
	readJSON(t, control, &sync0)

	client := dial(t, wsURL, "role=client&serverId=s2&v=2")
	var connected struct {
		Type         string `json:"type"`
		ConnectionID string `json:"connectionId"`
	}
	readJSON(t, control, &connected)
	cid := connected.ConnectionID

	if err := client.WriteMessage(websocket.TextMessage, []byte("c1")); err != nil {
		t.Fatalf("client send: %v", err)
	}
	time.Sleep(50 * time.Millisecond) // give the relay time to buffer before the data socket attaches

	data := dial(t, wsURL, "role=server&serverId=s2&v=2&connectionId="+cid)
	_ = data.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, got, err := data.ReadMessage()
	if err != nil || string(got) != "c1" {
		t.Fatalf("flushed frame = %q, err %v", got, err)
	}

	if err := client.WriteMessage(websocket.TextMessage, []byte("c2")); err != nil {
		t.Fatalf("client send: %v", err)
	}
	_, got, err = data.ReadMessage()
	if err != nil || string(got) != "c2" {
		t.Fatalf("live frame = %q, err %v", got, err)
	}
}

func TestBufferOverflowDropsOldest(t *testing.T) {
	cfg := relay.DefaultConfig()
	cfg.MaxPendingFramesPerConnection = 200
	_, wsURL := newTestServer(t, cfg)

	control := dial(t, wsURL, "role=server&serverId=s3&v=2")
	var sync0 struct {
		Type          string   `json:"type"`
		ConnectionIDs []string `json:"connectionIds"`
	}
	readJSON(t, control, &sync0)

	client := dial(t, wsURL, "role=client&serverId=s3&v=2")
	var connected struct {
		Type         string `json:"type"`
		ConnectionID string `json:"connectionId"`
	}
	readJSON(t, control, &connected)
	cid := connected.ConnectionID

	for i := 0; i < 201; i++ {
		frame := "frame-" + itoa(i)
		if err := client.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("client send %d: %v", i, err)
		}
	}
	time.Sleep(100 * time.Millisecond)

	data := dial(t, wsURL, "role=server&serverId=s3&v=2&connectionId="+cid)
	for i := 1; i < 201; i++ {
		_ = data.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, got, err := data.ReadMessage()
		want := "frame-" + itoa(i)
		if err != nil || string(got) != want {
			t.Fatalf("frame %d: got %q want %q err %v", i, got, want, err)
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

func TestStuckControlRecoveredByReset(t *testing.T) {
	cfg := relay.DefaultConfig()
	cfg.ControlProbeInitialDelay = 40 * time.Millisecond
	cfg.ControlProbeSecondDelay = 40 * time.Millisecond
	_, wsURL := newTestServer(t, cfg)

	control := dial(t, wsURL, "role=server&serverId=s4&v=2")
	var sync0 struct {
		Type          string   `json:"type"`
		ConnectionIDs []string `json:"connectionIds"`
	}
	readJSON(t, control, &sync0)

	client := dial(t, wsURL, "role=client&serverId=s4&v=2")
	var connected struct {
		Type         string `json:"type"`
		ConnectionID string `json:"connectionId"`
	}
	readJSON(t, control, &connected)
	cid := connected.ConnectionID

	var nudge struct {
		Type          string   `json:"type"`
		ConnectionIDs []string `json:"connectionIds"`
	}
	readJSON(t, control, &nudge)
	if nudge.Type != "sync" || len(nudge.ConnectionIDs) != 1 || nudge.ConnectionIDs[0] != cid {
		t.Fatalf("unexpected probe nudge: %+v", nudge)
	}

	_ = control.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := control.ReadMessage()
	if err == nil {
		t.Fatal("expected control socket to be force-closed")
	}
	if ce, ok := err.(*websocket.CloseError); ok && ce.Code != 1011 {
		t.Fatalf("expected close code 1011, got %d", ce.Code)
	}

	if err := client.WriteMessage(websocket.PingMessage, nil); err != nil {
		t.Fatalf("expected client socket to remain open: %v", err)
	}
}
