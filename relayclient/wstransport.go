// Package relayclient dials the relay's `/ws` endpoint for both the daemon
// and client roles and bridges the resulting websocket into an E2EE
// channel.
package relayclient

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/relaybridge/relaybridge/channel"
	"github.com/relaybridge/relaybridge/realtime/ws"
	"github.com/relaybridge/relaybridge/relayerr"
)

// WSTransport adapts a realtime/ws.Conn into channel.Transport by running a
// single background read pump that dispatches frames to whichever handlers
// are currently installed; handlers may be swapped at any time via
// SetHandlers (the E2EE channel does this mid-handshake).
type WSTransport struct {
	conn *ws.Conn

	mu        sync.Mutex
	onMessage func(channel.Frame)
	onClose   func()
	onError   func(error)
	closeErr  error // the read error that ended readLoop, if any

	closeOnce sync.Once
}

func newWSTransport(conn *ws.Conn) *WSTransport {
	t := &WSTransport{conn: conn}
	go t.readLoop()
	return t
}

func (t *WSTransport) readLoop() {
	for {
		mt, data, err := t.conn.ReadMessage(context.Background())
		if err != nil {
			t.mu.Lock()
			t.closeErr = err
			onClose := t.onClose
			t.mu.Unlock()
			if onClose != nil {
				onClose()
			}
			return
		}
		t.mu.Lock()
		onMessage := t.onMessage
		t.mu.Unlock()
		if onMessage != nil {
			onMessage(channel.Frame{Text: mt == websocket.TextMessage, Data: data})
		}
	}
}

// CloseCode classifies the error that ended the read pump into a stable
// relayerr.Code, the way a caller recovers why the relay tore down its
// connection (e.g. 1011 "Control unresponsive") without parsing close
// reason text itself. It reports false if the transport is still open or
// closed for a reason ClassifyRelayCloseCode doesn't recognize.
func (t *WSTransport) CloseCode() (relayerr.Code, bool) {
	t.mu.Lock()
	err := t.closeErr
	t.mu.Unlock()
	if err == nil {
		return "", false
	}
	return relayerr.ClassifyRelayCloseCode(err)
}

func (t *WSTransport) Send(f channel.Frame) error {
	mt := websocket.BinaryMessage
	if f.Text {
		mt = websocket.TextMessage
	}
	return t.conn.WriteMessage(context.Background(), mt, f.Data)
}

func (t *WSTransport) Close(code int, reason string) error {
	var err error
	t.closeOnce.Do(func() { err = t.conn.CloseWithStatus(code, reason) })
	return err
}

func (t *WSTransport) SetHandlers(onMessage func(channel.Frame), onClose func(), onError func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = onMessage
	t.onClose = onClose
	t.onError = onError
}
