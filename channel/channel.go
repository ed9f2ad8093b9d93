// Package channel implements the end-to-end encrypted channel state machine
// that rides on top of an arbitrary byte transport (spec §4.B): handshake
// orchestration for both the client and daemon roles, ciphertext framing in
// the open state, re-handshake/rekey detection, and a bounded pending-send
// queue.
package channel

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/relaybridge/relaybridge/e2eecrypto"
)

type state int

const (
	stateHandshaking state = iota
	stateOpen
	stateClosed
)

const helloRetryInterval = 1000 * time.Millisecond

// Channel is the E2EE channel state machine. Exactly one of the client or
// daemon constructors produces a Channel; both share the same open-state
// message handling and Send behavior afterward.
type Channel struct {
	mu        sync.Mutex
	transport Transport
	events    Events
	state     state
	isClient  bool

	key [32]byte // current derived shared key

	pending [][]byte // plaintext frames queued while handshaking

	retryTimer *retryTimer

	// daemon-only: long-lived keypair, kept so a re-hello can re-derive and rekey.
	daemonKeyPair e2eecrypto.KeyPair
}

// Send encrypts and transmits plaintext, or queues it if the channel is
// still handshaking. It never blocks on or rejects a caller because of
// handshake-in-progress state.
func (c *Channel) Send(plaintext []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateClosed:
		return ErrChannelClosed
	case stateHandshaking:
		c.enqueuePendingLocked(plaintext)
		return nil
	default:
		return c.sendOpenLocked(plaintext)
	}
}

func (c *Channel) enqueuePendingLocked(plaintext []byte) {
	cpy := append([]byte(nil), plaintext...)
	c.pending = append(c.pending, cpy)
	if len(c.pending) > maxBufferedSends {
		c.pending = c.pending[len(c.pending)-maxBufferedSends:]
	}
}

func (c *Channel) sendOpenLocked(plaintext []byte) error {
	ct, err := e2eecrypto.Encrypt(c.key, plaintext)
	if err != nil {
		return err
	}
	return c.transport.Send(Frame{Text: true, Data: []byte(e2eecrypto.B64Encode(ct))})
}

// flushPendingLocked sends every queued plaintext frame under the current
// key and clears the queue. Called with c.mu held.
func (c *Channel) flushPendingLocked() {
	pending := c.pending
	c.pending = nil
	for _, p := range pending {
		_ = c.sendOpenLocked(p)
	}
}

// discardPendingLocked drops the pending-send queue without sending it, used
// on rekey to avoid leaking frames between logical client sessions.
func (c *Channel) discardPendingLocked() {
	c.pending = nil
}

func (c *Channel) cancelRetryTimerLocked() {
	if c.retryTimer != nil {
		c.retryTimer.cancel()
		c.retryTimer = nil
	}
}

// fatalClose closes the transport with the given close code/reason, per
// spec §4.B step 3: decrypt/protocol-violation errors are fatal but never
// surface via OnError — higher layers must see a clean close so they
// reconnect.
func (c *Channel) fatalClose(code int, reason string) {
	c.mu.Lock()
	c.state = stateClosed
	c.cancelRetryTimerLocked()
	c.mu.Unlock()
	_ = c.transport.Close(code, reason)
}

func (c *Channel) handleTransportClose() {
	c.mu.Lock()
	c.state = stateClosed
	c.cancelRetryTimerLocked()
	c.mu.Unlock()
	c.events.fireClose()
}

func (c *Channel) handleTransportError(err error) {
	c.events.fireError(err)
}

// handleOpenFrame implements §4.B "Open-state message handling" for both
// roles. isDaemon selects the re-hello handling branch (client side just
// ignores stray hellos).
func (c *Channel) handleOpenFrame(f Frame, isDaemon bool) {
	if t, ok := sniffType(f.Data); ok {
		switch t {
		case wireTypeHello:
			if isDaemon {
				c.handleReHello(f.Data)
			}
			// client: ignore
			return
		case wireTypeReady:
			// ignore in open, for both roles
			return
		default:
			c.fatalClose(1011, "Received plaintext frame on encrypted channel")
			return
		}
	}

	raw, err := decodeCiphertextFrame(f)
	if err != nil {
		c.fatalClose(1011, err.Error())
		return
	}
	c.mu.Lock()
	key := c.key
	c.mu.Unlock()
	plain, err := e2eecrypto.Decrypt(key, raw)
	if err != nil {
		c.fatalClose(1011, err.Error())
		return
	}
	c.events.fireMessage(plain)
}

// decodeCiphertextFrame implements the text/binary fallback of §4.B step 2:
// text frames are base64-decoded; binary frames are tried as UTF-8 base64
// first, falling back to raw bytes.
func decodeCiphertextFrame(f Frame) ([]byte, error) {
	if f.Text {
		return e2eecrypto.B64Decode(string(f.Data))
	}
	if b, err := e2eecrypto.B64Decode(string(f.Data)); err == nil {
		return b, nil
	}
	return f.Data, nil
}

func (c *Channel) handleReHello(raw []byte) {
	var h helloMsg
	if err := json.Unmarshal(raw, &h); err != nil || h.Key == "" {
		// Malformed re-hello is not a fatal protocol violation by spec;
		// the hello path either succeeds or the channel simply ignores it.
		return
	}
	keyBytes, err := e2eecrypto.B64Decode(h.Key)
	if err != nil {
		return
	}
	newKey, err := e2eecrypto.DeriveShared(c.daemonKeyPair.Secret, keyBytes)
	if err != nil {
		return
	}

	c.mu.Lock()
	sameKey := newKey == c.key
	if sameKey {
		c.mu.Unlock()
		_ = c.transport.Send(Frame{Text: true, Data: encodeReady()})
		return
	}
	c.state = stateHandshaking
	c.key = newKey
	c.discardPendingLocked()
	c.mu.Unlock()

	_ = c.transport.Send(Frame{Text: true, Data: encodeReady()})

	c.mu.Lock()
	c.state = stateOpen
	c.flushPendingLocked()
	c.mu.Unlock()
}

var errTransportClosedDuringHandshake = errors.New("channel: transport closed during handshake")
