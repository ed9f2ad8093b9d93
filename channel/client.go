package channel

import (
	"github.com/relaybridge/relaybridge/e2eecrypto"
)

// CreateClient generates a fresh ephemeral keypair, derives the shared key
// against the daemon's pinned public key (obtained out-of-band via the
// pairing QR), and initiates the handshake. It never returns an error for a
// transient send failure — per spec §4.B step 3, a synchronous send failure
// is reported via events.OnError and the retry timer still starts.
func CreateClient(transport Transport, daemonPublicB64 string, events Events) (*Channel, error) {
	kp, err := e2eecrypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return createClientWithKeyPair(transport, daemonPublicB64, kp, events)
}

// createClientWithKeyPair is CreateClient with the ephemeral keypair supplied
// by the caller instead of generated fresh; it exists so tests can drive a
// specific client public key (e.g. to exercise daemon re-hello behavior).
func createClientWithKeyPair(transport Transport, daemonPublicB64 string, kp e2eecrypto.KeyPair, events Events) (*Channel, error) {
	daemonPub, err := e2eecrypto.B64Decode(daemonPublicB64)
	if err != nil {
		return nil, err
	}
	sharedKey, err := e2eecrypto.DeriveShared(kp.Secret, daemonPub)
	if err != nil {
		return nil, err
	}

	c := &Channel{
		transport: transport,
		events:    events,
		state:     stateHandshaking,
		isClient:  true,
		key:       sharedKey,
	}
	transport.SetHandlers(c.handleClientMessage, c.handleTransportClose, c.handleTransportError)

	helloKeyB64 := e2eecrypto.B64Encode(kp.Public[:])
	c.sendHelloBestEffort(helloKeyB64)

	c.mu.Lock()
	c.retryTimer = startRetryTimer(helloRetryInterval, func() {
		c.mu.Lock()
		stillHandshaking := c.state == stateHandshaking
		c.mu.Unlock()
		if !stillHandshaking {
			return
		}
		c.sendHelloBestEffort(helloKeyB64)
	})
	c.mu.Unlock()

	return c, nil
}

func (c *Channel) sendHelloBestEffort(keyB64 string) {
	if err := c.transport.Send(Frame{Text: true, Data: encodeHello(keyB64)}); err != nil {
		c.events.fireError(err)
	}
}

// handleClientMessage is installed as the client's sole onMessage handler
// for the lifetime of the channel; it dispatches on current state.
func (c *Channel) handleClientMessage(f Frame) {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()

	switch st {
	case stateHandshaking:
		t, ok := sniffType(f.Data)
		if !ok || t != wireTypeReady {
			return // §4.B step 6: ignored, not an error
		}
		c.mu.Lock()
		c.state = stateOpen
		c.cancelRetryTimerLocked()
		c.flushPendingLocked()
		c.mu.Unlock()
		c.events.fireOpen()
	case stateOpen:
		c.handleOpenFrame(f, false)
	case stateClosed:
		// no-op: a closed channel never processes further frames.
	}
}
