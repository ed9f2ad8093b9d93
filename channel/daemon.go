package channel

import (
	"encoding/json"
	"sync"

	"github.com/relaybridge/relaybridge/e2eecrypto"
)

// CreateDaemon waits for the client's hello and derives the shared key
// against the daemon's long-lived keypair. It blocks until the handshake
// completes or fails, returning only an open channel or an error.
func CreateDaemon(transport Transport, daemonKeyPair e2eecrypto.KeyPair, events Events) (*Channel, error) {
	c := &Channel{
		transport:     transport,
		events:        events,
		isClient:      false,
		state:         stateHandshaking,
		daemonKeyPair: daemonKeyPair,
	}

	result := make(chan error, 1)
	var once sync.Once
	resolve := func(err error) { once.Do(func() { result <- err }) }

	var bufMu sync.Mutex
	var buffered []Frame

	bufferingHandler := func(f Frame) {
		bufMu.Lock()
		buffered = append(buffered, f)
		bufMu.Unlock()
	}

	firstMessageHandler := func(f Frame) {
		t, ok := sniffType(f.Data)
		if !ok || t != wireTypeHello {
			resolve(buildInvalidHelloErr(f.Data, t, ok))
			return
		}
		var h helloMsg
		if err := json.Unmarshal(f.Data, &h); err != nil || h.Key == "" {
			resolve(buildInvalidHelloErr(f.Data, t, true))
			return
		}
		keyBytes, err := e2eecrypto.B64Decode(h.Key)
		if err != nil || len(keyBytes) != 32 {
			resolve(buildInvalidHelloErr(f.Data, t, true))
			return
		}

		// Swap to the buffering handler before deriving: any frame that
		// arrives concurrently during handshake setup is queued rather
		// than being reinterpreted as a second hello.
		transport.SetHandlers(bufferingHandler, c.handleTransportClose, c.handleTransportError)

		sharedKey, err := e2eecrypto.DeriveShared(daemonKeyPair.Secret, keyBytes)
		if err != nil {
			resolve(err)
			return
		}

		c.mu.Lock()
		c.key = sharedKey
		c.state = stateOpen
		c.mu.Unlock()

		if err := transport.Send(Frame{Text: true, Data: encodeReady()}); err != nil {
			resolve(err)
			return
		}
		c.events.fireOpen()
		resolve(nil)

		// Install the normal open-state handler, then replay whatever
		// arrived while we were deriving keys, in order, skipping any
		// frame that itself parses as a plaintext handshake message
		// (handshake idempotency, §4.B step 3).
		transport.SetHandlers(c.handleDaemonOpenMessage, c.handleTransportClose, c.handleTransportError)
		bufMu.Lock()
		toReplay := buffered
		buffered = nil
		bufMu.Unlock()
		for _, bf := range toReplay {
			if bt, bok := sniffType(bf.Data); bok && (bt == wireTypeHello || bt == wireTypeReady) {
				continue
			}
			c.handleOpenFrame(bf, true)
		}
	}

	onClose := func() { resolve(errTransportClosedDuringHandshake) }
	onError := func(err error) { resolve(err) }
	transport.SetHandlers(firstMessageHandler, onClose, onError)

	if err := <-result; err != nil {
		return nil, err
	}
	return c, nil
}

// handleDaemonOpenMessage is installed as the daemon's onMessage handler
// once the channel is open.
func (c *Channel) handleDaemonOpenMessage(f Frame) {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if st == stateClosed {
		return
	}
	c.handleOpenFrame(f, true)
}

func buildInvalidHelloErr(raw []byte, observedType string, hadTypeField bool) error {
	hadKey := false
	if hadTypeField {
		var probe struct {
			Key *string `json:"key"`
		}
		if err := json.Unmarshal(raw, &probe); err == nil && probe.Key != nil && *probe.Key != "" {
			hadKey = true
		}
	}
	return &ErrInvalidHello{
		ObservedType: observedType,
		HadKeyField:  hadKey,
		Preview:      preview(raw),
	}
}
