// Package pairing builds and parses the one-time pairing URL a daemon hands
// a client out of band (spec §6 "Pairing URL").
package pairing

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/relaybridge/relaybridge/e2eecrypto"
	"github.com/relaybridge/relaybridge/internal/base64url"
)

// ErrInvalidOffer signals a pairing fragment that doesn't decode to a valid
// offer: malformed base64url, malformed JSON, a missing serverId or
// endpoint, or a daemon key of the wrong length.
var ErrInvalidOffer = errors.New("pairing: invalid offer")

// Offer is the JSON object encoded into the pairing URL's fragment. It
// never reaches the relay server: fragments are not sent over HTTP.
type Offer struct {
	Version            string `json:"v"`
	ServerID           string `json:"serverId"`
	DaemonPublicKeyB64 string `json:"daemonPublicKeyB64"`
	Endpoint           string `json:"endpoint"`
}

// BuildPairingURL composes `<appBase>#<offer>` where offer is the
// base64url(no padding) encoding of the JSON-marshaled Offer (spec §6).
func BuildPairingURL(appBase string, offer Offer) (string, error) {
	raw, err := json.Marshal(offer)
	if err != nil {
		return "", err
	}
	return appBase + "#" + base64url.Encode(raw), nil
}

// NewOffer builds an Offer for daemonKey advertised at endpoint.
func NewOffer(serverID string, daemonKey e2eecrypto.KeyPair, endpoint string) Offer {
	return Offer{
		Version:            "2",
		ServerID:           serverID,
		DaemonPublicKeyB64: e2eecrypto.B64Encode(daemonKey.Public[:]),
		Endpoint:           endpoint,
	}
}

// ParsePairingURL extracts and decodes the Offer from a pairing URL's
// fragment. It validates that the embedded daemon public key decodes to
// exactly 32 bytes but does not parse it onto the X25519 curve — that is
// left to the caller at handshake time.
func ParsePairingURL(pairingURL string) (Offer, error) {
	idx := strings.IndexByte(pairingURL, '#')
	if idx < 0 || idx == len(pairingURL)-1 {
		return Offer{}, ErrInvalidOffer
	}
	fragment := pairingURL[idx+1:]

	raw, err := base64url.Decode(fragment)
	if err != nil {
		return Offer{}, ErrInvalidOffer
	}
	var offer Offer
	if err := json.Unmarshal(raw, &offer); err != nil {
		return Offer{}, ErrInvalidOffer
	}
	if offer.ServerID == "" || offer.Endpoint == "" {
		return Offer{}, ErrInvalidOffer
	}
	keyBytes, err := e2eecrypto.B64Decode(offer.DaemonPublicKeyB64)
	if err != nil || len(keyBytes) != 32 {
		return Offer{}, ErrInvalidOffer
	}
	return offer, nil
}
