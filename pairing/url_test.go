package pairing

import (
	"strings"
	"testing"

	"github.com/relaybridge/relaybridge/e2eecrypto"
)

func TestBuildAndParsePairingURLRoundTrip(t *testing.T) {
	kp, err := e2eecrypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	offer := NewOffer("srv_123", kp, "relay.example.com:443")

	url, err := BuildPairingURL("https://app.example.com/pair", offer)
	if err != nil {
		t.Fatalf("BuildPairingURL: %v", err)
	}
	if !strings.HasPrefix(url, "https://app.example.com/pair#") {
		t.Fatalf("unexpected url shape: %s", url)
	}

	got, err := ParsePairingURL(url)
	if err != nil {
		t.Fatalf("ParsePairingURL: %v", err)
	}
	if got != offer {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, offer)
	}
}

func TestParsePairingURLRejectsMissingFragment(t *testing.T) {
	if _, err := ParsePairingURL("https://app.example.com/pair"); err != ErrInvalidOffer {
		t.Fatalf("expected ErrInvalidOffer, got %v", err)
	}
}

func TestParsePairingURLRejectsBadKeyLength(t *testing.T) {
	offer := Offer{Version: "2", ServerID: "s", DaemonPublicKeyB64: "not-32-bytes", Endpoint: "e:1"}
	url, err := BuildPairingURL("https://app.example.com", offer)
	if err != nil {
		t.Fatalf("BuildPairingURL: %v", err)
	}
	if _, err := ParsePairingURL(url); err != ErrInvalidOffer {
		t.Fatalf("expected ErrInvalidOffer, got %v", err)
	}
}
