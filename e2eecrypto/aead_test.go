package e2eecrypto

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	var key [32]byte
	key[0] = 7
	plaintexts := [][]byte{
		nil,
		[]byte(""),
		[]byte("ping"),
		bytes.Repeat([]byte{0xAB}, 4096),
	}
	for _, p := range plaintexts {
		ct, err := Encrypt(key, p)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		pt, err := Decrypt(key, ct)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if !bytes.Equal(pt, p) && !(len(pt) == 0 && len(p) == 0) {
			t.Fatalf("round trip mismatch: got %q want %q", pt, p)
		}
	}
}

func TestDecryptTamperDetected(t *testing.T) {
	var key [32]byte
	ct, err := Encrypt(key, []byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	tampered := append([]byte{}, ct...)
	tampered[len(tampered)-1] ^= 0xFF
	if _, err := Decrypt(key, tampered); err == nil {
		t.Fatalf("expected decrypt error on tamper")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	var key, wrongKey [32]byte
	wrongKey[0] = 1
	ct, err := Encrypt(key, []byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := Decrypt(wrongKey, ct); err == nil {
		t.Fatalf("expected decrypt error with wrong key")
	}
}

func TestDecryptMalformedFrame(t *testing.T) {
	var key [32]byte
	if _, err := Decrypt(key, []byte("short")); err == nil {
		t.Fatalf("expected error on malformed frame")
	}
}

func TestEachEncryptUsesFreshNonce(t *testing.T) {
	var key [32]byte
	a, err := Encrypt(key, []byte("same"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	b, err := Encrypt(key, []byte("same"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("expected distinct ciphertexts for distinct nonces")
	}
}

func TestB64RoundTrip(t *testing.T) {
	b := []byte{0, 1, 2, 250, 251, 252}
	s := B64Encode(b)
	got, err := B64Decode(s)
	if err != nil {
		t.Fatalf("B64Decode failed: %v", err)
	}
	if !bytes.Equal(got, b) {
		t.Fatalf("b64 round trip mismatch")
	}
}
