// Package e2eecrypto implements the cryptographic primitives underneath the
// E2EE channel: X25519 keypairs, raw ECDH shared-secret derivation (no KDF
// is interposed, so both sides must reproduce the same 32 bytes), AEAD
// framing, and the base64 encoding used on text-only transports.
package e2eecrypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"errors"
)

// ErrInvalidPublicKey signals a public key that does not decode to 32 bytes
// on the X25519 curve.
var ErrInvalidPublicKey = errors.New("e2eecrypto: invalid public key")

// KeyPair holds an X25519 secret/public pair. Public is 32 bytes; Secret
// must never leave the side that generated it.
type KeyPair struct {
	Secret *ecdh.PrivateKey
	Public [32]byte
}

// GenerateKeyPair creates a fresh X25519 keypair.
func GenerateKeyPair() (KeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	var pub [32]byte
	copy(pub[:], priv.PublicKey().Bytes())
	return KeyPair{Secret: priv, Public: pub}, nil
}

// ParsePublicKey validates and wraps a 32-byte remote X25519 public key.
func ParsePublicKey(b []byte) (*ecdh.PublicKey, error) {
	if len(b) != 32 {
		return nil, ErrInvalidPublicKey
	}
	pub, err := ecdh.X25519().NewPublicKey(b)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	return pub, nil
}

// DeriveShared computes the X25519 scalar multiplication and returns the
// raw 32-byte result directly as the symmetric AEAD key. There is no KDF
// step: both peers must derive byte-identical output for interop.
func DeriveShared(local *ecdh.PrivateKey, remotePublic []byte) ([32]byte, error) {
	var out [32]byte
	remote, err := ParsePublicKey(remotePublic)
	if err != nil {
		return out, err
	}
	shared, err := local.ECDH(remote)
	if err != nil {
		return out, err
	}
	copy(out[:], shared)
	return out, nil
}
