package pairing

import (
	"crypto/ecdh"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/relaybridge/relaybridge/e2eecrypto"
	"github.com/relaybridge/relaybridge/internal/securefile"
)

// ErrCorruptKeyFile signals a keypair file that exists but cannot be parsed
// into a valid X25519 keypair.
var ErrCorruptKeyFile = errors.New("pairing: corrupt keypair file")

type keyFileContents struct {
	SecretB64 string `json:"secretB64"`
	PublicB64 string `json:"publicB64"`
}

// SaveKeypairFile persists kp to path with owner-only permissions, writing
// atomically so a crash mid-write never leaves a truncated file (grounded
// on internal/securefile's atomic-rename pattern, used here for a daemon's
// long-lived identity key instead of a TLS credential).
func SaveKeypairFile(path string, kp e2eecrypto.KeyPair) error {
	if err := securefile.MkdirAllOwnerOnly(filepath.Dir(path)); err != nil {
		return err
	}
	contents := keyFileContents{
		SecretB64: e2eecrypto.B64Encode(kp.Secret.Bytes()),
		PublicB64: e2eecrypto.B64Encode(kp.Public[:]),
	}
	raw, err := json.Marshal(contents)
	if err != nil {
		return err
	}
	return securefile.WriteFileAtomic(path, raw, 0o600)
}

// LoadKeypairFile reads and parses a keypair previously written by
// SaveKeypairFile. It returns os.ErrNotExist unchanged so callers can
// distinguish "no identity yet" from a corrupt file.
func LoadKeypairFile(path string) (e2eecrypto.KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return e2eecrypto.KeyPair{}, err
	}
	var contents keyFileContents
	if err := json.Unmarshal(raw, &contents); err != nil {
		return e2eecrypto.KeyPair{}, ErrCorruptKeyFile
	}
	secretBytes, err := e2eecrypto.B64Decode(contents.SecretB64)
	if err != nil {
		return e2eecrypto.KeyPair{}, ErrCorruptKeyFile
	}
	secret, err := ecdh.X25519().NewPrivateKey(secretBytes)
	if err != nil {
		return e2eecrypto.KeyPair{}, ErrCorruptKeyFile
	}
	publicBytes, err := e2eecrypto.B64Decode(contents.PublicB64)
	if err != nil || len(publicBytes) != 32 {
		return e2eecrypto.KeyPair{}, ErrCorruptKeyFile
	}
	var pub [32]byte
	copy(pub[:], publicBytes)
	return e2eecrypto.KeyPair{Secret: secret, Public: pub}, nil
}
