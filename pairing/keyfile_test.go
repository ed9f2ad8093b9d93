package pairing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/relaybridge/relaybridge/e2eecrypto"
)

func TestSaveAndLoadKeypairFileRoundTrip(t *testing.T) {
	kp, err := e2eecrypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	path := filepath.Join(t.TempDir(), "nested", "daemon.key")

	if err := SaveKeypairFile(path, kp); err != nil {
		t.Fatalf("SaveKeypairFile: %v", err)
	}
	loaded, err := LoadKeypairFile(path)
	if err != nil {
		t.Fatalf("LoadKeypairFile: %v", err)
	}
	if loaded.Public != kp.Public {
		t.Fatalf("public key mismatch: got %x want %x", loaded.Public, kp.Public)
	}
	if !loaded.Secret.Equal(kp.Secret) {
		t.Fatal("secret key mismatch after round trip")
	}
}

func TestLoadKeypairFileMissing(t *testing.T) {
	_, err := LoadKeypairFile(filepath.Join(t.TempDir(), "missing.key"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadKeypairFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.key")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := LoadKeypairFile(path); err != ErrCorruptKeyFile {
		t.Fatalf("expected ErrCorruptKeyFile, got %v", err)
	}
}
