package e2eecrypto

import "testing"

func TestDeriveSharedIsSymmetric(t *testing.T) {
	a, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	b, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	k1, err := DeriveShared(a.Secret, b.Public[:])
	if err != nil {
		t.Fatalf("DeriveShared (a->b) failed: %v", err)
	}
	k2, err := DeriveShared(b.Secret, a.Public[:])
	if err != nil {
		t.Fatalf("DeriveShared (b->a) failed: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("shared secrets differ: %x vs %x", k1, k2)
	}
}

func TestParsePublicKeyRejectsWrongLength(t *testing.T) {
	if _, err := ParsePublicKey(make([]byte, 31)); err == nil {
		t.Fatalf("expected error for short public key")
	}
	if _, err := ParsePublicKey(make([]byte, 33)); err == nil {
		t.Fatalf("expected error for long public key")
	}
}

func TestDeriveSharedDifferentKeysDifferentSecret(t *testing.T) {
	a, _ := GenerateKeyPair()
	b, _ := GenerateKeyPair()
	c, _ := GenerateKeyPair()

	k1, err := DeriveShared(a.Secret, b.Public[:])
	if err != nil {
		t.Fatalf("DeriveShared failed: %v", err)
	}
	k2, err := DeriveShared(a.Secret, c.Public[:])
	if err != nil {
		t.Fatalf("DeriveShared failed: %v", err)
	}
	if k1 == k2 {
		t.Fatalf("expected distinct shared secrets for distinct peers")
	}
}
