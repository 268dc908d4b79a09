package auth

import (
	"strings"
	"testing"
)

func TestHash_Deterministic(t *testing.T) {
	h := NewHasher("test-pepper")

	salt, _, err := h.NewCredential("Secret1!")
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}

	a, err := h.Hash("Secret1!", salt)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash("Secret1!", salt)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if a != b {
		t.Error("same password and salt produced different digests")
	}
}

func TestHash_SaltSensitivity(t *testing.T) {
	h := NewHasher("test-pepper")

	saltA, err := newSalt()
	if err != nil {
		t.Fatalf("newSalt: %v", err)
	}
	saltB, err := newSalt()
	if err != nil {
		t.Fatalf("newSalt: %v", err)
	}

	a, err := h.Hash("Secret1!", saltA)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash("Secret1!", saltB)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if a == b {
		t.Error("different salts produced the same digest")
	}
}

func TestHash_PepperSensitivity(t *testing.T) {
	salt, err := newSalt()
	if err != nil {
		t.Fatalf("newSalt: %v", err)
	}

	a, err := NewHasher("pepper-one").Hash("Secret1!", salt)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := NewHasher("pepper-two").Hash("Secret1!", salt)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if a == b {
		t.Error("different peppers produced the same digest")
	}
}

func TestHash_RejectsBadSalt(t *testing.T) {
	h := NewHasher("test-pepper")

	if _, err := h.Hash("Secret1!", "not-base64!!"); err == nil {
		t.Error("expected error for undecodable salt")
	}
}

func TestNewSalt_NoCollisions(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		salt, err := newSalt()
		if err != nil {
			t.Fatalf("newSalt: %v", err)
		}
		if seen[salt] {
			t.Fatalf("salt collision after %d draws", i)
		}
		seen[salt] = true
	}
}

func TestNewCredential_FreshSaltEachTime(t *testing.T) {
	h := NewHasher("test-pepper")

	saltA, hashA, err := h.NewCredential("Secret1!")
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}
	saltB, hashB, err := h.NewCredential("Secret1!")
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}

	if saltA == saltB {
		t.Error("changing password reused the old salt")
	}
	if hashA == hashB {
		t.Error("fresh salts produced identical digests")
	}
}

func TestVerify(t *testing.T) {
	h := NewHasher("test-pepper")

	salt, hash, err := h.NewCredential("Secret1!")
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}

	if !h.Verify("Secret1!", salt, hash) {
		t.Error("correct password failed verification")
	}
	if h.Verify("wrong", salt, hash) {
		t.Error("wrong password passed verification")
	}
	if h.Verify("Secret1!", "not-base64!!", hash) {
		t.Error("undecodable salt passed verification")
	}
}

func TestHash_HexOutput(t *testing.T) {
	h := NewHasher("test-pepper")

	salt, hash, err := h.NewCredential("Secret1!")
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}

	// 64-byte key, hex-encoded.
	if len(hash) != 128 {
		t.Errorf("digest length %d, want 128", len(hash))
	}
	if strings.ToLower(hash) != hash {
		t.Error("digest not lowercase hex")
	}
	_ = salt
}
