package util

import (
	"bytes"
	"testing"
)

func TestAES(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, AESKeySize)
	plainText := []byte("pending_user=admin")
	aad := []byte("session:abc")

	t.Run("SealOpen", func(t *testing.T) {
		cipherText, err := EncryptAESWithAAD(plainText, key, aad)
		if err != nil {
			t.Fatalf("EncryptAESWithAAD failed: %v", err)
		}
		decrypted, err := DecryptAESWithAAD(cipherText, key, aad)
		if err != nil {
			t.Fatalf("DecryptAESWithAAD failed: %v", err)
		}
		if !bytes.Equal(plainText, decrypted) {
			t.Errorf("expected %s, got %s", plainText, decrypted)
		}
	})

	t.Run("TamperAAD", func(t *testing.T) {
		cipherText, _ := EncryptAESWithAAD(plainText, key, aad)
		if _, err := DecryptAESWithAAD(cipherText, key, []byte("session:other")); err == nil {
			t.Error("expected error with wrong AAD, got nil")
		}
	})

	t.Run("TamperCipherText", func(t *testing.T) {
		cipherText, _ := EncryptAESWithAAD(plainText, key, aad)
		cipherText[len(cipherText)-1] ^= 0xFF
		if _, err := DecryptAESWithAAD(cipherText, key, aad); err == nil {
			t.Error("expected error with tampered ciphertext, got nil")
		}
	})

	t.Run("ShortCipherText", func(t *testing.T) {
		if _, err := DecryptAESWithAAD([]byte{1, 2, 3}, key, aad); err == nil {
			t.Error("expected error for truncated input, got nil")
		}
	})

	t.Run("RejectBadKeySize", func(t *testing.T) {
		if _, err := EncryptAESWithAAD(plainText, []byte("too short"), aad); err == nil {
			t.Error("expected error with wrong key size, got nil")
		}
	})
}

func TestDeriveKey(t *testing.T) {
	secret := []byte("process-secret")

	a1, err := DeriveKey(secret, "session")
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	a2, _ := DeriveKey(secret, "session")
	b, _ := DeriveKey(secret, "guestbook")

	if len(a1) != HKDFKeyLength {
		t.Errorf("expected %d bytes, got %d", HKDFKeyLength, len(a1))
	}
	if !bytes.Equal(a1, a2) {
		t.Error("same secret and purpose must derive the same key")
	}
	if bytes.Equal(a1, b) {
		t.Error("different purposes must derive different keys")
	}
	if _, err := DeriveKey(nil, "session"); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestWipeBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	WipeBytes(b)
	if !bytes.Equal(b, []byte{0, 0, 0}) {
		t.Errorf("expected zeroed slice, got %v", b)
	}
}

func TestFoldIdentity(t *testing.T) {
	cases := map[string]string{
		"Admin":      "admin",
		"ADMIN":      "admin",
		"_":          "_",
		"ａｄｍｉｎ": "admin",
	}
	for in, want := range cases {
		if got := FoldIdentity(in); got != want {
			t.Errorf("FoldIdentity(%q) = %q, want %q", in, got, want)
		}
	}
}
