package security

import (
	"testing"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" || hash == "secret123" {
		t.Fatal("Hash returned empty or plaintext")
	}
	if err := h.Compare(hash, "secret123"); err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if err := h.Compare(hash, "wrong"); err == nil {
		t.Fatal("Compare with wrong password should fail")
	}
}

func TestNewHasher_Cost(t *testing.T) {
	testCases := []struct {
		in, want int
	}{
		{0, 10},
		{2, 4},
		{12, 12},
		{40, 31},
	}
	for _, tc := range testCases {
		if got := NewHasher(tc.in).Cost; got != tc.want {
			t.Errorf("NewHasher(%d).Cost = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err != ErrWeakPassword {
		t.Errorf("ValidatePassword(short) = %v, want ErrWeakPassword", err)
	}
	if err := ValidatePassword("long enough"); err != nil {
		t.Errorf("ValidatePassword(long enough) = %v", err)
	}
}

func TestHashToken(t *testing.T) {
	tok, err := RandomToken(32)
	if err != nil {
		t.Fatalf("RandomToken: %v", err)
	}
	other, _ := RandomToken(32)
	if tok == other {
		t.Fatal("RandomToken returned the same value twice")
	}
	h := HashToken(tok)
	if len(h) != 64 {
		t.Errorf("HashToken length = %d, want 64", len(h))
	}
	if !TokenHashEqual(tok, h) {
		t.Error("TokenHashEqual should match its own hash")
	}
	if TokenHashEqual(other, h) {
		t.Error("TokenHashEqual should not match a different token")
	}
}
