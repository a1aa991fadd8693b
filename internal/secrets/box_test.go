package secrets

import (
	"errors"
	"strings"
	"testing"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := NewBox(testKey)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	sealed, err := box.Seal("PK1234567890")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if strings.Contains(sealed, "PK1234567890") {
		t.Error("sealed payload leaks plaintext")
	}

	got, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "PK1234567890" {
		t.Errorf("Open = %q, want PK1234567890", got)
	}
}

func TestSealIsRandomized(t *testing.T) {
	box, err := NewBox(testKey)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	a, _ := box.Seal("same input")
	b, _ := box.Seal("same input")
	if a == b {
		t.Error("two seals of the same plaintext should differ (fresh nonce)")
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	box1, _ := NewBox(testKey)
	box2, _ := NewBox(strings.Repeat("ab", 32))

	sealed, err := box1.Seal("secret")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := box2.Open(sealed); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("Open with wrong key = %v, want ErrInvalidCiphertext", err)
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	box, _ := NewBox(testKey)

	for _, payload := range []string{"", "not base64 !!!", "YWJj"} {
		if _, err := box.Open(payload); !errors.Is(err, ErrInvalidCiphertext) {
			t.Errorf("Open(%q) = %v, want ErrInvalidCiphertext", payload, err)
		}
	}
}

func TestNewBoxRejectsBadKeys(t *testing.T) {
	cases := []string{
		"",
		"deadbeef",          // too short
		"zz" + testKey[2:],  // not hex
		testKey + "00",      // too long
	}
	for _, key := range cases {
		if _, err := NewBox(key); err == nil {
			t.Errorf("NewBox(%q) succeeded, want error", key)
		}
	}
}
