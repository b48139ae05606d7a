package privacy

import (
	"strings"
	"testing"
)

func TestHasherDigests(t *testing.T) {
	h := NewHasher("test-pepper")

	t.Run("same input produces same digest", func(t *testing.T) {
		a := h.HashAddress("203.0.113.9")
		b := h.HashAddress("203.0.113.9")
		if a != b {
			t.Errorf("digests differ for identical input: %s vs %s", a, b)
		}
	})

	t.Run("email digest ignores case and surrounding whitespace", func(t *testing.T) {
		a := h.HashEmail("User@Example.com ")
		b := h.HashEmail("user@example.com")
		if a != b {
			t.Errorf("normalized spellings should map to the same digest")
		}
	})

	t.Run("different pepper produces different digest", func(t *testing.T) {
		other := NewHasher("other-pepper")
		if h.HashEmail("user@example.com") == other.HashEmail("user@example.com") {
			t.Errorf("digests should depend on the pepper")
		}
	})

	t.Run("digest is hex encoded sha256 length", func(t *testing.T) {
		d := h.HashFingerprint("fp-abc")
		if len(d) != 64 {
			t.Errorf("unexpected digest length %d", len(d))
		}
	})

	t.Run("digest never contains the raw value", func(t *testing.T) {
		d := h.HashEmail("user@example.com")
		if strings.Contains(d, "user") || strings.Contains(d, "example") {
			t.Errorf("digest leaks raw input: %s", d)
		}
	})
}

func TestNewHasherPanicsWithoutPepper(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic for empty pepper")
		}
	}()
	NewHasher("")
}

func TestShortHash(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "long digest is truncated",
			input:    "abcdef0123456789abcdef0123456789",
			expected: "abcdef012345",
		},
		{
			name:     "short value stays unchanged",
			input:    "abc",
			expected: "abc",
		},
		{
			name:     "empty value stays empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShortHash(tt.input); got != tt.expected {
				t.Errorf("ShortHash(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestEmailDomain(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected string
	}{
		{name: "plain address", email: "user@example.com", expected: "example.com"},
		{name: "uppercase is lowered", email: "User@MAIL.Example.COM", expected: "mail.example.com"},
		{name: "no at sign", email: "not-an-email", expected: ""},
		{name: "trailing at sign", email: "user@", expected: ""},
		{name: "multiple at signs use the last", email: `"a@b"@example.com`, expected: "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EmailDomain(tt.email); got != tt.expected {
				t.Errorf("EmailDomain(%q) = %q, want %q", tt.email, got, tt.expected)
			}
		})
	}
}

func TestBlurEmailAddress(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected string
	}{
		{name: "regular address", email: "participant@example.com", expected: "p****@example.com"},
		{name: "single letter local part", email: "a@example.com", expected: "a****@example.com"},
		{name: "missing local part", email: "@example.com", expected: "****@**"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BlurEmailAddress(tt.email); got != tt.expected {
				t.Errorf("BlurEmailAddress(%q) = %q, want %q", tt.email, got, tt.expected)
			}
		})
	}
}
