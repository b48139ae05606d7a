package overridegate

import (
	"net/netip"
	"testing"
)

func testBlocklist() *Blocklist {
	return NewBlocklist(
		[]string{"203.0.113.9", "2001:db8::5"},
		[]string{"198.51.100.0/24", "2001:db8:bad::/48"},
		[]string{"blocked-email-hash"},
	)
}

func TestBlocklistContainsAddress(t *testing.T) {
	blocklist := testBlocklist()

	tests := []struct {
		name     string
		address  string
		expected bool
	}{
		{name: "exact v4 match", address: "203.0.113.9", expected: true},
		{name: "v4 not listed", address: "203.0.113.10", expected: false},
		{name: "inside v4 range", address: "198.51.100.77", expected: true},
		{name: "first address of range", address: "198.51.100.0", expected: true},
		{name: "outside v4 range", address: "198.51.101.1", expected: false},
		{name: "exact v6 match", address: "2001:db8::5", expected: true},
		{name: "inside v6 range", address: "2001:db8:bad:1::42", expected: true},
		{name: "outside v6 range", address: "2001:db8:600d::1", expected: false},
		{name: "mapped v4 form matches v4 entry", address: "::ffff:203.0.113.9", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := netip.ParseAddr(tt.address)
			if err != nil {
				t.Fatalf("failed to parse test address: %v", err)
			}
			if got := blocklist.ContainsAddress(addr); got != tt.expected {
				t.Errorf("ContainsAddress(%s) = %t, want %t", tt.address, got, tt.expected)
			}
		})
	}
}

func TestBlocklistSkipsUnparseableEntries(t *testing.T) {
	blocklist := NewBlocklist(
		[]string{"not-an-address", "203.0.113.9"},
		[]string{"not-a-range", "198.51.100.0/24"},
		nil,
	)

	addr := netip.MustParseAddr("203.0.113.9")
	if !blocklist.ContainsAddress(addr) {
		t.Errorf("valid entries should survive unparseable neighbors")
	}
	if len(blocklist.prefixes) != 1 {
		t.Errorf("expected 1 parsed range, got %d", len(blocklist.prefixes))
	}
}

func TestGateEvaluate(t *testing.T) {
	gate := NewGate(testBlocklist(), 3)

	cleanInput := func() Input {
		return Input{
			Address:                  "192.0.2.20",
			EmailHash:                "harmless-hash",
			HoneypotValue:            "",
			FingerprintPresent:       true,
			FingerprintPriorAccounts: 1,
		}
	}

	t.Run("clean attempt passes", func(t *testing.T) {
		if result := gate.Evaluate(cleanInput()); result.Blocked {
			t.Errorf("clean attempt should pass, got %+v", result)
		}
	})

	t.Run("blocklisted address", func(t *testing.T) {
		input := cleanInput()
		input.Address = "198.51.100.200"
		result := gate.Evaluate(input)
		if !result.Blocked || result.Reason != ReasonBlocklist {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("blocklisted email hash", func(t *testing.T) {
		input := cleanInput()
		input.EmailHash = "blocked-email-hash"
		result := gate.Evaluate(input)
		if !result.Blocked || result.Reason != ReasonBlocklist {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("filled honeypot", func(t *testing.T) {
		input := cleanInput()
		input.HoneypotValue = "I am definitely human"
		result := gate.Evaluate(input)
		if !result.Blocked || result.Reason != ReasonHoneypot {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("fingerprint at multi account threshold", func(t *testing.T) {
		input := cleanInput()
		input.FingerprintPriorAccounts = 3
		result := gate.Evaluate(input)
		if !result.Blocked || result.Reason != ReasonMultiAccount {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("prior accounts below threshold pass", func(t *testing.T) {
		input := cleanInput()
		input.FingerprintPriorAccounts = 2
		if result := gate.Evaluate(input); result.Blocked {
			t.Errorf("unexpected block %+v", result)
		}
	})

	t.Run("missing fingerprint is not multi account", func(t *testing.T) {
		input := cleanInput()
		input.FingerprintPresent = false
		input.FingerprintPriorAccounts = 99
		if result := gate.Evaluate(input); result.Blocked {
			t.Errorf("unexpected block %+v", result)
		}
	})

	t.Run("address check runs before honeypot", func(t *testing.T) {
		input := cleanInput()
		input.Address = "203.0.113.9"
		input.HoneypotValue = "filled"
		result := gate.Evaluate(input)
		if result.Reason != ReasonBlocklist {
			t.Errorf("blocklist should win over honeypot, got %s", result.Reason)
		}
	})

	t.Run("unparseable address skips the address check", func(t *testing.T) {
		input := cleanInput()
		input.Address = "garbage"
		if result := gate.Evaluate(input); result.Blocked {
			t.Errorf("unexpected block %+v", result)
		}
	})
}

func TestSetBlocklist(t *testing.T) {
	gate := NewGate(NewBlocklist(nil, nil, nil), 3)

	input := Input{Address: "203.0.113.9"}
	if result := gate.Evaluate(input); result.Blocked {
		t.Fatalf("empty blocklist should not block")
	}

	gate.SetBlocklist(testBlocklist())
	if result := gate.Evaluate(input); !result.Blocked {
		t.Errorf("swapped blocklist should take effect")
	}
}
