package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAddress_IsZero(t *testing.T) {
	var zero Address
	if !zero.IsZero() {
		t.Error("zero-value Address should be zero")
	}

	nonZero := Address("GSC1" + strings.Repeat("a", AddressHexLen))
	if nonZero.IsZero() {
		t.Error("non-zero Address should not be zero")
	}
}

func TestAddress_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		addr  Address
		valid bool
	}{
		{"well formed", Address(AddressPrefix + strings.Repeat("a", AddressHexLen)), true},
		{"sentinel coinbase", SenderCoinbase, true},
		{"sentinel genesis", SenderGenesis, true},
		{"sentinel foundation", FoundationReserve, true},
		{"empty", "", false},
		{"missing prefix", Address(strings.Repeat("a", AddressHexLen)), false},
		{"too short", Address(AddressPrefix + "abcd"), false},
		{"too long", Address(AddressPrefix + strings.Repeat("a", AddressHexLen+2)), false},
		{"uppercase hex", Address(AddressPrefix + strings.Repeat("A", AddressHexLen)), false},
		{"non-hex chars", Address(AddressPrefix + strings.Repeat("z", AddressHexLen)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.addr.IsValid(); got != tt.valid {
				t.Errorf("Address(%q).IsValid() = %v, want %v", tt.addr, got, tt.valid)
			}
		})
	}
}

func TestParseAddress(t *testing.T) {
	valid := AddressPrefix + strings.Repeat("b", AddressHexLen)
	a, err := ParseAddress(valid)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", valid, err)
	}
	if a.String() != valid {
		t.Errorf("ParseAddress roundtrip: got %s, want %s", a, valid)
	}

	if _, err := ParseAddress("not-an-address"); err == nil {
		t.Error("ParseAddress should reject malformed address")
	}
}

func TestAddress_JSON_RoundTrip(t *testing.T) {
	original := Address(AddressPrefix + strings.Repeat("c", AddressHexLen))

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), AddressPrefix) {
		t.Errorf("JSON should contain address prefix, got %s", string(data))
	}

	var decoded Address
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if original != decoded {
		t.Errorf("roundtrip mismatch: original=%s, decoded=%s", original, decoded)
	}
}
