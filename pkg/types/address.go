package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AddressPrefix is the literal prefix every derived address carries.
const AddressPrefix = "GSC1"

// AddressHexLen is the number of hex characters following AddressPrefix.
const AddressHexLen = 32

// Sentinel sender/receiver strings that never resolve to a real wallet.
const (
	SenderCoinbase    = "COINBASE"
	SenderGenesis     = "Genesis"
	FoundationReserve = "GSC_FOUNDATION_RESERVE"
)

// Address is a GSC1-prefixed address string derived from a private key.
// Unlike a fixed-width byte array, the derivation (see pkg/crypto.DeriveAddress)
// is lossy: it is not possible to recover the original key hash from the
// address, only to validate its shape.
type Address string

// IsZero reports whether the address is the empty string.
func (a Address) IsZero() bool {
	return a == ""
}

// String returns the address as a string.
func (a Address) String() string {
	return string(a)
}

// IsValid reports whether a is either a sentinel sender/receiver or a
// well-formed GSC1 address (prefix plus AddressHexLen lowercase hex chars).
func (a Address) IsValid() bool {
	switch a {
	case SenderCoinbase, SenderGenesis, FoundationReserve:
		return true
	}
	s := string(a)
	if !strings.HasPrefix(s, AddressPrefix) {
		return false
	}
	hexPart := s[len(AddressPrefix):]
	if len(hexPart) != AddressHexLen {
		return false
	}
	for _, c := range hexPart {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the address as a JSON string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(a))
}

// UnmarshalJSON decodes a JSON string into an address.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = Address(s)
	return nil
}

// ParseAddress validates and wraps a user-supplied address string.
func ParseAddress(s string) (Address, error) {
	a := Address(s)
	if !a.IsValid() {
		return "", fmt.Errorf("invalid address: %q", s)
	}
	return a, nil
}
