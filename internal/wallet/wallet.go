// Package wallet implements an encrypted, file-backed wallet: a
// master key, a set of independently-generated labeled sub-addresses,
// a contact list, and a cosmetic backup phrase. There is no HD
// derivation anywhere in this model — every key the wallet holds is
// its own 32 random bytes, generated once and never re-derived.
package wallet

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// WalletVersion is the current wallet file format version.
const WalletVersion = 1

// Wallet is a wallet record held open in memory. Private key fields
// are plaintext here regardless of whether the wallet is encrypted on
// disk — encryption only applies to the persisted file.
type Wallet struct {
	Name    string
	Created time.Time
	Version int

	MasterAddress    types.Address
	MasterPrivateKey []byte // 32 raw bytes
	MasterPublicKey  types.Hash

	Balance int64 // cached display value, refreshed via RefreshBalance

	Addresses []AddressRecord
	Contacts  []Contact

	BackupSeed string // empty once the wallet has been encrypted and saved

	Encrypted bool
	salt      []byte // set only when Encrypted; the single PBKDF2 salt for all fields
}

// newKeypair generates an independent 32-byte private key and its
// derived address. It never consults any existing wallet key.
func newKeypair() (types.Address, []byte, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return "", nil, fmt.Errorf("generate key: %w", err)
	}
	addr := crypto.DeriveAddress(priv)
	raw := make([]byte, 32)
	copy(raw, priv[:])
	return addr, raw, nil
}

// newWallet builds a fresh, unencrypted wallet record with a new
// master key and backup phrase.
func newWallet(name string) (*Wallet, error) {
	addr, priv, err := newKeypair()
	if err != nil {
		return nil, err
	}
	var privArr [32]byte
	copy(privArr[:], priv)

	seed, err := GenerateBackupSeed()
	if err != nil {
		return nil, err
	}

	return &Wallet{
		Name:             name,
		Created:          time.Now().UTC(),
		Version:          WalletVersion,
		MasterAddress:    addr,
		MasterPrivateKey: priv,
		MasterPublicKey:  crypto.DisplayPublicKey(privArr),
		BackupSeed:       seed,
	}, nil
}

// RefreshBalance updates the wallet's cached, informational balance
// for its master address from source. It does not touch per-address
// balances; those are looked up live by callers when needed.
func (w *Wallet) RefreshBalance(source BalanceSource) {
	w.Balance = source(w.MasterAddress)
}

// NewAddress generates a fresh, independently-random sub-address and
// appends it to the wallet under label.
func (w *Wallet) NewAddress(label string) (types.Address, error) {
	addr, priv, err := newKeypair()
	if err != nil {
		return "", err
	}
	w.Addresses = append(w.Addresses, AddressRecord{
		Address:    addr,
		PrivateKey: priv,
		Label:      label,
		Created:    time.Now().UTC(),
	})
	return addr, nil
}

// AddContact records a sending address for later reuse. Re-adding an
// existing address updates its label.
func (w *Wallet) AddContact(addr types.Address, label string) {
	for i := range w.Contacts {
		if w.Contacts[i].Address == addr {
			w.Contacts[i].Label = label
			return
		}
	}
	w.Contacts = append(w.Contacts, Contact{
		Address: addr,
		Label:   label,
		Added:   time.Now().UTC(),
	})
}

// ListContacts returns the wallet's saved sending addresses.
func (w *Wallet) ListContacts() []Contact {
	out := make([]Contact, len(w.Contacts))
	copy(out, w.Contacts)
	return out
}

// Close zeroes every private key the wallet holds in memory. The
// caller must discard its reference to w afterward; a closed Wallet
// is not safe to use for signing.
func (w *Wallet) Close() {
	zero(w.MasterPrivateKey)
	for i := range w.Addresses {
		zero(w.Addresses[i].PrivateKey)
	}
}
