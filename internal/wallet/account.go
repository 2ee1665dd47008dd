package wallet

import (
	"time"

	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// AddressRecord is one receiving address tracked by a wallet: an
// independently-generated key (never derived from the master key or
// from any other address), a user-assigned label, and its creation
// time. PrivateKey holds the raw 32-byte secret while the wallet is
// open in memory, and the corresponding ciphertext while the wallet
// sits encrypted on disk.
type AddressRecord struct {
	Address    types.Address
	PrivateKey []byte
	Label      string
	Created    time.Time
}

// Contact is an address the wallet owner has saved for sending funds
// to, with no associated private key.
type Contact struct {
	Address types.Address
	Label   string
	Added   time.Time
}
