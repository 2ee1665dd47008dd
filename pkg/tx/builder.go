package tx

import (
	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Builder constructs and signs a transaction in one pass, mirroring the
// teacher's fluent builder shape adapted to the account model.
type Builder struct {
	sender, receiver types.Address
	amount, fee      int64
	timestamp        int64
}

// NewBuilder starts building a transaction from sender to receiver.
func NewBuilder(sender, receiver types.Address) *Builder {
	return &Builder{sender: sender, receiver: receiver}
}

// WithAmount sets the amount to transfer.
func (b *Builder) WithAmount(amount int64) *Builder {
	b.amount = amount
	return b
}

// WithFee sets the fee offered to the miner.
func (b *Builder) WithFee(fee int64) *Builder {
	b.fee = fee
	return b
}

// WithTimestamp sets an explicit timestamp (Unix seconds).
func (b *Builder) WithTimestamp(ts int64) *Builder {
	b.timestamp = ts
	return b
}

// Build returns the constructed, unsigned transaction.
func (b *Builder) Build() *Transaction {
	return New(b.sender, b.receiver, b.amount, b.fee, b.timestamp)
}

// BuildSigned constructs the transaction and signs it with key.
func (b *Builder) BuildSigned(key *crypto.PrivateKey) (*Transaction, error) {
	t := b.Build()
	if err := t.Sign(key); err != nil {
		return nil, err
	}
	return t, nil
}
