// Package tx defines transaction types and validation.
package tx

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Transaction moves value from Sender to Receiver in the account-balance
// ledger. Fee is paid to whichever miner includes the transaction.
type Transaction struct {
	Sender    types.Address `json:"sender"`
	Receiver  types.Address `json:"receiver"`
	Amount    int64         `json:"amount"`
	Fee       int64         `json:"fee"`
	Timestamp int64         `json:"timestamp"`
	Signature []byte        `json:"signature,omitempty"`
	ID        types.Hash    `json:"tx_id"`
}

// txJSON mirrors Transaction but hex-encodes the signature explicitly,
// matching the teacher's hand-written byte-field JSON codec idiom.
type txJSON struct {
	Sender    types.Address `json:"sender"`
	Receiver  types.Address `json:"receiver"`
	Amount    int64         `json:"amount"`
	Fee       int64         `json:"fee"`
	Timestamp int64         `json:"timestamp"`
	Signature *string       `json:"signature,omitempty"`
	ID        types.Hash    `json:"tx_id"`
}

// MarshalJSON encodes the transaction with a hex-encoded signature.
func (tx Transaction) MarshalJSON() ([]byte, error) {
	j := txJSON{
		Sender:    tx.Sender,
		Receiver:  tx.Receiver,
		Amount:    tx.Amount,
		Fee:       tx.Fee,
		Timestamp: tx.Timestamp,
		ID:        tx.ID,
	}
	if len(tx.Signature) > 0 {
		s := hex.EncodeToString(tx.Signature)
		j.Signature = &s
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes a transaction with a hex-encoded signature.
func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var j txJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	tx.Sender = j.Sender
	tx.Receiver = j.Receiver
	tx.Amount = j.Amount
	tx.Fee = j.Fee
	tx.Timestamp = j.Timestamp
	tx.ID = j.ID
	if j.Signature != nil {
		b, err := hex.DecodeString(*j.Signature)
		if err != nil {
			return err
		}
		tx.Signature = b
	}
	return nil
}

// New builds a transaction and computes its ID. It does not sign it.
func New(sender, receiver types.Address, amount, fee, timestamp int64) *Transaction {
	t := &Transaction{
		Sender:    sender,
		Receiver:  receiver,
		Amount:    amount,
		Fee:       fee,
		Timestamp: timestamp,
	}
	t.ID = t.computeID()
	return t
}

// NewCoinbase builds the reward-paying transaction that must be the first
// transaction of every mined block.
func NewCoinbase(miner types.Address, reward, timestamp int64) *Transaction {
	return New(types.SenderCoinbase, miner, reward, 0, timestamp)
}

// computeID hashes the canonical signing bytes of the transaction.
func (tx *Transaction) computeID() types.Hash {
	return crypto.Hash(tx.SigningBytes())
}

// SigningBytes returns the canonical byte representation used for both
// tx-ID derivation and signing. It excludes the signature itself.
// Format: sender_len(4) | sender | receiver_len(4) | receiver |
// amount(8) | fee(8) | timestamp(8)
func (tx *Transaction) SigningBytes() []byte {
	var buf []byte
	buf = appendLenPrefixed(buf, []byte(tx.Sender))
	buf = appendLenPrefixed(buf, []byte(tx.Receiver))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(tx.Amount))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(tx.Fee))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(tx.Timestamp))
	return buf
}

func appendLenPrefixed(buf, data []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

// IsCoinbase reports whether tx is a block-reward transaction.
func (tx *Transaction) IsCoinbase() bool {
	return tx.Sender == types.SenderCoinbase
}

// IsGenesis reports whether tx is the genesis supply-allocation transaction.
func (tx *Transaction) IsGenesis() bool {
	return tx.Sender == types.SenderGenesis
}

// Sign signs the transaction's ID with the given private key.
func (tx *Transaction) Sign(key *crypto.PrivateKey) error {
	sig, err := key.Sign(tx.ID[:])
	if err != nil {
		return fmt.Errorf("sign tx %s: %w", tx.ID, err)
	}
	tx.Signature = sig
	return nil
}
