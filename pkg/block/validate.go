package block

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Validation errors.
var (
	ErrNilHeader        = errors.New("block has nil header")
	ErrNoTransactions   = errors.New("block has no transactions")
	ErrBadMerkleRoot    = errors.New("merkle root mismatch")
	ErrBadVersion       = errors.New("unsupported block version")
	ErrZeroTimestamp    = errors.New("block timestamp is zero")
	ErrBadTxOrder       = errors.New("transactions not in canonical order")
	ErrNoCoinbase       = errors.New("first transaction must be coinbase")
	ErrTooManyTxs       = errors.New("too many transactions in block")
	ErrBlockTooLarge    = errors.New("block too large")
	ErrDuplicateTx      = errors.New("duplicate transaction id in block")
	ErrMultipleCoinbase = errors.New("multiple coinbase transactions in block")
	ErrProofOfWork      = errors.New("block hash does not meet required difficulty")
)

// Block version constants.
const (
	CurrentVersion = 1 // The current block version produced by this software.
	MaxVersion     = 1 // Bump when a fork introduces a new block version.
)

// Validate checks block structure and internal consistency. This does
// NOT verify consensus rules that require chain context (balances,
// previous-hash linkage, reward amount) — see the chain package for that.
func (b *Block) Validate() error {
	if b.Header == nil {
		return ErrNilHeader
	}

	if b.Header.Version < 1 || b.Header.Version > MaxVersion {
		return fmt.Errorf("%w: got %d, want 1..%d", ErrBadVersion, b.Header.Version, MaxVersion)
	}

	if b.Header.Timestamp == 0 {
		return ErrZeroTimestamp
	}

	if len(b.Transactions) == 0 {
		return ErrNoTransactions
	}

	if len(b.Transactions)-1 > config.MaxBlockTxs {
		return fmt.Errorf("%w: %d txs, max %d", ErrTooManyTxs, len(b.Transactions)-1, config.MaxBlockTxs)
	}

	blockSize := len(b.Header.SigningBytes())
	for _, t := range b.Transactions {
		blockSize += len(t.SigningBytes())
	}
	if blockSize > config.MaxBlockSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrBlockTooLarge, blockSize, config.MaxBlockSize)
	}

	// The genesis block carries a single genesis transaction instead of a
	// coinbase; every other block must open with exactly one coinbase.
	if !b.Transactions[0].IsCoinbase() && !b.Transactions[0].IsGenesis() {
		return ErrNoCoinbase
	}
	for i, t := range b.Transactions[1:] {
		if t.IsCoinbase() || t.IsGenesis() {
			return fmt.Errorf("tx %d: %w", i+1, ErrMultipleCoinbase)
		}
	}

	txHashes := make([]types.Hash, len(b.Transactions))
	seen := make(map[types.Hash]int, len(b.Transactions))
	for i, t := range b.Transactions {
		txHashes[i] = t.ID
		if prev, ok := seen[t.ID]; ok {
			return fmt.Errorf("tx %d: %w: also at index %d", i, ErrDuplicateTx, prev)
		}
		seen[t.ID] = i
	}

	expectedRoot := ComputeMerkleRoot(txHashes)
	if b.Header.MerkleRoot != expectedRoot {
		return fmt.Errorf("%w: header=%s computed=%s", ErrBadMerkleRoot, b.Header.MerkleRoot, expectedRoot)
	}

	// Canonical tx ordering: coinbase first, remaining in the order they
	// were selected from the mempool (insertion order is preserved by the
	// miner, so no further sort is imposed here beyond "not identical").
	for i := 2; i < len(txHashes); i++ {
		if bytes.Equal(txHashes[i-1][:], txHashes[i][:]) {
			return fmt.Errorf("%w: tx %d duplicates tx %d", ErrBadTxOrder, i, i-1)
		}
	}

	for i, t := range b.Transactions {
		if err := t.ValidateIntrinsic(); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
	}

	if !b.Header.MeetsDifficulty() {
		return ErrProofOfWork
	}

	return nil
}

// Hash returns the block header hash.
func (b *Block) Hash() types.Hash {
	if b.Header == nil {
		return types.Hash{}
	}
	return b.Header.Hash()
}
