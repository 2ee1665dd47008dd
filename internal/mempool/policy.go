package mempool

import (
	"fmt"
	"sort"

	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
)

// DefaultMaxTxSize is the maximum transaction size in signing bytes.
const DefaultMaxTxSize = 100_000

// Policy defines transaction acceptance rules that are a matter of node
// configuration rather than consensus — a node may reject a transaction
// its peers would happily include in a block.
type Policy struct {
	MaxTxSize int // Maximum transaction size in signing bytes.
}

// DefaultPolicy returns a policy with sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{MaxTxSize: DefaultMaxTxSize}
}

// Check validates a transaction against policy rules.
func (p *Policy) Check(t *tx.Transaction) error {
	size := len(t.SigningBytes())
	if p.MaxTxSize > 0 && size > p.MaxTxSize {
		return fmt.Errorf("transaction too large: %d bytes, max %d", size, p.MaxTxSize)
	}
	return nil
}

// InsertionOrder returns txs unchanged — the mempool's default ordering
// for block selection.
func InsertionOrder(txs []*tx.Transaction) []*tx.Transaction {
	return txs
}

// FeePriority orders transactions by fee descending. A node may install
// this via Pool.SetOrderFunc to prioritize higher-paying transactions
// over strict arrival order — spec §4.4 leaves the choice to the
// implementer.
func FeePriority(txs []*tx.Transaction) []*tx.Transaction {
	sorted := make([]*tx.Transaction, len(txs))
	copy(sorted, txs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Fee > sorted[j].Fee })
	return sorted
}
