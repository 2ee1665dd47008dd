// Package mempool manages pending transactions waiting for block inclusion.
package mempool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Mempool errors.
var (
	ErrAlreadyExists       = errors.New("transaction already in mempool")
	ErrPoolFull            = errors.New("mempool is full")
	ErrValidation          = errors.New("transaction failed validation")
	ErrInsufficientBalance = errors.New("pending spends would exceed sender balance")
)

// entry wraps a pending transaction.
type entry struct {
	tx *tx.Transaction
}

// OrderFunc orders a transaction list for block selection.
type OrderFunc func(txs []*tx.Transaction) []*tx.Transaction

// Pool holds unconfirmed transactions, keyed by transaction id exactly
// like the teacher's mempool, with an explicit insertion-order index
// alongside the map.
type Pool struct {
	mu      sync.RWMutex
	txs     map[types.Hash]*entry
	order   []types.Hash
	maxSize int
	policy  *Policy
	orderFn OrderFunc
}

// New creates a mempool with the given max size (0 or negative uses a
// default of 5000).
func New(maxSize int) *Pool {
	if maxSize <= 0 {
		maxSize = 5000
	}
	return &Pool{
		txs:     make(map[types.Hash]*entry),
		maxSize: maxSize,
		policy:  DefaultPolicy(),
	}
}

// SetPolicy installs a custom acceptance policy.
func (p *Pool) SetPolicy(policy *Policy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policy = policy
}

// SetOrderFunc installs a custom block-selection ordering. A nil
// argument restores insertion order.
func (p *Pool) SetOrderFunc(fn OrderFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orderFn = fn
}

// Add validates and admits t. balance reports the sender's current
// ledger balance. Admission sums amount+fee over every pending
// transaction already in the pool from the same sender plus the
// candidate, and rejects if that sum exceeds the sender's balance —
// the double-spend-against-pending rule of spec §3/§4.5.
func (p *Pool) Add(t *tx.Transaction, balance func(types.Address) int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.txs[t.ID]; exists {
		return ErrAlreadyExists
	}
	if err := p.policy.Check(t); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	pending := t.Amount + t.Fee
	for _, id := range p.order {
		if e := p.txs[id]; e.tx.Sender == t.Sender {
			pending += e.tx.Amount + e.tx.Fee
		}
	}
	if have := balance(t.Sender); pending > have {
		return fmt.Errorf("%w: sender %s pending total %d exceeds balance %d", ErrInsufficientBalance, t.Sender, pending, have)
	}

	if len(p.txs) >= p.maxSize {
		return ErrPoolFull
	}

	p.txs[t.ID] = &entry{tx: t}
	p.order = append(p.order, t.ID)
	return nil
}

// Remove removes a transaction from the mempool by id.
func (p *Pool) Remove(id types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(id)
}

func (p *Pool) removeLocked(id types.Hash) {
	if _, exists := p.txs[id]; !exists {
		return
	}
	delete(p.txs, id)
	for i, h := range p.order {
		if h == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// RemoveConfirmed removes every transaction included in a confirmed block.
func (p *Pool) RemoveConfirmed(txs []*tx.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range txs {
		p.removeLocked(t.ID)
	}
}

// Reevaluate re-runs admission, in insertion order, against balance —
// the ledger function of a newly adopted chain after TryReplace — and
// evicts any transaction that no longer clears it.
func (p *Pool) Reevaluate(balance func(types.Address) int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	spent := make(map[types.Address]int64)
	var stale []types.Hash
	for _, id := range p.order {
		e := p.txs[id]
		need := e.tx.Amount + e.tx.Fee
		if spent[e.tx.Sender]+need > balance(e.tx.Sender) {
			stale = append(stale, id)
			continue
		}
		spent[e.tx.Sender] += need
	}
	for _, id := range stale {
		p.removeLocked(id)
	}
}

// Has checks if a transaction exists in the mempool.
func (p *Pool) Has(id types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, exists := p.txs[id]
	return exists
}

// Get retrieves a transaction from the mempool.
func (p *Pool) Get(id types.Hash) *tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, exists := p.txs[id]
	if !exists {
		return nil
	}
	return e.tx
}

// Count returns the number of transactions in the mempool.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// Hashes returns the ids of all pending transactions in insertion order.
func (p *Pool) Hashes() []types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]types.Hash, len(p.order))
	copy(out, p.order)
	return out
}

// SelectForBlock returns up to limit pending transactions ordered by
// the pool's OrderFunc (insertion order by default). limit <= 0 means
// no bound.
func (p *Pool) SelectForBlock(limit int) []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ordered := make([]*tx.Transaction, 0, len(p.order))
	for _, id := range p.order {
		ordered = append(ordered, p.txs[id].tx)
	}
	if p.orderFn != nil {
		ordered = p.orderFn(ordered)
	}
	if limit > 0 && limit < len(ordered) {
		ordered = ordered[:limit]
	}
	return ordered
}
