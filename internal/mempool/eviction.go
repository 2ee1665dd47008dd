package mempool

import (
	"sort"

	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Evict removes the lowest-fee transactions until the pool is at or
// below its maximum size.
func (p *Pool) Evict() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.txs) <= p.maxSize {
		return 0
	}

	ids := make([]types.Hash, len(p.order))
	copy(ids, p.order)
	sort.Slice(ids, func(i, j int) bool {
		return p.txs[ids[i]].tx.Fee < p.txs[ids[j]].tx.Fee
	})

	evicted := 0
	for _, id := range ids {
		if len(p.txs) <= p.maxSize {
			break
		}
		p.removeLocked(id)
		evicted++
	}
	return evicted
}
