package chain

import (
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Ledger is a derived account-balance map. It holds no state of its
// own beyond what replaying the chain's blocks produces, and is
// rebuilt wholesale on load and on every successful TryReplace.
type Ledger map[types.Address]int64

// applyBlock folds a single block's transactions into the ledger:
// amount moves from sender to receiver, fee is deducted from the
// sender and paid to the block's miner (the coinbase receiver),
// coinbase and genesis transactions mint rather than debit.
func (l Ledger) applyBlock(blk *block.Block) {
	if len(blk.Transactions) == 0 {
		return
	}

	miner := blk.Transactions[0].Receiver

	for _, t := range blk.Transactions {
		if !t.IsCoinbase() && !t.IsGenesis() {
			l[t.Sender] -= t.Amount + t.Fee
			if !miner.IsZero() {
				l[miner] += t.Fee
			}
		}
		l[t.Receiver] += t.Amount
	}
}

// rebuildLedger replays every block from genesis through height,
// producing a fresh balance map.
func rebuildLedger(blocks *BlockStore, height uint64) (Ledger, error) {
	ledger := make(Ledger)
	for h := uint64(0); h <= height; h++ {
		blk, err := blocks.GetBlockByHeight(h)
		if err != nil {
			return nil, err
		}
		ledger.applyBlock(blk)
	}
	return ledger, nil
}

// rebuildLedgerAndSeen replays every block from genesis through height,
// producing both the balance map and the set of (sender, receiver,
// amount, timestamp) triples already seen on chain — the duplicate-spend
// index consulted on every subsequent AppendBlock/TryReplace.
func rebuildLedgerAndSeen(blocks *BlockStore, height uint64) (Ledger, map[dupKey]bool, error) {
	ledger := make(Ledger)
	seen := make(map[dupKey]bool)
	for h := uint64(0); h <= height; h++ {
		blk, err := blocks.GetBlockByHeight(h)
		if err != nil {
			return nil, nil, err
		}
		ledger.applyBlock(blk)
		for _, t := range blk.Transactions[1:] {
			seen[dupKeyFor(t)] = true
		}
	}
	return ledger, seen, nil
}

// Balance returns the given address's balance.
func (l Ledger) Balance(addr types.Address) int64 {
	return l[addr]
}
