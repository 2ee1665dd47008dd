// Package miner implements block production: assembling a candidate
// block from the mempool and sealing it with proof-of-work.
package miner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/chain"
	"github.com/Klingon-tech/klingnet-chain/internal/consensus"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// ErrAlreadyMining is returned by Mine when a mining job is already running.
var ErrAlreadyMining = errors.New("a mining job is already running")

// checkInterval is how often the seal loop checks for cancellation and
// reports progress, in nonce iterations.
const checkInterval = 1000

// ChainSource is the subset of Chain the miner needs: reading the tip
// to build a candidate, selecting mempool transactions for inclusion,
// and appending the sealed result.
type ChainSource interface {
	Height() uint64
	TipHash() types.Hash
	State() chain.State
	AppendBlock(blk *block.Block) error
}

// MempoolSource selects pending transactions for block inclusion.
type MempoolSource interface {
	SelectForBlock(limit int) []*tx.Transaction
}

// ProgressFunc reports mining progress. It is invoked roughly every
// checkInterval nonce iterations, never concurrently.
type ProgressFunc func(nonce, hashesPerSecond uint64)

// Miner builds and seals candidate blocks. Only one mining job may run
// at a time — a second call to Mine while one is in flight fails fast.
type Miner struct {
	chain   ChainSource
	engine  consensus.Engine
	mempool MempoolSource
	running atomic.Bool
}

// New creates a block producer.
func New(chain ChainSource, engine consensus.Engine, mempool MempoolSource) *Miner {
	return &Miner{chain: chain, engine: engine, mempool: mempool}
}

// Mine assembles a candidate block paying reward to minerAddr, seals it
// with proof-of-work, and appends it to the chain. progress may be nil.
// Mine blocks until a block is sealed and appended, the context is
// cancelled, or the tip changes out from under a just-sealed block (in
// which case it discards the result and rebuilds against the new tip).
func (m *Miner) Mine(ctx context.Context, minerAddr types.Address, progress ProgressFunc) (*block.Block, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyMining
	}
	defer m.running.Store(false)

	for {
		blk, err := m.sealCandidate(ctx, minerAddr, progress)
		if err != nil {
			return nil, err
		}

		if err := m.chain.AppendBlock(blk); err != nil {
			if errors.Is(err, chain.ErrInvalidHeight) || errors.Is(err, chain.ErrPrevHashMismatch) {
				// Tip moved while we were sealing; retry against the new one.
				continue
			}
			return nil, fmt.Errorf("append mined block: %w", err)
		}
		return blk, nil
	}
}

// buildCandidate assembles an unsealed block at the current tip+1,
// including a coinbase paying exactly the height's reward schedule and
// up to config.MaxBlockTxs-1 pending transactions. Fees on included
// transactions are credited to the miner separately by the ledger when
// the block is applied, not folded into the coinbase amount.
func (m *Miner) buildCandidate(minerAddr types.Address) (*block.Block, error) {
	state := m.chain.State()

	timestamp := nowFn()
	if timestamp <= state.TipTimestamp {
		timestamp = state.TipTimestamp + 1
	}

	height := state.Height + 1

	var selected []*tx.Transaction
	if m.mempool != nil {
		selected = m.mempool.SelectForBlock(config.MaxBlockTxs - 1)
	}

	reward := chain.BlockReward(height)
	coinbase := tx.NewCoinbase(minerAddr, reward, timestamp)

	txs := make([]*tx.Transaction, 0, 1+len(selected))
	txs = append(txs, coinbase)
	txs = append(txs, selected...)

	txHashes := make([]types.Hash, len(txs))
	for i, t := range txs {
		txHashes[i] = t.ID
	}

	header := &block.Header{
		Version:    block.CurrentVersion,
		PrevHash:   state.TipHash,
		MerkleRoot: block.ComputeMerkleRoot(txHashes),
		Timestamp:  timestamp,
		Height:     height,
		Miner:      string(minerAddr),
	}
	if err := m.engine.Prepare(header); err != nil {
		return nil, fmt.Errorf("prepare header: %w", err)
	}

	return block.NewBlock(header, txs), nil
}

// sealCandidate builds a candidate and mines its nonce. It supports a
// progress callback for engines (PoW) that expose it; other engines
// fall back to a plain blocking Seal.
func (m *Miner) sealCandidate(ctx context.Context, minerAddr types.Address, progress ProgressFunc) (*block.Block, error) {
	blk, err := m.buildCandidate(minerAddr)
	if err != nil {
		return nil, err
	}

	pow, ok := m.engine.(*consensus.PoW)
	if !ok {
		if err := m.engine.Seal(blk); err != nil {
			return nil, fmt.Errorf("seal block: %w", err)
		}
		return blk, nil
	}

	if err := pow.SealWithProgress(ctx, blk, checkInterval, func(nonce, hashesPerSecond uint64) {
		if progress != nil {
			progress(nonce, hashesPerSecond)
		}
	}); err != nil {
		return nil, fmt.Errorf("seal block: %w", err)
	}
	return blk, nil
}
