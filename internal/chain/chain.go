// Package chain implements the blockchain state machine: block storage,
// contextual validation, the derived balance ledger, and chain
// replacement.
package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/consensus"
	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Contextual validation errors.
var (
	ErrNilBlock               = errors.New("nil block")
	ErrInvalidHeight          = errors.New("block height does not follow the tip")
	ErrPrevHashMismatch       = errors.New("block previous hash does not match tip")
	ErrNonIncreasingTimestamp = errors.New("block timestamp does not exceed previous block")
	ErrBadCoinbase            = errors.New("invalid coinbase transaction")
	ErrInsufficientBalance    = errors.New("sender balance insufficient for transaction")
	ErrDuplicateTransaction   = errors.New("transaction already appears in an earlier block")
	ErrNotLonger              = errors.New("replacement chain is not strictly longer")
	ErrGenesisMismatch        = errors.New("replacement chain has a different genesis block")
	ErrAlreadyInitialized     = errors.New("chain already initialized")
	ErrBadGenesisBlock        = errors.New("genesis block is invalid")
)

// MempoolSource is the subset of internal/mempool's Pool that Chain
// needs: admission delegation and post-block bookkeeping. Chain takes
// this as an interface rather than importing mempool directly to keep
// the dependency one-directional (mempool never imports chain).
type MempoolSource interface {
	Add(t *tx.Transaction, balance func(types.Address) int64) error
	RemoveConfirmed(txs []*tx.Transaction)
	Reevaluate(balance func(types.Address) int64)
}

// dupKey identifies a transaction for the duplicate-spend rule: the
// same (sender, receiver, amount, timestamp) tuple may only ever
// appear once across the whole chain.
type dupKey struct {
	sender, receiver types.Address
	amount, timestamp int64
}

func dupKeyFor(t *tx.Transaction) dupKey {
	return dupKey{sender: t.Sender, receiver: t.Receiver, amount: t.Amount, timestamp: t.Timestamp}
}

// Chain holds the canonical block history, the derived balance ledger,
// and the duplicate-spend index. A single mutex guards every mutating
// operation and every reconstructive read (BalanceAt, ValidateChain).
type Chain struct {
	mu sync.Mutex

	blocks *BlockStore
	engine consensus.Engine

	state       State
	ledger      Ledger
	seen        map[dupKey]bool
	genesisHash types.Hash

	mempool MempoolSource
}

// New opens a chain backed by db. If the store already has a tip, the
// ledger and duplicate-spend index are rebuilt by replaying every
// block. A freshly created store returns an uninitialized chain —
// call InitFromGenesis before using it.
func New(db storage.DB, engine consensus.Engine) (*Chain, error) {
	if db == nil {
		return nil, fmt.Errorf("storage db is nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("consensus engine is nil")
	}

	blocks := NewBlockStore(db)

	c := &Chain{
		blocks: blocks,
		engine: engine,
		ledger: make(Ledger),
		seen:   make(map[dupKey]bool),
	}

	tipHash, height, hasTip, err := blocks.GetTip()
	if err != nil {
		return nil, fmt.Errorf("recover tip: %w", err)
	}
	if !hasTip {
		return c, nil
	}

	genBlk, err := blocks.GetBlockByHeight(0)
	if err != nil {
		return nil, fmt.Errorf("load genesis block: %w", err)
	}
	c.genesisHash = genBlk.Hash()

	ledger, seen, err := rebuildLedgerAndSeen(blocks, height)
	if err != nil {
		return nil, fmt.Errorf("rebuild ledger: %w", err)
	}

	tipBlk, err := blocks.GetBlockByHeight(height)
	if err != nil {
		return nil, fmt.Errorf("load tip block: %w", err)
	}

	c.ledger = ledger
	c.seen = seen
	c.state = State{Height: height, TipHash: tipHash, TipTimestamp: tipBlk.Header.Timestamp}
	return c, nil
}

// InitFromGenesis mines and commits the fixed genesis block. Returns
// ErrAlreadyInitialized if the chain already has a tip.
func (c *Chain) InitFromGenesis(gen *config.Genesis) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsGenesis() {
		return fmt.Errorf("%w: chain is at height %d", ErrAlreadyInitialized, c.state.Height)
	}

	blk, err := CreateGenesisBlock(gen)
	if err != nil {
		return fmt.Errorf("create genesis block: %w", err)
	}
	if err := c.validateGenesis(blk); err != nil {
		return fmt.Errorf("%w: %v", ErrBadGenesisBlock, err)
	}

	if err := c.blocks.CommitBlock(blk); err != nil {
		return fmt.Errorf("store genesis block: %w", err)
	}

	ledger := make(Ledger)
	ledger.applyBlock(blk)

	hash := blk.Hash()
	c.ledger = ledger
	c.seen = make(map[dupKey]bool)
	c.genesisHash = hash
	c.state = State{Height: 0, TipHash: hash, TipTimestamp: blk.Header.Timestamp}
	return nil
}

// SetMempool wires the mempool used for MempoolAdmit and for post-block
// housekeeping (removing confirmed transactions, re-evaluating pending
// ones after a chain replacement).
func (c *Chain) SetMempool(p MempoolSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mempool = p
}

// AppendBlock admits blk only if it is contextually valid against the
// current tip, updates the ledger and duplicate-spend index, persists
// the block, and removes its transactions from the mempool.
func (c *Chain) AppendBlock(blk *block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if blk == nil || blk.Header == nil {
		return ErrNilBlock
	}

	prev, err := c.blocks.GetBlockByHeight(c.state.Height)
	if err != nil {
		return fmt.Errorf("load tip block: %w", err)
	}

	if err := c.validateContextual(prev, blk, c.ledger, c.seen); err != nil {
		return err
	}

	c.ledger.applyBlock(blk)
	for _, t := range blk.Transactions[1:] {
		c.seen[dupKeyFor(t)] = true
	}

	if err := c.blocks.CommitBlock(blk); err != nil {
		return fmt.Errorf("commit block: %w", err)
	}

	c.state = State{Height: blk.Header.Height, TipHash: blk.Hash(), TipTimestamp: blk.Header.Timestamp}

	if c.mempool != nil {
		c.mempool.RemoveConfirmed(blk.Transactions)
	}
	return nil
}

// ValidateChain fully re-validates every block from genesis to the
// current tip, including consensus and contextual rules, without
// mutating any persisted or in-memory state.
func (c *Chain) ValidateChain() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsGenesis() {
		return nil
	}

	genBlk, err := c.blocks.GetBlockByHeight(0)
	if err != nil {
		return fmt.Errorf("load genesis block: %w", err)
	}
	if err := c.validateGenesis(genBlk); err != nil {
		return fmt.Errorf("genesis block: %w", err)
	}

	ledger := make(Ledger)
	ledger.applyBlock(genBlk)
	seen := make(map[dupKey]bool)

	prev := genBlk
	for h := uint64(1); h <= c.state.Height; h++ {
		blk, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return fmt.Errorf("load block %d: %w", h, err)
		}
		if err := c.validateContextual(prev, blk, ledger, seen); err != nil {
			return fmt.Errorf("block %d: %w", h, err)
		}
		ledger.applyBlock(blk)
		for _, t := range blk.Transactions[1:] {
			seen[dupKeyFor(t)] = true
		}
		prev = blk
	}
	return nil
}

// validateGenesis checks the fixed rules that apply only to the
// genesis block: zero previous hash, intrinsic and consensus validity,
// and exactly one genesis transaction.
func (c *Chain) validateGenesis(blk *block.Block) error {
	if !blk.Header.PrevHash.IsZero() {
		return fmt.Errorf("genesis block must have a zero previous hash")
	}
	if err := blk.Validate(); err != nil {
		return fmt.Errorf("intrinsic validation: %w", err)
	}
	if err := c.engine.VerifyHeader(blk.Header); err != nil {
		return fmt.Errorf("consensus: %w", err)
	}
	if len(blk.Transactions) != 1 || !blk.Transactions[0].IsGenesis() {
		return fmt.Errorf("genesis block must contain exactly one genesis transaction")
	}
	return nil
}

// validateContextual checks the six contextual rules for blk against
// its immediate predecessor prev: height continuity, previous-hash
// linkage, intrinsic and consensus validity, strictly increasing
// timestamp, a correctly rewarded coinbase, and — for every other
// transaction — sufficient sender balance and no duplicate-spend
// against ledger/seen. It never mutates ledger or seen.
func (c *Chain) validateContextual(prev, blk *block.Block, ledger Ledger, seen map[dupKey]bool) error {
	if blk.Header.Height != prev.Header.Height+1 {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidHeight, blk.Header.Height, prev.Header.Height+1)
	}
	if blk.Header.PrevHash != prev.Hash() {
		return ErrPrevHashMismatch
	}
	if err := blk.Validate(); err != nil {
		return fmt.Errorf("intrinsic validation: %w", err)
	}
	if err := c.engine.VerifyHeader(blk.Header); err != nil {
		return fmt.Errorf("consensus: %w", err)
	}
	if blk.Header.Timestamp <= prev.Header.Timestamp {
		return ErrNonIncreasingTimestamp
	}

	coinbase := blk.Transactions[0]
	if !coinbase.IsCoinbase() {
		return ErrBadCoinbase
	}
	wantReward := BlockReward(blk.Header.Height)
	if coinbase.Amount != wantReward || coinbase.Fee != 0 {
		return fmt.Errorf("%w: amount %d fee %d, want amount %d fee 0",
			ErrBadCoinbase, coinbase.Amount, coinbase.Fee, wantReward)
	}

	pending := make(map[types.Address]int64, len(blk.Transactions)-1)
	for _, t := range blk.Transactions[1:] {
		key := dupKeyFor(t)
		if seen[key] {
			return fmt.Errorf("%w: %s", ErrDuplicateTransaction, t.ID)
		}
		need := t.Amount + t.Fee
		have := ledger.Balance(t.Sender) + pending[t.Sender]
		if have < need {
			return fmt.Errorf("%w: sender %s has %d, needs %d", ErrInsufficientBalance, t.Sender, have, need)
		}
		pending[t.Sender] -= need
	}
	return nil
}

// TryReplace replaces the current chain with newBlocks (the full
// candidate chain from genesis) if and only if it is strictly longer
// and every block validates. Ties keep the current chain. On success
// the ledger and duplicate-spend index are rebuilt from the new chain
// and pending mempool transactions are re-evaluated against it.
func (c *Chain) TryReplace(newBlocks []*block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(newBlocks) == 0 {
		return fmt.Errorf("empty replacement chain")
	}
	newHeight := uint64(len(newBlocks) - 1)
	if newHeight <= c.state.Height {
		return ErrNotLonger
	}
	if !c.genesisHash.IsZero() && newBlocks[0].Hash() != c.genesisHash {
		return ErrGenesisMismatch
	}

	ledger := make(Ledger)
	seen := make(map[dupKey]bool)

	if err := c.validateGenesis(newBlocks[0]); err != nil {
		return fmt.Errorf("genesis block: %w", err)
	}
	ledger.applyBlock(newBlocks[0])

	for i := 1; i < len(newBlocks); i++ {
		prev, blk := newBlocks[i-1], newBlocks[i]
		if err := c.validateContextual(prev, blk, ledger, seen); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		ledger.applyBlock(blk)
		for _, t := range blk.Transactions[1:] {
			seen[dupKeyFor(t)] = true
		}
	}

	for _, blk := range newBlocks {
		if err := c.blocks.PutBlock(blk); err != nil {
			return fmt.Errorf("store block %d: %w", blk.Header.Height, err)
		}
	}

	tip := newBlocks[len(newBlocks)-1]
	if err := c.blocks.SetTip(tip.Hash(), tip.Header.Height); err != nil {
		return fmt.Errorf("set tip: %w", err)
	}

	c.ledger = ledger
	c.seen = seen
	c.state = State{Height: tip.Header.Height, TipHash: tip.Hash(), TipTimestamp: tip.Header.Timestamp}

	if c.mempool != nil {
		c.mempool.Reevaluate(c.ledger.Balance)
	}
	return nil
}

// MempoolAdmit checks intrinsic validity and delegates balance-aware
// admission to the wired mempool.
func (c *Chain) MempoolAdmit(t *tx.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mempool == nil {
		return fmt.Errorf("no mempool configured")
	}
	if err := t.ValidateIntrinsic(); err != nil {
		return fmt.Errorf("intrinsic validation: %w", err)
	}
	return c.mempool.Add(t, c.ledger.Balance)
}

// Balance returns addr's current ledger balance.
func (c *Chain) Balance(addr types.Address) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Balance(addr)
}

// BalanceAt returns addr's balance after replaying the chain through
// and including height.
func (c *Chain) BalanceAt(addr types.Address, height uint64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if height > c.state.Height {
		return 0, fmt.Errorf("height %d exceeds chain height %d", height, c.state.Height)
	}
	ledger, err := rebuildLedger(c.blocks, height)
	if err != nil {
		return 0, fmt.Errorf("replay to height %d: %w", height, err)
	}
	return ledger.Balance(addr), nil
}

// State returns a copy of the current chain tip state.
func (c *Chain) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Height returns the current chain height.
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Height
}

// TipHash returns the hash of the current chain tip.
func (c *Chain) TipHash() types.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.TipHash
}

// Difficulty returns the proof-of-work difficulty of the current tip
// block, or 0 if the chain has not been initialized.
func (c *Chain) Difficulty() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.TipHash.IsZero() {
		return 0, nil
	}
	blk, err := c.blocks.GetBlockByHeight(c.state.Height)
	if err != nil {
		return 0, fmt.Errorf("load tip block: %w", err)
	}
	return blk.Header.Difficulty, nil
}

// Supply returns the total coin supply currently in circulation: the
// sum of every account's ledger balance.
func (c *Chain) Supply() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, bal := range c.ledger {
		total += bal
	}
	return total
}

// GetBlock retrieves a block by its hash.
func (c *Chain) GetBlock(hash types.Hash) (*block.Block, error) {
	return c.blocks.GetBlock(hash)
}

// GetBlockByHeight retrieves a block by its height.
func (c *Chain) GetBlockByHeight(height uint64) (*block.Block, error) {
	return c.blocks.GetBlockByHeight(height)
}

// GetTransaction looks up a confirmed transaction by id via the tx index.
func (c *Chain) GetTransaction(id types.Hash) (*tx.Transaction, error) {
	_, blockHash, err := c.blocks.GetTxLocation(id)
	if err != nil {
		return nil, err
	}
	blk, err := c.blocks.GetBlock(blockHash)
	if err != nil {
		return nil, fmt.Errorf("load block for tx: %w", err)
	}
	for _, t := range blk.Transactions {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("tx %s not found in block %s (index corrupt)", id, blockHash)
}
