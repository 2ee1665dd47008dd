package miner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/chain"
	"github.com/Klingon-tech/klingnet-chain/internal/consensus"
	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

func testAddr(seed byte) types.Address {
	var k [32]byte
	k[0] = seed
	return crypto.DeriveAddress(k)
}

func testGenesisConfig() *config.Genesis {
	return &config.Genesis{
		ChainName:  "test",
		Timestamp:  config.GenesisTimestamp,
		PrevHash:   types.ZeroHashHex,
		Difficulty: config.GenesisDifficulty,
		Receiver:   config.GenesisForeignAddress,
		Supply:     config.MaxSupply,
	}
}

// newTestChain wires a Chain and the same PoW engine instance the miner
// must use, so Prepare (miner side) and VerifyHeader (chain side) agree
// on the expected difficulty.
func newTestChain(t *testing.T, difficulty uint32) (*chain.Chain, *consensus.PoW) {
	t.Helper()
	pow, err := consensus.NewPoW(difficulty)
	if err != nil {
		t.Fatalf("NewPoW: %v", err)
	}
	db := storage.NewMemory()
	c, err := chain.New(db, pow)
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	if err := c.InitFromGenesis(testGenesisConfig()); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}
	return c, pow
}

type stubMempool struct {
	mu  sync.Mutex
	txs []*tx.Transaction
}

func (s *stubMempool) SelectForBlock(limit int) []*tx.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit >= len(s.txs) {
		out := make([]*tx.Transaction, len(s.txs))
		copy(out, s.txs)
		return out
	}
	out := make([]*tx.Transaction, limit)
	copy(out, s.txs[:limit])
	return out
}

func TestMiner_Mine_ProducesValidBlock(t *testing.T) {
	c, pow := newTestChain(t, 1)
	m := New(c, pow, nil)

	minerAddr := testAddr(1)
	genesis, err := c.GetBlockByHeight(0)
	if err != nil {
		t.Fatalf("GetBlockByHeight(0): %v", err)
	}

	blk, err := m.Mine(context.Background(), minerAddr, nil)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}

	if blk.Header.Height != 1 {
		t.Errorf("height = %d, want 1", blk.Header.Height)
	}
	if blk.Header.PrevHash != genesis.Header.Hash() {
		t.Error("PrevHash does not match genesis hash")
	}
	if len(blk.Transactions) != 1 {
		t.Fatalf("expected coinbase-only block, got %d txs", len(blk.Transactions))
	}
	if blk.Transactions[0].Receiver != minerAddr {
		t.Errorf("coinbase receiver = %s, want %s", blk.Transactions[0].Receiver, minerAddr)
	}
	if c.Height() != 1 {
		t.Errorf("chain height after Mine = %d, want 1", c.Height())
	}
}

func TestMiner_Mine_IncludesMempoolTx(t *testing.T) {
	c, pow := newTestChain(t, 1)
	sender := testAddr(2)

	// Seed the sender with a balance by mining one block paying them.
	seedMiner := New(c, pow, nil)
	if _, err := seedMiner.Mine(context.Background(), sender, nil); err != nil {
		t.Fatalf("seed Mine: %v", err)
	}

	reward := chain.BlockReward(1)
	pending := tx.New(sender, testAddr(3), reward/2, 1, 2000)
	pool := &stubMempool{txs: []*tx.Transaction{pending}}

	m := New(c, pow, pool)
	blk, err := m.Mine(context.Background(), testAddr(4), nil)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}

	if len(blk.Transactions) != 2 {
		t.Fatalf("expected coinbase + 1 tx, got %d", len(blk.Transactions))
	}
	if blk.Transactions[1].ID != pending.ID {
		t.Error("mined block does not contain the pending transaction")
	}
}

func TestMiner_Mine_RejectsConcurrentJobs(t *testing.T) {
	c, pow := newTestChain(t, 6) // High difficulty keeps the first job busy.
	m := New(c, pow, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		m.Mine(ctx, testAddr(1), nil)
		close(done)
	}()

	for !m.running.Load() {
	}

	if _, err := m.Mine(context.Background(), testAddr(2), nil); !errors.Is(err, ErrAlreadyMining) {
		t.Fatalf("second Mine err = %v, want ErrAlreadyMining", err)
	}

	cancel()
	<-done
}

func TestMiner_Mine_ContextCancelled(t *testing.T) {
	c, pow := newTestChain(t, 6)
	m := New(c, pow, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Mine(ctx, testAddr(1), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Mine err = %v, want context.Canceled", err)
	}
}

func TestMiner_Mine_ReportsProgress(t *testing.T) {
	c, pow := newTestChain(t, 1)
	m := New(c, pow, nil)

	calls := 0
	progress := func(nonce, hashesPerSecond uint64) { calls++ }

	if _, err := m.Mine(context.Background(), testAddr(1), progress); err != nil {
		t.Fatalf("Mine: %v", err)
	}
	// Difficulty 1 usually seals within the first checkpoint window, so
	// progress firing is not guaranteed — this only exercises the path.
	_ = calls
}
