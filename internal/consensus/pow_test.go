package consensus

import (
	"context"
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

func TestNewPoW_ZeroDifficulty(t *testing.T) {
	_, err := NewPoW(0)
	if !errors.Is(err, ErrZeroDifficulty) {
		t.Fatalf("NewPoW(0) err = %v, want ErrZeroDifficulty", err)
	}
}

func testHeader(difficulty uint32) *block.Header {
	return &block.Header{
		Version:    1,
		PrevHash:   types.Hash{},
		MerkleRoot: types.Hash{1, 2, 3},
		Timestamp:  1000,
		Height:     1,
		Difficulty: difficulty,
	}
}

func TestPoW_SealAndVerify(t *testing.T) {
	pow, err := NewPoW(1)
	if err != nil {
		t.Fatal(err)
	}

	blk := block.NewBlock(testHeader(1), nil)
	if err := pow.Seal(blk); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !blk.Header.MeetsDifficulty() {
		t.Fatalf("sealed header does not meet difficulty 1: %s", blk.Header.HexHash())
	}
	if err := pow.VerifyHeader(blk.Header); err != nil {
		t.Fatalf("VerifyHeader after Seal: %v", err)
	}
}

func TestPoW_VerifyHeader_Rejects(t *testing.T) {
	pow, err := NewPoW(1)
	if err != nil {
		t.Fatal(err)
	}

	// A high difficulty at a fixed nonce is vanishingly unlikely to satisfy.
	header := testHeader(16)
	header.Nonce = 42

	if err := pow.VerifyHeader(header); !errors.Is(err, ErrInsufficientWork) {
		t.Fatalf("VerifyHeader = %v, want ErrInsufficientWork", err)
	}
}

func TestPoW_VerifyHeader_ZeroDifficulty(t *testing.T) {
	pow, err := NewPoW(1)
	if err != nil {
		t.Fatal(err)
	}

	header := testHeader(0)
	if err := pow.VerifyHeader(header); !errors.Is(err, ErrZeroDifficulty) {
		t.Fatalf("VerifyHeader(difficulty=0) = %v, want ErrZeroDifficulty", err)
	}
}

func TestPoW_SealWithCancel_AlreadyCancelled(t *testing.T) {
	pow, err := NewPoW(64) // Unreachable within the test's lifetime.
	if err != nil {
		t.Fatal(err)
	}
	blk := block.NewBlock(testHeader(64), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := pow.SealWithCancel(ctx, blk); !errors.Is(err, context.Canceled) {
		t.Fatalf("SealWithCancel = %v, want context.Canceled", err)
	}
}

func TestPoW_Prepare_SetsDifficulty(t *testing.T) {
	pow, _ := NewPoW(4)
	header := &block.Header{Height: 1, Version: 1, Timestamp: 1}
	if err := pow.Prepare(header); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if header.Difficulty != 4 {
		t.Fatalf("Prepare set difficulty = %d, want 4", header.Difficulty)
	}
}

func TestPoW_Prepare_UsesDifficultyFn(t *testing.T) {
	pow, _ := NewPoW(4)
	pow.DifficultyFn = func(height uint64) uint32 {
		if height == 0 {
			return 1
		}
		return 6
	}

	header := &block.Header{Height: 5, Version: 1, Timestamp: 1}
	if err := pow.Prepare(header); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if header.Difficulty != 6 {
		t.Fatalf("Prepare with DifficultyFn set difficulty = %d, want 6", header.Difficulty)
	}
}

func TestPoW_ExpectedDifficulty_DefaultsToInitial(t *testing.T) {
	pow, _ := NewPoW(3)
	for _, h := range []uint64{0, 1, 100} {
		if got := pow.ExpectedDifficulty(h); got != 3 {
			t.Fatalf("ExpectedDifficulty(%d) = %d, want 3", h, got)
		}
	}
}

func TestPoW_VerifyDifficulty(t *testing.T) {
	pow, _ := NewPoW(3)

	ok := testHeader(3)
	ok.Height = 10
	if err := pow.VerifyDifficulty(ok); err != nil {
		t.Fatalf("VerifyDifficulty(matching) = %v, want nil", err)
	}

	bad := testHeader(4)
	bad.Height = 10
	if err := pow.VerifyDifficulty(bad); !errors.Is(err, ErrBadDifficulty) {
		t.Fatalf("VerifyDifficulty(mismatched) = %v, want ErrBadDifficulty", err)
	}
}

func TestPoW_SealParallel(t *testing.T) {
	pow, err := NewPoW(1)
	if err != nil {
		t.Fatal(err)
	}
	pow.Threads = 4

	blk := block.NewBlock(testHeader(1), nil)
	if err := pow.Seal(blk); err != nil {
		t.Fatalf("Seal (parallel): %v", err)
	}
	if err := pow.VerifyHeader(blk.Header); err != nil {
		t.Fatalf("VerifyHeader after parallel Seal: %v", err)
	}
}

func TestPoW_SealWithProgress_Seals(t *testing.T) {
	pow, err := NewPoW(1)
	if err != nil {
		t.Fatal(err)
	}
	blk := block.NewBlock(testHeader(1), nil)

	if err := pow.SealWithProgress(context.Background(), blk, 1000, nil); err != nil {
		t.Fatalf("SealWithProgress: %v", err)
	}
	if err := pow.VerifyHeader(blk.Header); err != nil {
		t.Fatalf("VerifyHeader after SealWithProgress: %v", err)
	}
}

func TestPoW_SealWithProgress_ReportsCheckpoints(t *testing.T) {
	pow, err := NewPoW(64) // Unreachable; the loop must checkpoint before giving up.
	if err != nil {
		t.Fatal(err)
	}
	blk := block.NewBlock(testHeader(64), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls int

	err = pow.SealWithProgress(ctx, blk, 1, func(nonce, hashesPerSecond uint64) {
		calls++
		if calls >= 3 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SealWithProgress = %v, want context.Canceled", err)
	}
	if calls == 0 {
		t.Fatal("progress callback was never invoked")
	}
}

func TestPoW_SealWithProgress_AlreadyCancelled(t *testing.T) {
	pow, err := NewPoW(64)
	if err != nil {
		t.Fatal(err)
	}
	blk := block.NewBlock(testHeader(64), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := pow.SealWithProgress(ctx, blk, 1000, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("SealWithProgress = %v, want context.Canceled", err)
	}
}

func TestMeetsTarget(t *testing.T) {
	hash := types.Hash{} // All-zero hash: hex is "00...0", meets any difficulty up to 64.
	if !meetsTarget(hash, 8) {
		t.Fatal("all-zero hash should meet difficulty 8")
	}

	var nonZero types.Hash
	nonZero[0] = 0xFF
	if meetsTarget(nonZero, 1) {
		t.Fatal("hash starting with 0xFF should not meet difficulty 1")
	}
}
