package consensus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// PoW errors.
var (
	ErrInsufficientWork = errors.New("hash does not meet difficulty target")
	ErrZeroDifficulty   = errors.New("difficulty must be > 0")
)

// PoW implements proof-of-work consensus. Difficulty is the required
// count of leading hex zero characters in the header hash. The engine
// holds no mutable state of its own — difficulty is derived from chain
// height via DifficultyFn and encoded in each block header.
type PoW struct {
	InitialDifficulty uint32 // Difficulty used when DifficultyFn is nil.

	// DifficultyFn computes the expected difficulty for a block at the
	// given height. Set by the node operator (gscd). If nil, Prepare and
	// ExpectedDifficulty fall back to InitialDifficulty — the chain runs
	// at a single fixed difficulty, matching the spec's behavior, while
	// leaving a seam for a future retarget policy.
	DifficultyFn func(height uint64) uint32

	// Threads controls the number of parallel mining goroutines.
	// 0 or 1 = single-threaded (default). Each goroutine searches a
	// strided partition of the nonce space.
	Threads int
}

// NewPoW creates a new PoW engine.
func NewPoW(difficulty uint32) (*PoW, error) {
	if difficulty == 0 {
		return nil, ErrZeroDifficulty
	}
	return &PoW{InitialDifficulty: difficulty}, nil
}

// ExpectedDifficulty computes the difficulty a block at the given
// height must satisfy.
func (p *PoW) ExpectedDifficulty(height uint64) uint32 {
	if p.DifficultyFn != nil {
		return p.DifficultyFn(height)
	}
	return p.InitialDifficulty
}

// VerifyHeader checks that the block header hash meets its stated difficulty.
func (p *PoW) VerifyHeader(header *block.Header) error {
	if header.Difficulty == 0 && p.InitialDifficulty != 0 {
		return ErrZeroDifficulty
	}
	if !header.MeetsDifficulty() {
		return ErrInsufficientWork
	}
	return nil
}

// VerifyDifficulty checks that a block's stated difficulty matches the
// value expected for its height.
func (p *PoW) VerifyDifficulty(header *block.Header) error {
	expected := p.ExpectedDifficulty(header.Height)
	if header.Difficulty != expected {
		return fmt.Errorf("%w: height %d has difficulty %d, want %d",
			ErrBadDifficulty, header.Height, header.Difficulty, expected)
	}
	return nil
}

// ErrBadDifficulty is returned when a header's difficulty does not
// match the value expected for its height.
var ErrBadDifficulty = errors.New("block difficulty does not match expected")

// Prepare sets the block header's difficulty for mining.
func (p *PoW) Prepare(header *block.Header) error {
	header.Difficulty = p.ExpectedDifficulty(header.Height)
	return nil
}

// Seal mines the block by iterating the nonce until the header hash
// meets the required number of leading hex zero characters.
func (p *PoW) Seal(blk *block.Block) error {
	return p.SealWithCancel(context.Background(), blk)
}

// SealWithCancel mines the block with cancellation support. When the
// context is cancelled, mining stops and ctx.Err() is returned. If
// Threads > 1, mining runs in parallel goroutines with strided nonce
// partitioning.
func (p *PoW) SealWithCancel(ctx context.Context, blk *block.Block) error {
	if blk == nil || blk.Header == nil {
		return fmt.Errorf("nil block or header")
	}

	threads := p.Threads
	if threads <= 1 {
		return p.sealSingle(ctx, blk)
	}
	return p.sealParallel(ctx, blk, threads)
}

// SealWithProgress mines single-threaded like SealWithCancel, but every
// checkInterval nonce iterations — in addition to the cancellation
// check — it invokes progress with the current nonce and an estimate of
// the hash rate since the last checkpoint. progress may be nil.
func (p *PoW) SealWithProgress(ctx context.Context, blk *block.Block, checkInterval uint64, progress func(nonce, hashesPerSecond uint64)) error {
	if blk == nil || blk.Header == nil {
		return fmt.Errorf("nil block or header")
	}
	if checkInterval == 0 {
		checkInterval = 1000
	}

	prefix := signingPrefix(blk.Header)
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)

	checkpoint := time.Now()
	for nonce := uint64(0); ; nonce++ {
		if nonce%checkInterval == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if nonce > 0 && progress != nil {
				elapsed := time.Since(checkpoint).Seconds()
				var rate uint64
				if elapsed > 0 {
					rate = uint64(float64(checkInterval) / elapsed)
				}
				progress(nonce, rate)
			}
			checkpoint = time.Now()
		}

		binary.LittleEndian.PutUint64(buf[len(prefix):], nonce)
		hash := crypto.Hash(buf)
		if meetsTarget(hash, blk.Header.Difficulty) {
			blk.Header.Nonce = nonce
			return nil
		}
		if nonce == ^uint64(0) {
			return fmt.Errorf("nonce space exhausted")
		}
	}
}

// signingPrefix returns the header's signing bytes without the
// trailing nonce, so each mining goroutine can pre-compute it once and
// only append+hash the 8-byte nonce per iteration.
func signingPrefix(h *block.Header) []byte {
	buf := make([]byte, 0, 88)
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = append(buf, h.PrevHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, h.Timestamp)
	buf = binary.LittleEndian.AppendUint64(buf, h.Height)
	buf = binary.LittleEndian.AppendUint32(buf, h.Difficulty)
	return buf
}

func meetsTarget(hash types.Hash, difficulty uint32) bool {
	target := strings.Repeat("0", int(difficulty))
	return strings.HasPrefix(hash.String(), target)
}

// sealSingle mines with a single goroutine.
func (p *PoW) sealSingle(ctx context.Context, blk *block.Block) error {
	prefix := signingPrefix(blk.Header)
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)

	for nonce := uint64(0); ; nonce++ {
		if nonce&0xFFFF == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		binary.LittleEndian.PutUint64(buf[len(prefix):], nonce)
		hash := crypto.Hash(buf)
		if meetsTarget(hash, blk.Header.Difficulty) {
			blk.Header.Nonce = nonce
			return nil
		}
		if nonce == ^uint64(0) {
			return fmt.Errorf("nonce space exhausted")
		}
	}
}

// sealParallel mines with multiple goroutines, each searching a
// strided partition of the nonce space (goroutine i starts at
// nonce=i, step=threads).
func (p *PoW) sealParallel(ctx context.Context, blk *block.Block, threads int) error {
	prefix := signingPrefix(blk.Header)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		nonce uint64
		err   error
	}
	found := make(chan result, 1)

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		startNonce := uint64(i)
		stride := uint64(threads)
		go func() {
			defer wg.Done()
			buf := make([]byte, len(prefix)+8)
			copy(buf, prefix)

			for nonce := startNonce; ; nonce += stride {
				if (nonce/stride)&0xFFFF == 0 && nonce > 0 {
					select {
					case <-ctx.Done():
						return
					default:
					}
				}

				binary.LittleEndian.PutUint64(buf[len(prefix):], nonce)
				hash := crypto.Hash(buf)
				if meetsTarget(hash, blk.Header.Difficulty) {
					select {
					case found <- result{nonce: nonce}:
					default:
					}
					cancel()
					return
				}

				if nonce > ^uint64(0)-stride {
					select {
					case found <- result{err: fmt.Errorf("nonce space exhausted")}:
					default:
					}
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(found)
	}()

	select {
	case r, ok := <-found:
		if !ok {
			return fmt.Errorf("nonce space exhausted")
		}
		if r.err != nil {
			return r.err
		}
		blk.Header.Nonce = r.nonce
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
