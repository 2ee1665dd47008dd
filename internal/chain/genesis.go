package chain

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// CreateGenesisBlock builds the fixed genesis block: height 0, a zero
// PrevHash, and a single genesis transaction moving the entire max
// supply into the foundation reserve account.
func CreateGenesisBlock(gen *config.Genesis) (*block.Block, error) {
	if gen == nil {
		return nil, fmt.Errorf("genesis config is nil")
	}
	if err := gen.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis config: %w", err)
	}

	genesisTx := tx.New(types.SenderGenesis, gen.Receiver, gen.Supply, 0, gen.Timestamp)

	txs := []*tx.Transaction{genesisTx}
	merkle := block.ComputeMerkleRoot([]types.Hash{genesisTx.ID})

	header := &block.Header{
		Version:    block.CurrentVersion,
		PrevHash:   types.Hash{},
		MerkleRoot: merkle,
		Timestamp:  uint64(gen.Timestamp),
		Height:     0,
		Difficulty: uint32(gen.Difficulty),
	}

	// The genesis block is mined like any other, at the genesis difficulty.
	for !header.MeetsDifficulty() {
		header.Nonce++
	}

	return block.NewBlock(header, txs), nil
}
