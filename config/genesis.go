package config

import (
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Denomination constants. All on-chain amounts are base-unit integers;
// there is no fractional/float representation anywhere on the wire.
const (
	InitialReward       int64 = 50               // Block reward before any halving.
	HalvingInterval     int64 = 210_000           // Blocks between reward halvings.
	MaxHalvings         int64 = 64                // After this many halvings, reward is 0.
	MaxSupply           int64 = 21_750_000_000_000 // 21.75 trillion base units.
	GenesisTimestamp    int64 = 1_704_067_200      // 2024-01-01T00:00:00Z.
	GenesisDifficulty   uint  = 1                  // Leading hex zero count required of genesis hash.
	DefaultDifficulty   uint  = 4                  // Leading hex zero count required after genesis.
	MaxBlockTxs               = 10                 // Max non-coinbase transactions a block may carry; the miner selects up to MaxBlockTxs-1.
	MaxBlockSize              = 1_000_000          // Max serialized block size in bytes.
)

// GenesisForeignAddress is the fixed foundation reserve account that
// receives the entire genesis supply. It is not a normal wallet address
// and cannot be spent from except by the transactions the chain itself
// records moving funds out of it.
const GenesisForeignAddress = types.FoundationReserve

// Genesis describes the fixed first block of the chain. Unlike the
// teacher's multi-network Genesis (mainnet/testnet/alloc map/validator
// set), this chain has exactly one network and one genesis transaction:
// the full supply minted to the foundation reserve.
type Genesis struct {
	ChainName  string        `json:"chain_name"`
	Timestamp  int64         `json:"timestamp"`
	PrevHash   string        `json:"previous_hash"`
	Difficulty uint          `json:"difficulty"`
	Receiver   types.Address `json:"receiver"`
	Supply     int64         `json:"supply"`
}

// DefaultGenesis returns the fixed genesis configuration.
func DefaultGenesis() *Genesis {
	return &Genesis{
		ChainName:  "gscd",
		Timestamp:  GenesisTimestamp,
		PrevHash:   types.ZeroHashHex,
		Difficulty: GenesisDifficulty,
		Receiver:   GenesisForeignAddress,
		Supply:     MaxSupply,
	}
}

// RewardAt returns the block reward at the given height, applying the
// Bitcoin-style halving schedule: INITIAL_REWARD >> (height / HALVING_INTERVAL),
// reaching zero once MaxHalvings halvings have occurred.
func RewardAt(height int64) int64 {
	halvings := height / HalvingInterval
	if halvings >= MaxHalvings {
		return 0
	}
	return InitialReward >> uint(halvings)
}

// Validate checks that the genesis configuration is internally consistent.
func (g *Genesis) Validate() error {
	if g.Supply <= 0 {
		return fmt.Errorf("genesis supply must be positive")
	}
	if g.Supply != MaxSupply {
		return fmt.Errorf("genesis supply %d does not match protocol max supply %d", g.Supply, MaxSupply)
	}
	if !g.Receiver.IsValid() {
		return fmt.Errorf("genesis receiver %q is not a valid address", g.Receiver)
	}
	if len(g.PrevHash) != types.HashSize*2 {
		return fmt.Errorf("genesis previous_hash must be %d hex chars", types.HashSize*2)
	}
	return nil
}

// Hash returns a hash of the genesis configuration, used to detect
// genesis mismatches between nodes.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}
