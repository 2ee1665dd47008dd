package chain

import "github.com/Klingon-tech/klingnet-chain/config"

// BlockReward returns the coinbase reward due at the given height,
// applying the protocol's halving schedule.
func BlockReward(height uint64) int64 {
	return config.RewardAt(int64(height))
}
