package wallet

import "github.com/Klingon-tech/klingnet-chain/pkg/types"

// BalanceSource reports the live, confirmed ledger balance for an
// address. A wallet's own Balance field is a cached display value
// refreshed from a BalanceSource — it is never the authority on what
// an address can spend.
type BalanceSource func(types.Address) int64
