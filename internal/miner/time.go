package miner

import "time"

// nowFn is overridden in tests to produce a deterministic timestamp.
var nowFn = func() uint64 { return uint64(time.Now().Unix()) }
