package p2p

// SyncPhase is a stage in a peer's four-phase sync state machine.
type SyncPhase int

const (
	// PhaseIdle means no sync is in progress with this peer (its
	// reported height is not ahead of ours, or we haven't handshaked yet).
	PhaseIdle SyncPhase = iota

	// PhaseHeaders: getheaders sent, waiting on headers reply.
	PhaseHeaders

	// PhaseBlocks: headers received, fetching full blocks via getdata.
	PhaseBlocks

	// PhaseMempool: blocks applied, requesting the peer's mempool.
	PhaseMempool

	// PhaseLive: sync complete; only broadcasts are relayed.
	PhaseLive
)

func (p SyncPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseHeaders:
		return "headers"
	case PhaseBlocks:
		return "blocks"
	case PhaseMempool:
		return "mempool"
	case PhaseLive:
		return "live"
	default:
		return "unknown"
	}
}

// next returns the phase that follows p in the headers → blocks →
// mempool → live progression. PhaseLive and PhaseIdle are terminal.
func (p SyncPhase) next() SyncPhase {
	switch p {
	case PhaseHeaders:
		return PhaseBlocks
	case PhaseBlocks:
		return PhaseMempool
	case PhaseMempool:
		return PhaseLive
	default:
		return p
	}
}
