package p2p

import (
	"time"

	"github.com/Klingon-tech/klingnet-chain/pkg/types"
	"github.com/libp2p/go-libp2p/core/peer"
)

// Peer represents a connected peer and its sync progress.
type Peer struct {
	ID          peer.ID
	ConnectedAt time.Time
	Source      string // "dht", "mdns", "seed", "gossip"

	// Reported by the peer's own handshake message.
	ReportedHeight   uint64
	ReportedBestHash types.Hash

	// Phase tracks this peer's position in the headers → blocks →
	// mempool → live sync state machine.
	Phase SyncPhase
}
