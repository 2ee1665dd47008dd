package p2p

import (
	"github.com/libp2p/go-libp2p/core/protocol"
)

// GossipSub topic names for broadcast propagation. A node relays a
// received transaction or block only after admitting it, and an item
// it already holds fails admission, so each node relays an item at
// most once.
const (
	TopicTransactions = "/gscd/tx/1.0.0"
	TopicBlocks       = "/gscd/block/1.0.0"
)

// Handshake protocol constants.
const (
	// HandshakeProtocol is the stream protocol ID for peer compatibility checking.
	HandshakeProtocol = protocol.ID("/gscd/handshake/1.0.0")

	// ProtocolVersion is the current protocol version advertised during handshake.
	ProtocolVersion uint32 = 1

	// MinProtocolVersion is the minimum protocol version we accept from peers.
	MinProtocolVersion uint32 = 1
)

// Direct request/response stream protocols, one per message pair in
// the sync vocabulary.
const (
	// HeadersProtocol serves getheaders → headers.
	HeadersProtocol = protocol.ID("/gscd/getheaders/1.0.0")

	// BlocksProtocol serves getblocks/getdata → block (a contiguous
	// run of full block records, which folds the spec's inv/getdata
	// round trip into a single request since this node always wants
	// the full body, never just the inventory).
	BlocksProtocol = protocol.ID("/gscd/getblocks/1.0.0")

	// MempoolProtocol serves mempool/request_mempool → tx.
	MempoolProtocol = protocol.ID("/gscd/mempool/1.0.0")

	// ChainInfoProtocol serves request_blockchain_info → blockchain_info_response.
	ChainInfoProtocol = protocol.ID("/gscd/chaininfo/1.0.0")

	// FullChainProtocol serves request_full_blockchain → blockchain_response,
	// a chunked transfer terminated by an end_of_blockchain sentinel.
	FullChainProtocol = protocol.ID("/gscd/fullchain/1.0.0")

	// PeerListProtocol serves request_peers → peer_list.
	PeerListProtocol = protocol.ID("/gscd/peerlist/1.0.0")
)

// MessageType identifies the type of GossipSub broadcast message.
type MessageType uint8

const (
	MsgTx    MessageType = iota + 1 // new_transaction broadcast.
	MsgBlock                        // new_block broadcast.
)

// Message is a GossipSub broadcast envelope.
type Message struct {
	Type    MessageType `json:"type"`
	Payload []byte      `json:"payload"`
}
