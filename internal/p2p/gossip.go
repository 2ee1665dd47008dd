package p2p

import (
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
)

// NewTransactionBroadcast is the new_transaction GossipSub envelope. Loop
// avoidance: a node re-publishes (relays) a received transaction or
// block only after admitting it, and an item it already holds fails
// admission, so it is relayed at most once per node.
type NewTransactionBroadcast struct {
	OriginNodeID string          `json:"origin_node_id"`
	Propagated   bool            `json:"propagated"`
	Transaction  *tx.Transaction `json:"transaction"`
}

// NewBlockBroadcast is the new_block GossipSub envelope.
type NewBlockBroadcast struct {
	OriginNodeID string       `json:"origin_node_id"`
	Propagated   bool         `json:"propagated"`
	Block        *block.Block `json:"block"`
}

// BroadcastTx publishes a transaction to the gossip network as a freshly
// originated new_transaction message.
func (n *Node) BroadcastTx(t *tx.Transaction) error {
	return n.publishTx(t, false)
}

// RelayTx re-publishes a transaction received from a peer, marking it
// as propagated rather than locally originated.
func (n *Node) RelayTx(t *tx.Transaction) error {
	return n.publishTx(t, true)
}

func (n *Node) publishTx(t *tx.Transaction, propagated bool) error {
	if n.topicTx == nil {
		return fmt.Errorf("p2p node not started")
	}

	data, err := json.Marshal(&NewTransactionBroadcast{
		OriginNodeID: n.ID().String(),
		Propagated:   propagated,
		Transaction:  t,
	})
	if err != nil {
		return fmt.Errorf("marshal tx broadcast: %w", err)
	}

	return n.topicTx.Publish(n.ctx, data)
}

// BroadcastBlock publishes a block to the gossip network as a freshly
// mined or locally validated new_block message.
func (n *Node) BroadcastBlock(b *block.Block) error {
	return n.publishBlock(b, false)
}

// RelayBlock re-publishes a block received from a peer, marking it as
// propagated rather than locally originated.
func (n *Node) RelayBlock(b *block.Block) error {
	return n.publishBlock(b, true)
}

func (n *Node) publishBlock(b *block.Block, propagated bool) error {
	if n.topicBlock == nil {
		return fmt.Errorf("p2p node not started")
	}

	data, err := json.Marshal(&NewBlockBroadcast{
		OriginNodeID: n.ID().String(),
		Propagated:   propagated,
		Block:        b,
	})
	if err != nil {
		return fmt.Errorf("marshal block broadcast: %w", err)
	}

	return n.topicBlock.Publish(n.ctx, data)
}
