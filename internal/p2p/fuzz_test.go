package p2p

import (
	"encoding/json"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
)

// FuzzHandshakeUnmarshal tests that arbitrary JSON does not panic when
// unmarshaled into a HandshakeMessage.
func FuzzHandshakeUnmarshal(f *testing.F) {
	f.Add([]byte(`{"node_id":"12D3KooW","version":1,"genesis_hash":"00","network_id":"test","chain_height":100,"best_hash":"00"}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"node_id":null,"chain_height":0}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var msg HandshakeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		_ = msg.NodeID
		_ = msg.ProtocolVersion
		_ = msg.ChainHeight
		_ = msg.BestHash
	})
}

// FuzzBlockMessageUnmarshal tests that arbitrary JSON does not panic
// when unmarshaled as a gossip block message.
func FuzzBlockMessageUnmarshal(f *testing.F) {
	f.Add([]byte(`{"header":{"version":1,"timestamp":1000,"height":0},"transactions":[]}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"header":null}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var blk block.Block
		if err := json.Unmarshal(data, &blk); err != nil {
			return
		}
		blk.Validate()
		blk.Hash()
	})
}

// FuzzTxMessageUnmarshal tests that arbitrary JSON does not panic
// when unmarshaled as a gossip transaction message.
func FuzzTxMessageUnmarshal(f *testing.F) {
	f.Add([]byte(`{"sender":"","receiver":"","amount":0,"fee":0}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var t2 tx.Transaction
		if err := json.Unmarshal(data, &t2); err != nil {
			return
		}
		t2.Hash()
		t2.Validate()
	})
}
