package p2p

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/Klingon-tech/klingnet-chain/pkg/types"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
)

const chainInfoReadTimeout = 10 * time.Second

// ChainInfo summarizes local chain state for the blockchain_info exchange.
type ChainInfo struct {
	Height     uint64     `json:"height"`
	BestHash   types.Hash `json:"best_hash"`
	Difficulty uint32     `json:"difficulty"`
	Supply     int64      `json:"supply"`
}

// ChainInfoProvider reports the current summary of local chain state.
type ChainInfoProvider func() ChainInfo

// SetChainInfoProvider wires the callback used to answer
// request_blockchain_info queries from peers.
func (n *Node) SetChainInfoProvider(fn ChainInfoProvider) {
	n.chainInfoProvider = fn
}

func (n *Node) registerChainInfoHandler() {
	n.host.SetStreamHandler(ChainInfoProtocol, func(stream network.Stream) {
		defer stream.Close()

		_ = stream.SetReadDeadline(time.Now().Add(chainInfoReadTimeout))
		// The request body is empty; draining it lets CloseWrite on the
		// dialer side signal EOF cleanly before we write our reply.
		io.Copy(io.Discard, io.LimitReader(stream, 64))

		var info ChainInfo
		if n.chainInfoProvider != nil {
			info = n.chainInfoProvider()
		}
		json.NewEncoder(stream).Encode(&info)
	})
}

// RequestChainInfo asks a peer for its blockchain_info summary.
func (n *Node) RequestChainInfo(ctx context.Context, peerID peer.ID) (ChainInfo, error) {
	stream, err := n.host.NewStream(ctx, peerID, ChainInfoProtocol)
	if err != nil {
		return ChainInfo{}, err
	}
	defer stream.Close()

	stream.CloseWrite()
	_ = stream.SetReadDeadline(time.Now().Add(chainInfoReadTimeout))

	var info ChainInfo
	if err := json.NewDecoder(io.LimitReader(stream, 4096)).Decode(&info); err != nil {
		return ChainInfo{}, err
	}
	return info, nil
}
