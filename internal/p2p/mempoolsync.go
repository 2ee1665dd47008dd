package p2p

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
)

const mempoolReadTimeout = 20 * time.Second

// mempoolResponse carries every pending transaction a peer is holding,
// answering a mempool/request_mempool query.
type mempoolResponse struct {
	Transactions []*tx.Transaction `json:"transactions"`
}

// MempoolProvider returns every transaction currently pending locally.
type MempoolProvider func() []*tx.Transaction

// MempoolAdmitFunc attempts to admit a single transaction into the
// local pool.
type MempoolAdmitFunc func(*tx.Transaction) error

// SetMempoolProviders wires the callbacks used to answer peer mempool
// queries and to admit transactions received while syncing.
func (n *Node) SetMempoolProviders(provide MempoolProvider, admit MempoolAdmitFunc) {
	n.mempoolProvider = provide
	n.mempoolAdmit = admit
}

func (n *Node) registerMempoolHandler() {
	n.host.SetStreamHandler(MempoolProtocol, func(stream network.Stream) {
		defer stream.Close()

		_ = stream.SetReadDeadline(time.Now().Add(mempoolReadTimeout))
		io.Copy(io.Discard, io.LimitReader(stream, 64))

		var resp mempoolResponse
		if n.mempoolProvider != nil {
			resp.Transactions = n.mempoolProvider()
		}
		json.NewEncoder(stream).Encode(&resp)
	})
}

// requestMempool asks a peer for its full set of pending transactions.
func (n *Node) requestMempool(ctx context.Context, peerID peer.ID) ([]*tx.Transaction, error) {
	stream, err := n.host.NewStream(ctx, peerID, MempoolProtocol)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	stream.CloseWrite()
	_ = stream.SetReadDeadline(time.Now().Add(mempoolReadTimeout))

	var resp mempoolResponse
	if err := json.NewDecoder(io.LimitReader(stream, maxSyncResponseBytes)).Decode(&resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}
