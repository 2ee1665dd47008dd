package p2p

import (
	"context"
	"encoding/json"
	"io"
	"time"

	klog "github.com/Klingon-tech/klingnet-chain/internal/log"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
)

const (
	syncReadTimeout      = 30 * time.Second
	maxSyncResponseBytes = 10 * 1024 * 1024

	// maxHeadersPerReply caps a single headers response, per spec.
	maxHeadersPerReply = 2000

	// maxBlocksPerReply caps a single getblocks reply.
	maxBlocksPerReply = 500
)

// GetHeadersRequest asks a peer for headers following a known hash.
type GetHeadersRequest struct {
	FromHash types.Hash `json:"from_block_hash"`
}

// HeadersResponse carries up to 2000 header records.
type HeadersResponse struct {
	Headers []*block.Header `json:"headers"`
}

// GetBlocksRequest asks a peer for full blocks starting at a height.
type GetBlocksRequest struct {
	FromHeight uint64 `json:"from_height"`
}

// BlocksResponse carries the full block records answering a getblocks
// request (this node always wants bodies, so getdata/inv collapse
// into the same round trip as getblocks).
type BlocksResponse struct {
	Blocks []*block.Block `json:"blocks"`
}

// HeadersProvider returns up to maxHeadersPerReply headers immediately
// following fromHash (zero hash means "from genesis").
type HeadersProvider func(fromHash types.Hash) []*block.Header

// BlocksProvider returns up to maxBlocksPerReply full blocks starting
// at fromHeight.
type BlocksProvider func(fromHeight uint64) []*block.Block

// BlockAdmitFunc attempts to admit a single block into the local chain.
type BlockAdmitFunc func(*block.Block) error

// SetSyncProviders wires the callbacks used to answer peer sync
// requests and to admit blocks received while syncing.
func (n *Node) SetSyncProviders(headers HeadersProvider, blocks BlocksProvider, admit BlockAdmitFunc) {
	n.headersProvider = headers
	n.blocksProvider = blocks
	n.blockAdmit = admit
}

// SetBestHashFn sets the function used to report the local tip hash
// during handshake and blockchain_info exchanges.
func (n *Node) SetBestHashFn(fn func() types.Hash) {
	n.bestHashFn = fn
}

func (n *Node) registerSyncHandlers() {
	n.host.SetStreamHandler(HeadersProtocol, func(stream network.Stream) {
		defer stream.Close()
		var req GetHeadersRequest
		if err := json.NewDecoder(io.LimitReader(stream, 1024)).Decode(&req); err != nil {
			return
		}
		var headers []*block.Header
		if n.headersProvider != nil {
			headers = n.headersProvider(req.FromHash)
		}
		json.NewEncoder(stream).Encode(&HeadersResponse{Headers: headers})
	})

	n.host.SetStreamHandler(BlocksProtocol, func(stream network.Stream) {
		defer stream.Close()
		var req GetBlocksRequest
		if err := json.NewDecoder(io.LimitReader(stream, 1024)).Decode(&req); err != nil {
			return
		}
		var blocks []*block.Block
		if n.blocksProvider != nil {
			blocks = n.blocksProvider(req.FromHeight)
		}
		json.NewEncoder(stream).Encode(&BlocksResponse{Blocks: blocks})
	})
}

// requestHeaders asks peerID for headers following fromHash.
func (n *Node) requestHeaders(ctx context.Context, peerID peer.ID, fromHash types.Hash) ([]*block.Header, error) {
	stream, err := n.host.NewStream(ctx, peerID, HeadersProtocol)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := json.NewEncoder(stream).Encode(&GetHeadersRequest{FromHash: fromHash}); err != nil {
		return nil, err
	}
	stream.CloseWrite()
	_ = stream.SetReadDeadline(time.Now().Add(syncReadTimeout))

	var resp HeadersResponse
	if err := json.NewDecoder(io.LimitReader(stream, maxSyncResponseBytes)).Decode(&resp); err != nil {
		return nil, err
	}
	return resp.Headers, nil
}

// requestBlocks asks peerID for full blocks starting at fromHeight.
func (n *Node) requestBlocks(ctx context.Context, peerID peer.ID, fromHeight uint64) ([]*block.Block, error) {
	stream, err := n.host.NewStream(ctx, peerID, BlocksProtocol)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := json.NewEncoder(stream).Encode(&GetBlocksRequest{FromHeight: fromHeight}); err != nil {
		return nil, err
	}
	stream.CloseWrite()
	_ = stream.SetReadDeadline(time.Now().Add(syncReadTimeout))

	var resp BlocksResponse
	if err := json.NewDecoder(io.LimitReader(stream, maxSyncResponseBytes)).Decode(&resp); err != nil {
		return nil, err
	}
	return resp.Blocks, nil
}

// startSync drives a peer through the headers → blocks → mempool →
// live state machine. It is launched whenever a handshake reveals the
// peer is ahead of the local chain. Safe to call concurrently for
// different peers; a peer already syncing is left alone.
func (n *Node) startSync(peerID peer.ID) {
	n.mu.Lock()
	p, ok := n.peers[peerID]
	if !ok || p.Phase != PhaseIdle {
		n.mu.Unlock()
		return
	}
	p.Phase = PhaseHeaders
	n.mu.Unlock()

	go n.runSync(peerID)
}

func (n *Node) setPhase(peerID peer.ID, phase SyncPhase) {
	n.mu.Lock()
	if p, ok := n.peers[peerID]; ok {
		p.Phase = phase
	}
	n.mu.Unlock()
}

func (n *Node) peerPhase(peerID peer.ID) SyncPhase {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if p, ok := n.peers[peerID]; ok {
		return p.Phase
	}
	return PhaseIdle
}

func (n *Node) runSync(peerID peer.ID) {
	if n.host == nil {
		n.setPhase(peerID, PhaseIdle)
		return
	}

	logger := klog.WithComponent("p2p-sync")

	localHash := types.Hash{}
	if n.bestHashFn != nil {
		localHash = n.bestHashFn()
	}

	ctx, cancel := context.WithTimeout(n.ctx, syncReadTimeout)
	headers, err := n.requestHeaders(ctx, peerID, localHash)
	cancel()
	if err != nil {
		logger.Debug().Err(err).Msg("getheaders failed, abandoning sync")
		n.setPhase(peerID, PhaseIdle)
		return
	}
	n.setPhase(peerID, PhaseHeaders.next())

	if len(headers) > 0 {
		localHeight := uint64(0)
		if n.heightFn != nil {
			localHeight = n.heightFn()
		}
		ctx, cancel = context.WithTimeout(n.ctx, syncReadTimeout)
		blocks, err := n.requestBlocks(ctx, peerID, localHeight+1)
		cancel()
		if err != nil {
			logger.Debug().Err(err).Msg("getblocks failed, abandoning sync")
			n.setPhase(peerID, PhaseIdle)
			return
		}
		if n.blockAdmit != nil {
			for _, blk := range blocks {
				if err := n.blockAdmit(blk); err != nil {
					logger.Debug().Err(err).Uint64("height", blk.Header.Height).Msg("block rejected during sync")
					break
				}
			}
		}
	}
	n.setPhase(peerID, PhaseBlocks.next())

	ctx, cancel = context.WithTimeout(n.ctx, syncReadTimeout)
	txs, err := n.requestMempool(ctx, peerID)
	cancel()
	if err == nil && n.mempoolAdmit != nil {
		for _, t := range txs {
			_ = n.mempoolAdmit(t)
		}
	}
	n.setPhase(peerID, PhaseMempool.next())
}
