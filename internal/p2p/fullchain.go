package p2p

import (
	"context"
	"encoding/json"
	"io"
	"time"

	klog "github.com/Klingon-tech/klingnet-chain/internal/log"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
)

const (
	fullChainWriteTimeout = 60 * time.Second

	// fullChainChunkSize is the number of blocks sent per chunk message.
	fullChainChunkSize = 200
)

// blockchainChunk is one message in a request_full_blockchain reply. The
// final chunk sets EndOfChain true and carries no blocks.
type blockchainChunk struct {
	Blocks     []*block.Block `json:"blocks"`
	EndOfChain bool           `json:"end_of_blockchain"`
}

// FullChainProvider returns every block in the local chain, in height
// order, for a full resync.
type FullChainProvider func() []*block.Block

// SetFullChainProvider wires the callback used to answer
// request_full_blockchain queries from peers.
func (n *Node) SetFullChainProvider(fn FullChainProvider) {
	n.fullChainProvider = fn
}

func (n *Node) registerFullChainHandler() {
	logger := klog.WithComponent("p2p")
	n.host.SetStreamHandler(FullChainProtocol, func(stream network.Stream) {
		defer stream.Close()

		_ = stream.SetReadDeadline(time.Now().Add(chainInfoReadTimeout))
		io.Copy(io.Discard, io.LimitReader(stream, 64))

		var blocks []*block.Block
		if n.fullChainProvider != nil {
			blocks = n.fullChainProvider()
		}

		_ = stream.SetWriteDeadline(time.Now().Add(fullChainWriteTimeout))
		enc := json.NewEncoder(stream)
		for len(blocks) > 0 {
			end := fullChainChunkSize
			if end > len(blocks) {
				end = len(blocks)
			}
			if err := enc.Encode(&blockchainChunk{Blocks: blocks[:end]}); err != nil {
				logger.Debug().Err(err).Msg("full chain chunk write failed")
				return
			}
			blocks = blocks[end:]
		}
		enc.Encode(&blockchainChunk{EndOfChain: true})
	})
}

// RequestFullChain asks a peer for the complete chain, returning the
// concatenation of every chunk it sends before the end-of-chain sentinel.
func (n *Node) RequestFullChain(ctx context.Context, peerID peer.ID) ([]*block.Block, error) {
	stream, err := n.host.NewStream(ctx, peerID, FullChainProtocol)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	stream.CloseWrite()
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	} else {
		_ = stream.SetReadDeadline(time.Now().Add(fullChainWriteTimeout))
	}

	dec := json.NewDecoder(stream)

	var all []*block.Block
	for {
		var chunk blockchainChunk
		if err := dec.Decode(&chunk); err != nil {
			return all, err
		}
		if chunk.EndOfChain {
			return all, nil
		}
		all = append(all, chunk.Blocks...)
	}
}
