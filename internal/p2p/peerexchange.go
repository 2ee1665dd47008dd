package p2p

import (
	"context"
	"encoding/json"
	"io"
	"time"

	klog "github.com/Klingon-tech/klingnet-chain/internal/log"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

const peerListReadTimeout = 10 * time.Second

// peerListResponse carries addresses of peers known to the responder,
// answering a request_peers query.
type peerListResponse struct {
	Addrs []string `json:"addrs"`
}

func (n *Node) registerPeerListHandler() {
	n.host.SetStreamHandler(PeerListProtocol, func(stream network.Stream) {
		defer stream.Close()

		_ = stream.SetReadDeadline(time.Now().Add(peerListReadTimeout))
		io.Copy(io.Discard, io.LimitReader(stream, 64))

		resp := peerListResponse{Addrs: n.knownPeerAddrs()}
		json.NewEncoder(stream).Encode(&resp)
	})
}

// knownPeerAddrs returns full dialable multiaddrs (including /p2p/<id>)
// for every currently connected peer.
func (n *Node) knownPeerAddrs() []string {
	n.mu.RLock()
	ids := make([]peer.ID, 0, len(n.peers))
	for id := range n.peers {
		ids = append(ids, id)
	}
	n.mu.RUnlock()

	var addrs []string
	for _, id := range ids {
		for _, a := range n.host.Peerstore().Addrs(id) {
			full, err := multiaddr.NewMultiaddr(a.String() + "/p2p/" + id.String())
			if err != nil {
				continue
			}
			addrs = append(addrs, full.String())
		}
	}
	return addrs
}

// RequestPeers asks a peer for its known peer list, then opportunistically
// dials any returned addresses not already connected, stopping once
// MaxPeers is reached.
func (n *Node) RequestPeers(ctx context.Context, peerID peer.ID) error {
	logger := klog.WithComponent("p2p")

	stream, err := n.host.NewStream(ctx, peerID, PeerListProtocol)
	if err != nil {
		return err
	}
	defer stream.Close()

	stream.CloseWrite()
	_ = stream.SetReadDeadline(time.Now().Add(peerListReadTimeout))

	var resp peerListResponse
	if err := json.NewDecoder(io.LimitReader(stream, 65536)).Decode(&resp); err != nil {
		return err
	}

	for _, raw := range resp.Addrs {
		if n.maxPeersReached() {
			return nil
		}
		maddr, err := multiaddr.NewMultiaddr(raw)
		if err != nil {
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil || info.ID == n.host.ID() {
			continue
		}
		if n.hasPeer(info.ID) {
			continue
		}
		dialCtx, cancel := context.WithTimeout(n.ctx, 10*time.Second)
		if err := n.host.Connect(dialCtx, *info); err != nil {
			logger.Debug().Err(err).Str("peer", info.ID.String()[:16]).Msg("peer exchange dial failed")
		}
		cancel()
	}
	return nil
}

func (n *Node) maxPeersReached() bool {
	if n.config.MaxPeers <= 0 {
		return false
	}
	return n.PeerCount() >= n.config.MaxPeers
}

func (n *Node) hasPeer(id peer.ID) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.peers[id]
	return ok
}
