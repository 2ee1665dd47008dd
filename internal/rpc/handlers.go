package rpc

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// ── Chain endpoints ─────────────────────────────────────────────────────

// handleChainGetInfo returns a summary of the current chain tip.
func (s *Server) handleChainGetInfo(req *Request) (interface{}, *Error) {
	difficulty, err := s.chain.Difficulty()
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return &ChainInfoResult{
		ChainName:  s.genesis.ChainName,
		Height:     s.chain.Height(),
		TipHash:    s.chain.TipHash().String(),
		Difficulty: difficulty,
		Supply:     s.chain.Supply(),
	}, nil
}

// handleChainGetBlockByHash returns the full block for a given hash.
func (s *Server) handleChainGetBlockByHash(req *Request) (interface{}, *Error) {
	var p HashParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	hash, err := types.HexToHash(p.Hash)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid hash: %v", err)}
	}
	blk, err := s.chain.GetBlock(hash)
	if err != nil {
		return nil, &Error{Code: CodeNotFound, Message: err.Error()}
	}
	return NewBlockResult(blk), nil
}

// handleChainGetBlockByHeight returns the full block at a given height.
func (s *Server) handleChainGetBlockByHeight(req *Request) (interface{}, *Error) {
	var p HeightParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	blk, err := s.chain.GetBlockByHeight(p.Height)
	if err != nil {
		return nil, &Error{Code: CodeNotFound, Message: err.Error()}
	}
	return NewBlockResult(blk), nil
}

// handleChainGetTransaction looks up a confirmed transaction by ID.
func (s *Server) handleChainGetTransaction(req *Request) (interface{}, *Error) {
	var p HashParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	id, err := types.HexToHash(p.Hash)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid hash: %v", err)}
	}
	t, err := s.chain.GetTransaction(id)
	if err != nil {
		return nil, &Error{Code: CodeNotFound, Message: err.Error()}
	}
	return NewTxResult(t), nil
}

// ── Account endpoint ─────────────────────────────────────────────────────

// handleAccountGetBalance returns an address's current ledger balance.
func (s *Server) handleAccountGetBalance(req *Request) (interface{}, *Error) {
	var p AddressParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := types.ParseAddress(p.Address)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid address: %v", err)}
	}
	return &BalanceResult{Address: addr.String(), Balance: s.chain.Balance(addr)}, nil
}

// ── Transaction endpoints ────────────────────────────────────────────────

// handleTxSubmit validates and admits a transaction into the mempool,
// broadcasting it to peers on success.
func (s *Server) handleTxSubmit(req *Request) (interface{}, *Error) {
	var p TxSubmitParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Transaction == nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "transaction required"}
	}
	if err := s.chain.MempoolAdmit(p.Transaction); err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	if s.p2pNode != nil {
		if err := s.p2pNode.BroadcastTx(p.Transaction); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to broadcast submitted transaction")
		}
	}
	return &TxSubmitResult{TxHash: p.Transaction.ID.String()}, nil
}

// handleTxValidate checks intrinsic validity without admitting the
// transaction anywhere.
func (s *Server) handleTxValidate(req *Request) (interface{}, *Error) {
	var p TxSubmitParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Transaction == nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "transaction required"}
	}
	if err := p.Transaction.ValidateIntrinsic(); err != nil {
		return &TxValidateResult{Valid: false, Error: err.Error()}, nil
	}
	return &TxValidateResult{Valid: true}, nil
}

// ── Mempool endpoints ─────────────────────────────────────────────────────

// handleMempoolGetInfo returns pending transaction count.
func (s *Server) handleMempoolGetInfo(req *Request) (interface{}, *Error) {
	return &MempoolInfoResult{Count: s.pool.Count()}, nil
}

// handleMempoolGetContent returns every pending transaction.
func (s *Server) handleMempoolGetContent(req *Request) (interface{}, *Error) {
	txs := s.pool.SelectForBlock(0)
	results := make([]*TxResult, len(txs))
	for i, t := range txs {
		results[i] = NewTxResult(t)
	}
	return &MempoolContentResult{Transactions: results}, nil
}

// ── Net endpoints ─────────────────────────────────────────────────────────

// handleNetGetPeerInfo lists currently connected peers.
func (s *Server) handleNetGetPeerInfo(req *Request) (interface{}, *Error) {
	if s.p2pNode == nil {
		return &PeerInfoResult{}, nil
	}
	peers := s.p2pNode.PeerList()
	out := make([]PeerInfo, len(peers))
	for i, p := range peers {
		out[i] = PeerInfo{ID: p.ID.String()}
	}
	return &PeerInfoResult{Count: len(out), Peers: out}, nil
}

// handleNetGetNodeInfo returns this node's own P2P identity.
func (s *Server) handleNetGetNodeInfo(req *Request) (interface{}, *Error) {
	if s.p2pNode == nil {
		return &NodeInfoResult{}, nil
	}
	return &NodeInfoResult{ID: s.p2pNode.ID().String(), Addrs: s.p2pNode.Addrs()}, nil
}
