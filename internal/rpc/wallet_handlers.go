package rpc

import (
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// requireKeystore returns an Error if wallet RPC is disabled.
func (s *Server) requireKeystore() *Error {
	if s.keystore == nil {
		return &Error{Code: CodeNotFound, Message: "wallet RPC is not enabled on this node"}
	}
	return nil
}

// handleWalletCreate creates a new wallet, encrypted if a password is
// given and unencrypted otherwise.
func (s *Server) handleWalletCreate(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireKeystore(); rpcErr != nil {
		return nil, rpcErr
	}
	var p WalletCreateParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Name == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "name required"}
	}

	w, err := s.keystore.Create(p.Name, p.Password)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return &WalletCreateResult{Address: w.MasterAddress.String(), BackupSeed: w.BackupSeed}, nil
}

// handleWalletList lists every wallet name in the keystore.
func (s *Server) handleWalletList(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireKeystore(); rpcErr != nil {
		return nil, rpcErr
	}
	names, err := s.keystore.ListWallets()
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return &WalletListResult{Wallets: names}, nil
}

// handleWalletGetBalance opens a wallet and reports its master
// address's current ledger balance.
func (s *Server) handleWalletGetBalance(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireKeystore(); rpcErr != nil {
		return nil, rpcErr
	}
	var p WalletOpenParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	w, err := s.keystore.Open(p.Name, p.Password)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	defer w.Close()

	return &WalletBalanceResult{
		Address: w.MasterAddress.String(),
		Balance: s.chain.Balance(w.MasterAddress),
	}, nil
}

// handleWalletNewAddress generates and persists a fresh sub-address
// under the named wallet.
func (s *Server) handleWalletNewAddress(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireKeystore(); rpcErr != nil {
		return nil, rpcErr
	}
	var p WalletNewAddressParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	w, err := s.keystore.Open(p.Name, p.Password)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	defer w.Close()

	addr, err := w.NewAddress(p.Label)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	if err := s.keystore.Save(w, p.Password); err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return &WalletAddressResult{Address: addr.String(), Label: p.Label}, nil
}

// handleWalletListAddresses lists a wallet's master address plus every
// generated sub-address.
func (s *Server) handleWalletListAddresses(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireKeystore(); rpcErr != nil {
		return nil, rpcErr
	}
	var p WalletOpenParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	w, err := s.keystore.Open(p.Name, p.Password)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	defer w.Close()

	addrs := make([]WalletAddressResult, len(w.Addresses))
	for i, a := range w.Addresses {
		addrs[i] = WalletAddressResult{Address: a.Address.String(), Label: a.Label}
	}
	return &WalletAddressListResult{MasterAddress: w.MasterAddress.String(), Addresses: addrs}, nil
}

// handleWalletSend builds, signs, and submits a transaction spending
// from the wallet's master address, broadcasting it to peers.
func (s *Server) handleWalletSend(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireKeystore(); rpcErr != nil {
		return nil, rpcErr
	}
	var p WalletSendParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Amount <= 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "amount must be positive"}
	}

	to, err := types.ParseAddress(p.To)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid recipient: %v", err)}
	}

	w, err := s.keystore.Open(p.Name, p.Password)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	defer w.Close()

	key, err := crypto.PrivateKeyFromBytes(w.MasterPrivateKey)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	defer key.Zero()

	t := tx.New(w.MasterAddress, to, p.Amount, p.Fee, time.Now().Unix())
	if err := t.Sign(key); err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}

	if err := s.chain.MempoolAdmit(t); err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	if s.p2pNode != nil {
		if err := s.p2pNode.BroadcastTx(t); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to broadcast wallet transaction")
		}
	}

	w.AddContact(to, "")
	if err := s.keystore.Save(w, p.Password); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist sending address after wallet_send")
	}

	return &WalletSendResult{TxHash: t.ID.String()}, nil
}

// handleWalletExportKey returns the wallet's raw master private key.
// Callers are expected to treat the result as highly sensitive.
func (s *Server) handleWalletExportKey(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireKeystore(); rpcErr != nil {
		return nil, rpcErr
	}
	var p WalletExportKeyParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	w, err := s.keystore.Open(p.Name, p.Password)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	defer w.Close()

	return &WalletExportKeyResult{
		PrivateKey: fmt.Sprintf("%x", w.MasterPrivateKey),
		Address:    w.MasterAddress.String(),
	}, nil
}

// handleWalletGetHistory returns the classified transaction history for
// a wallet's master address and every generated sub-address, indexing
// any blocks that have not been scanned yet.
func (s *Server) handleWalletGetHistory(req *Request) (interface{}, *Error) {
	if rpcErr := s.requireKeystore(); rpcErr != nil {
		return nil, rpcErr
	}
	var p WalletGetHistoryParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if s.txIndex == nil {
		return nil, &Error{Code: CodeNotFound, Message: "wallet history index is not enabled"}
	}

	w, err := s.keystore.Open(p.Name, p.Password)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	defer w.Close()

	addrSet := map[types.Address]bool{w.MasterAddress: true}
	for _, a := range w.Addresses {
		addrSet[a.Address] = true
	}

	meta, err := s.txIndex.GetMeta(p.Name)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	tip := s.chain.Height()
	startHeight := meta.LastHeight + 1
	if meta.LastHeight == 0 && meta.Count == 0 {
		startHeight = 0
	}
	if startHeight <= tip {
		if _, err := s.txIndex.IndexBlocks(p.Name, s.chain, startHeight, tip, addrSet, classifyForWallet); err != nil {
			return nil, &Error{Code: CodeInternalError, Message: err.Error()}
		}
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	entries, total, err := s.txIndex.Query(p.Name, limit, p.Offset)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return &WalletGetHistoryResult{Total: total, Entries: entries}, nil
}

// classifyForWallet turns a confirmed transaction into a TxHistoryEntry
// from the point of view of a wallet holding addrSet, or nil if the
// transaction touches none of them.
func classifyForWallet(t *tx.Transaction, addrSet map[types.Address]bool) *TxHistoryEntry {
	sent := addrSet[t.Sender]
	received := addrSet[t.Receiver]
	if !sent && !received {
		return nil
	}

	entry := &TxHistoryEntry{
		TxHash: t.ID.String(),
		Amount: t.Amount,
		Fee:    t.Fee,
		To:     t.Receiver.String(),
		From:   t.Sender.String(),
	}
	switch {
	case t.IsCoinbase() || t.IsGenesis():
		entry.Type = "coinbase"
	case sent:
		entry.Type = "sent"
	default:
		entry.Type = "received"
	}
	return entry
}
