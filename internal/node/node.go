// Package node provides a reusable blockchain node that can be embedded
// in any binary (daemon, CLI, etc.).
package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/chain"
	"github.com/Klingon-tech/klingnet-chain/internal/consensus"
	klog "github.com/Klingon-tech/klingnet-chain/internal/log"
	"github.com/Klingon-tech/klingnet-chain/internal/mempool"
	"github.com/Klingon-tech/klingnet-chain/internal/miner"
	"github.com/Klingon-tech/klingnet-chain/internal/p2p"
	"github.com/Klingon-tech/klingnet-chain/internal/rpc"
	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/internal/wallet"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog"
)

// Node is a fully-initialized blockchain node.
type Node struct {
	cfg     *config.Config
	genesis *config.Genesis
	logger  zerolog.Logger

	db     storage.DB
	engine consensus.Engine
	ch     *chain.Chain
	pool   *mempool.Pool

	p2pNode *p2p.Node

	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and initializes a new Node: logger, genesis, storage,
// consensus engine, chain, mempool, P2P and RPC. It does not start any
// background goroutines — call Start for that.
func New(cfg *config.Config) (*Node, error) {
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = logsDir + "/gscd.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("node")

	genesis := config.DefaultGenesis()
	logger.Info().
		Str("chain", genesis.ChainName).
		Int64("supply", genesis.Supply).
		Msg("Starting gscd node")

	db, err := storage.NewBadger(cfg.ChainDataDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.ChainDataDir(), err)
	}
	logger.Info().Str("path", cfg.ChainDataDir()).Msg("Database opened")

	engine, err := consensus.NewPoW(uint32(config.DefaultDifficulty))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create consensus engine: %w", err)
	}

	ch, err := chain.New(db, engine)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create chain: %w", err)
	}

	if ch.State().IsGenesis() {
		if err := ch.InitFromGenesis(genesis); err != nil {
			db.Close()
			return nil, fmt.Errorf("init from genesis: %w", err)
		}
		logger.Info().Msg("Chain initialized from genesis")
	} else {
		if err := ch.ValidateChain(); err != nil {
			logger.Error().Err(err).Msg("Persisted chain failed validation")
			db.Close()
			return nil, fmt.Errorf("validate persisted chain: %w", err)
		}
		logger.Info().
			Uint64("height", ch.Height()).
			Str("tip", ch.TipHash().String()).
			Msg("Chain resumed from database")
	}

	pool := mempool.New(5000)
	ch.SetMempool(pool)
	logger.Info().Msg("Mempool ready")

	ctx, cancel := context.WithCancel(context.Background())

	n := &Node{
		cfg:     cfg,
		genesis: genesis,
		logger:  logger,
		db:      db,
		engine:  engine,
		ch:      ch,
		pool:    pool,
		ctx:     ctx,
		cancel:  cancel,
	}

	if cfg.P2P.Enabled {
		if err := n.setupP2P(); err != nil {
			cancel()
			db.Close()
			return nil, err
		}
	} else {
		logger.Warn().Msg("P2P disabled by config; node will run offline")
	}

	if cfg.RPC.Enabled {
		if err := n.setupRPC(); err != nil {
			cancel()
			if n.p2pNode != nil {
				n.p2pNode.Stop()
			}
			db.Close()
			return nil, err
		}
	} else {
		logger.Warn().Msg("RPC disabled by config")
	}

	return n, nil
}

// setupP2P constructs the P2P node, wires every provider and handler
// the sync and gossip protocols need, and starts listening.
func (n *Node) setupP2P() error {
	cfg := n.cfg
	p2pNode := p2p.New(p2p.Config{
		ListenAddr: cfg.P2P.ListenAddr,
		Port:       cfg.P2P.Port,
		Seeds:      cfg.P2P.Seeds,
		MaxPeers:   cfg.P2P.MaxPeers,
		NoDiscover: cfg.P2P.NoDiscover,
		DB:         n.db,
		NetworkID:  n.genesis.ChainName,
		DataDir:    cfg.DataDir,
	})

	genesisHash, err := n.genesis.Hash()
	if err != nil {
		return fmt.Errorf("hash genesis config: %w", err)
	}
	p2pNode.SetGenesisHash(genesisHash)
	p2pNode.SetHeightFn(n.ch.Height)
	p2pNode.SetBestHashFn(n.ch.TipHash)

	p2pNode.SetSyncProviders(n.provideHeaders, n.provideBlocks, n.admitSyncedBlock)
	p2pNode.SetMempoolProviders(n.provideMempool, n.ch.MempoolAdmit)
	p2pNode.SetChainInfoProvider(n.chainInfo)
	p2pNode.SetFullChainProvider(n.provideFullChain)

	p2pNode.SetBlockHandler(n.handleGossipBlock(p2pNode))
	p2pNode.SetTxHandler(n.handleGossipTx(p2pNode))

	if err := p2pNode.Start(); err != nil {
		return fmt.Errorf("start P2P: %w", err)
	}

	n.logger.Info().
		Str("id", p2pNode.ID().String()).
		Int("port", cfg.P2P.Port).
		Bool("discovery", !cfg.P2P.NoDiscover).
		Msg("P2P node started")

	n.p2pNode = p2pNode
	return nil
}

// setupRPC constructs and starts the JSON-RPC server, wiring wallet
// support if enabled.
func (n *Node) setupRPC() error {
	cfg := n.cfg
	rpcAddr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
	rpcServer := rpc.New(rpcAddr, n.ch, n.pool, n.p2pNode, n.genesis, cfg.RPC)
	if err := rpcServer.Start(); err != nil {
		return fmt.Errorf("start RPC at %s: %w", rpcAddr, err)
	}
	n.logger.Info().Str("addr", rpcServer.Addr()).Msg("RPC server started")

	if cfg.Wallet.Enabled {
		ks, err := wallet.NewKeystore(cfg.KeystoreDir())
		if err != nil {
			rpcServer.Stop()
			return fmt.Errorf("create wallet keystore: %w", err)
		}
		rpcServer.SetKeystore(ks)
		rpcServer.SetWalletTxIndex(rpc.NewWalletTxIndex(n.db))
		n.logger.Info().Str("path", cfg.KeystoreDir()).Msg("Wallet RPC enabled")
	}

	n.rpcServer = rpcServer
	return nil
}

// Start launches background goroutines: the mining worker, if enabled.
func (n *Node) Start() error {
	if n.cfg.Mining.Enabled {
		coinbaseAddr, err := resolveCoinbase(n.cfg.Mining.Coinbase)
		if err != nil {
			return fmt.Errorf("resolve coinbase: %w", err)
		}

		m := miner.New(n.ch, n.engine, n.pool)

		n.logger.Info().
			Str("coinbase", coinbaseAddr.String()).
			Msg("Block production enabled")

		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.runMiner(m, coinbaseAddr)
		}()
	}

	n.logger.Info().
		Uint64("height", n.ch.Height()).
		Str("tip", n.ch.TipHash().String()).
		Bool("mining", n.cfg.Mining.Enabled).
		Msg("Node started successfully")

	return nil
}

// Stop performs graceful shutdown in reverse order: cancel background
// work, wait for it to exit, then tear down RPC, P2P, and storage.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()

	if n.rpcServer != nil {
		n.rpcServer.Stop()
	}
	if n.p2pNode != nil {
		n.p2pNode.Stop()
	}
	if n.db != nil {
		n.db.Close()
	}

	n.logger.Info().Msg("Goodbye!")
}

// RPCAddr returns the address the RPC server is listening on, or the
// empty string if RPC is disabled.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Height returns the current chain height.
func (n *Node) Height() uint64 {
	return n.ch.Height()
}

// ── Mining ────────────────────────────────────────────────────────

// runMiner repeatedly seals and appends blocks, one at a time, until
// the node shuts down. There is no fixed block interval: a new sealing
// attempt starts as soon as the previous one lands or the tip moves.
// Every mined block is broadcast to peers.
func (n *Node) runMiner(m *miner.Miner, coinbase types.Address) {
	for {
		select {
		case <-n.ctx.Done():
			n.logger.Info().Msg("Block production stopped")
			return
		default:
		}

		blk, err := m.Mine(n.ctx, coinbase, nil)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			n.logger.Error().Err(err).Msg("Failed to produce block")
			continue
		}

		n.logger.Info().
			Uint64("height", blk.Header.Height).
			Str("hash", blk.Hash().String()).
			Int("txs", len(blk.Transactions)).
			Msg("Block produced")

		if n.p2pNode != nil {
			if err := n.p2pNode.BroadcastBlock(blk); err != nil {
				n.logger.Error().Err(err).Msg("Failed to broadcast block")
			}
		}
	}
}

// ── P2P providers & handlers ────────────────────────────────────────

// maxHeadersPerReply and maxBlocksPerReply cap how many headers and
// blocks one sync reply carries. They use the same values as the p2p
// package's per-request constants; the p2p side does not itself reject
// larger replies.
const (
	maxHeadersPerReply = 2000
	maxBlocksPerReply  = 500
)

// provideHeaders answers a peer's getheaders request: up to
// maxHeadersPerReply headers immediately following fromHash. A zero
// hash means "from genesis".
func (n *Node) provideHeaders(fromHash types.Hash) []*block.Header {
	fromHeight := uint64(0)
	if !fromHash.IsZero() {
		blk, err := n.ch.GetBlock(fromHash)
		if err != nil {
			return nil
		}
		fromHeight = blk.Header.Height + 1
	}

	var headers []*block.Header
	for h := fromHeight; len(headers) < maxHeadersPerReply; h++ {
		blk, err := n.ch.GetBlockByHeight(h)
		if err != nil {
			break
		}
		headers = append(headers, blk.Header)
	}
	return headers
}

// provideBlocks answers a peer's getblocks request: up to
// maxBlocksPerReply full blocks starting at fromHeight.
func (n *Node) provideBlocks(fromHeight uint64) []*block.Block {
	var blocks []*block.Block
	for h := fromHeight; len(blocks) < maxBlocksPerReply; h++ {
		blk, err := n.ch.GetBlockByHeight(h)
		if err != nil {
			break
		}
		blocks = append(blocks, blk)
	}
	return blocks
}

// admitSyncedBlock appends a block received while a peer sync is in
// progress. A mismatch against the (possibly already-caught-up) local
// tip is not treated as a hard failure.
func (n *Node) admitSyncedBlock(blk *block.Block) error {
	if err := n.ch.AppendBlock(blk); err != nil {
		if errors.Is(err, chain.ErrPrevHashMismatch) || errors.Is(err, chain.ErrInvalidHeight) {
			return nil
		}
		return err
	}
	return nil
}

// provideMempool answers a peer's mempool request with every pending
// transaction.
func (n *Node) provideMempool() []*tx.Transaction {
	return n.pool.SelectForBlock(0)
}

// provideFullChain answers a request_full_blockchain with every block
// from genesis to the current tip.
func (n *Node) provideFullChain() []*block.Block {
	height := n.ch.Height()
	blocks := make([]*block.Block, 0, height+1)
	for h := uint64(0); h <= height; h++ {
		blk, err := n.ch.GetBlockByHeight(h)
		if err != nil {
			break
		}
		blocks = append(blocks, blk)
	}
	return blocks
}

// chainInfo answers a request_blockchain_info with the current tip summary.
func (n *Node) chainInfo() p2p.ChainInfo {
	difficulty, err := n.ch.Difficulty()
	if err != nil {
		difficulty = 0
	}
	return p2p.ChainInfo{
		Height:     n.ch.Height(),
		BestHash:   n.ch.TipHash(),
		Difficulty: difficulty,
		Supply:     n.ch.Supply(),
	}
}

// handleGossipBlock returns the handler for blocks received over the
// new_block gossip topic: unmarshal, append, and relay.
func (n *Node) handleGossipBlock(p2pNode *p2p.Node) func(peer.ID, []byte) {
	return func(from peer.ID, data []byte) {
		var env p2p.NewBlockBroadcast
		if err := json.Unmarshal(data, &env); err != nil || env.Block == nil {
			n.logger.Debug().Str("peer", from.String()).Msg("Malformed block broadcast, dropping")
			return
		}
		blk := env.Block

		if err := n.ch.AppendBlock(blk); err != nil {
			if errors.Is(err, chain.ErrInvalidHeight) || errors.Is(err, chain.ErrPrevHashMismatch) {
				// Peer is ahead of or behind us; the handshake-driven
				// sync state machine reconciles this on its own.
				n.logger.Debug().Uint64("height", blk.Header.Height).Msg("Block does not extend local tip, ignoring")
				return
			}
			n.logger.Debug().Err(err).Uint64("height", blk.Header.Height).Msg("Rejected gossip block")
			return
		}

		n.logger.Info().
			Uint64("height", blk.Header.Height).
			Str("hash", blk.Hash().String()).
			Int("txs", len(blk.Transactions)).
			Msg("Block received and applied")

		if err := p2pNode.RelayBlock(blk); err != nil {
			n.logger.Debug().Err(err).Msg("Failed to relay block")
		}
	}
}

// handleGossipTx returns the handler for transactions received over
// the new_transaction gossip topic: unmarshal, admit to the mempool,
// and relay.
func (n *Node) handleGossipTx(p2pNode *p2p.Node) func(peer.ID, []byte) {
	return func(from peer.ID, data []byte) {
		var env p2p.NewTransactionBroadcast
		if err := json.Unmarshal(data, &env); err != nil || env.Transaction == nil {
			n.logger.Debug().Str("peer", from.String()).Msg("Malformed transaction broadcast, dropping")
			return
		}
		t := env.Transaction

		if err := n.ch.MempoolAdmit(t); err != nil {
			if errors.Is(err, mempool.ErrAlreadyExists) {
				return
			}
			n.logger.Debug().Err(err).Msg("Rejected gossip transaction")
			return
		}

		n.logger.Info().Str("tx", t.ID.String()).Msg("Transaction added to mempool")

		if err := p2pNode.RelayTx(t); err != nil {
			n.logger.Debug().Err(err).Msg("Failed to relay transaction")
		}
	}
}
