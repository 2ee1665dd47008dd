// Command gsc-cli is a command-line client for interacting with a gscd node.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Klingon-tech/klingnet-chain/internal/rpc"
	"golang.org/x/term"
)

// client is a minimal JSON-RPC 2.0 HTTP client for the node's RPC surface.
type client struct {
	url string
	hc  *http.Client
}

func newClient(url string) *client {
	return &client{url: url, hc: &http.Client{Timeout: 30 * time.Second}}
}

func (c *client) call(method string, params interface{}, result interface{}) error {
	body, err := json.Marshal(rpc.Request{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return err
	}
	resp, err := c.hc.Post(c.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out rpc.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	if out.Error != nil {
		return fmt.Errorf("%s (code %d)", out.Error.Message, out.Error.Code)
	}
	if result == nil {
		return nil
	}
	data, err := json.Marshal(out.Result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	rpcURL := "http://127.0.0.1:8545"

	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	c := newClient(rpcURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "status":
		cmdStatus(c)
	case "block":
		cmdBlock(c, cmdArgs)
	case "tx":
		cmdTx(c, cmdArgs)
	case "balance":
		cmdBalance(c, cmdArgs)
	case "mempool":
		cmdMempool(c)
	case "peers":
		cmdPeers(c)
	case "wallet":
		cmdWallet(c, cmdArgs)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`gsc-cli - command-line client for gscd

Usage:
  gsc-cli [--rpc <url>] <command> [args]

Commands:
  status                            Show chain height, tip, and peer count
  block <hash|height>                Show a block
  tx <hash>                          Show a confirmed transaction
  balance <address>                  Show an account's ledger balance
  mempool                            Show pending transaction count
  peers                              List connected peers
  wallet create <name>               Create a new wallet (encrypted if a passphrase is given)
  wallet list                        List wallet names
  wallet balance <name>               Show a wallet's balance
  wallet address <name>                Show a wallet's master address
  wallet newaddress <name> [label]     Generate a new sub-address
  wallet addresses <name>              List a wallet's addresses
  wallet send <name> <to> <amount> [fee]  Send from a wallet
  wallet exportkey <name>              Print a wallet's raw private key
  wallet history <name> [limit] [offset]  Show a wallet's transaction history
`)
}

// ── status ───────────────────────────────────────────────────────────────

func cmdStatus(c *client) {
	var info rpc.ChainInfoResult
	if err := c.call("chain_getInfo", nil, &info); err != nil {
		fatal("chain_getInfo: %v", err)
	}
	fmt.Printf("Chain:      %s\n", info.ChainName)
	fmt.Printf("Height:     %d\n", info.Height)
	fmt.Printf("Tip:        %s\n", info.TipHash)
	fmt.Printf("Difficulty: %d\n", info.Difficulty)
	fmt.Printf("Supply:     %s\n", formatAmount(info.Supply))

	var peers rpc.PeerInfoResult
	if err := c.call("net_getPeerInfo", nil, &peers); err == nil {
		fmt.Printf("Peers:      %d\n", peers.Count)
	}
}

// ── block ────────────────────────────────────────────────────────────────

func cmdBlock(c *client, args []string) {
	if len(args) < 1 {
		fatal("Usage: gsc-cli block <hash|height>")
	}

	var blk rpc.BlockResult
	if height, err := strconv.ParseUint(args[0], 10, 64); err == nil {
		if err := c.call("chain_getBlockByHeight", rpc.HeightParam{Height: height}, &blk); err != nil {
			fatal("chain_getBlockByHeight: %v", err)
		}
	} else {
		if err := c.call("chain_getBlockByHash", rpc.HashParam{Hash: args[0]}, &blk); err != nil {
			fatal("chain_getBlockByHash: %v", err)
		}
	}

	fmt.Printf("Hash:         %s\n", blk.Hash)
	fmt.Printf("Height:       %d\n", blk.Header.Height)
	fmt.Printf("Prev:         %s\n", blk.Header.PrevHash)
	fmt.Printf("Timestamp:    %s\n", time.Unix(int64(blk.Header.Timestamp), 0).UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Printf("Transactions: %d\n", len(blk.Transactions))
	for i, t := range blk.Transactions {
		fmt.Printf("  [%d] %s: %s -> %s (%s)\n", i, t.Hash, t.Sender, t.Receiver, formatAmount(t.Amount))
	}
}

// ── tx ───────────────────────────────────────────────────────────────────

func cmdTx(c *client, args []string) {
	if len(args) < 1 {
		fatal("Usage: gsc-cli tx <hash>")
	}
	var t rpc.TxResult
	if err := c.call("chain_getTransaction", rpc.HashParam{Hash: args[0]}, &t); err != nil {
		fatal("chain_getTransaction: %v", err)
	}
	fmt.Printf("Hash:      %s\n", t.Hash)
	fmt.Printf("Sender:    %s\n", t.Sender)
	fmt.Printf("Receiver:  %s\n", t.Receiver)
	fmt.Printf("Amount:    %s\n", formatAmount(t.Amount))
	fmt.Printf("Fee:       %s\n", formatAmount(t.Fee))
	fmt.Printf("Timestamp: %s\n", time.Unix(t.Timestamp, 0).UTC().Format("2006-01-02 15:04:05 UTC"))
}

// ── balance ──────────────────────────────────────────────────────────────

func cmdBalance(c *client, args []string) {
	if len(args) < 1 {
		fatal("Usage: gsc-cli balance <address>")
	}
	var bal rpc.BalanceResult
	if err := c.call("account_getBalance", rpc.AddressParam{Address: args[0]}, &bal); err != nil {
		fatal("account_getBalance: %v", err)
	}
	fmt.Printf("%s: %s\n", bal.Address, formatAmount(bal.Balance))
}

// ── mempool ──────────────────────────────────────────────────────────────

func cmdMempool(c *client) {
	var info rpc.MempoolInfoResult
	if err := c.call("mempool_getInfo", nil, &info); err != nil {
		fatal("mempool_getInfo: %v", err)
	}
	fmt.Printf("Pending transactions: %d\n", info.Count)
}

// ── peers ────────────────────────────────────────────────────────────────

func cmdPeers(c *client) {
	var peers rpc.PeerInfoResult
	if err := c.call("net_getPeerInfo", nil, &peers); err != nil {
		fatal("net_getPeerInfo: %v", err)
	}
	fmt.Printf("Connected peers: %d\n", peers.Count)
	for _, p := range peers.Peers {
		fmt.Printf("  %s\n", p.ID)
	}
}

// ── wallet ───────────────────────────────────────────────────────────────

func cmdWallet(c *client, args []string) {
	if len(args) < 1 {
		fatal("Usage: gsc-cli wallet <create|list|balance|address|newaddress|addresses|send|exportkey|history> ...")
	}
	sub := args[0]
	rest := args[1:]

	switch sub {
	case "create":
		cmdWalletCreate(c, rest)
	case "list":
		cmdWalletList(c)
	case "balance":
		cmdWalletBalance(c, rest)
	case "address", "addresses":
		cmdWalletAddresses(c, rest)
	case "newaddress":
		cmdWalletNewAddress(c, rest)
	case "send":
		cmdWalletSend(c, rest)
	case "exportkey":
		cmdWalletExportKey(c, rest)
	case "history":
		cmdWalletHistory(c, rest)
	default:
		fatal("unknown wallet subcommand %q", sub)
	}
}

func cmdWalletCreate(c *client, args []string) {
	if len(args) < 1 {
		fatal("Usage: gsc-cli wallet create <name>")
	}
	pw := mustReadPassword("New wallet passphrase (empty for unencrypted): ")

	var result rpc.WalletCreateResult
	if err := c.call("wallet_create", rpc.WalletCreateParam{Name: args[0], Password: string(pw)}, &result); err != nil {
		fatal("wallet_create: %v", err)
	}
	fmt.Printf("Wallet %q created.\n", args[0])
	fmt.Printf("Address: %s\n", result.Address)
	if result.BackupSeed != "" {
		fmt.Printf("Backup seed (write this down; it is kept in the wallet file only while the wallet is unencrypted): %s\n", result.BackupSeed)
	}
}

func cmdWalletList(c *client) {
	var result rpc.WalletListResult
	if err := c.call("wallet_list", nil, &result); err != nil {
		fatal("wallet_list: %v", err)
	}
	for _, name := range result.Wallets {
		fmt.Println(name)
	}
}

func cmdWalletBalance(c *client, args []string) {
	if len(args) < 1 {
		fatal("Usage: gsc-cli wallet balance <name>")
	}
	pw := mustReadPassword("Passphrase: ")

	var result rpc.WalletBalanceResult
	if err := c.call("wallet_getBalance", rpc.WalletOpenParam{Name: args[0], Password: string(pw)}, &result); err != nil {
		fatal("wallet_getBalance: %v", err)
	}
	fmt.Printf("%s: %s\n", result.Address, formatAmount(result.Balance))
}

func cmdWalletAddresses(c *client, args []string) {
	if len(args) < 1 {
		fatal("Usage: gsc-cli wallet addresses <name>")
	}
	pw := mustReadPassword("Passphrase: ")

	var result rpc.WalletAddressListResult
	if err := c.call("wallet_listAddresses", rpc.WalletOpenParam{Name: args[0], Password: string(pw)}, &result); err != nil {
		fatal("wallet_listAddresses: %v", err)
	}
	fmt.Printf("Master: %s\n", result.MasterAddress)
	for _, a := range result.Addresses {
		label := a.Label
		if label == "" {
			label = "(no label)"
		}
		fmt.Printf("  %s  %s\n", a.Address, label)
	}
}

func cmdWalletNewAddress(c *client, args []string) {
	if len(args) < 1 {
		fatal("Usage: gsc-cli wallet newaddress <name> [label]")
	}
	label := ""
	if len(args) > 1 {
		label = args[1]
	}
	pw := mustReadPassword("Passphrase: ")

	var result rpc.WalletAddressResult
	if err := c.call("wallet_newAddress", rpc.WalletNewAddressParam{Name: args[0], Password: string(pw), Label: label}, &result); err != nil {
		fatal("wallet_newAddress: %v", err)
	}
	fmt.Printf("%s  %s\n", result.Address, result.Label)
}

func cmdWalletSend(c *client, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	fs.Parse(args)
	positional := fs.Args()
	if len(positional) < 3 {
		fatal("Usage: gsc-cli wallet send <name> <to> <amount> [fee]")
	}
	name, to := positional[0], positional[1]
	amount, err := strconv.ParseInt(positional[2], 10, 64)
	if err != nil {
		fatal("invalid amount: %v", err)
	}
	var fee int64
	if len(positional) > 3 {
		fee, err = strconv.ParseInt(positional[3], 10, 64)
		if err != nil {
			fatal("invalid fee: %v", err)
		}
	}
	pw := mustReadPassword("Passphrase: ")

	var result rpc.WalletSendResult
	if err := c.call("wallet_send", rpc.WalletSendParam{Name: name, Password: string(pw), To: to, Amount: amount, Fee: fee}, &result); err != nil {
		fatal("wallet_send: %v", err)
	}
	fmt.Printf("Transaction submitted: %s\n", result.TxHash)
}

func cmdWalletExportKey(c *client, args []string) {
	if len(args) < 1 {
		fatal("Usage: gsc-cli wallet exportkey <name>")
	}
	pw := mustReadPassword("Passphrase: ")

	var result rpc.WalletExportKeyResult
	if err := c.call("wallet_exportKey", rpc.WalletExportKeyParam{Name: args[0], Password: string(pw)}, &result); err != nil {
		fatal("wallet_exportKey: %v", err)
	}
	fmt.Printf("Address:     %s\n", result.Address)
	fmt.Printf("Private key: %s\n", result.PrivateKey)
}

func cmdWalletHistory(c *client, args []string) {
	if len(args) < 1 {
		fatal("Usage: gsc-cli wallet history <name> [limit] [offset]")
	}
	limit, offset := 50, 0
	if len(args) > 1 {
		limit, _ = strconv.Atoi(args[1])
	}
	if len(args) > 2 {
		offset, _ = strconv.Atoi(args[2])
	}
	pw := mustReadPassword("Passphrase: ")

	var result rpc.WalletGetHistoryResult
	if err := c.call("wallet_getHistory", rpc.WalletGetHistoryParam{Name: args[0], Password: string(pw), Limit: limit, Offset: offset}, &result); err != nil {
		fatal("wallet_getHistory: %v", err)
	}
	fmt.Printf("Total: %d\n", result.Total)
	for _, e := range result.Entries {
		fmt.Printf("  [%s] %-9s %s at height %d\n", e.TxHash, e.Type, formatAmount(e.Amount), e.Height)
	}
}

// ── helpers ──────────────────────────────────────────────────────────────

// formatAmount renders an integer ledger amount.
func formatAmount(units int64) string {
	return strconv.FormatInt(units, 10)
}

func mustReadPassword(prompt string) []byte {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fatal("read passphrase: %v", err)
	}
	return pw
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
