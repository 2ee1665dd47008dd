package rpc

import (
	"testing"

	"github.com/Klingon-tech/klingnet-chain/internal/storage"
)

func newTestIndex() *WalletTxIndex {
	return NewWalletTxIndex(storage.NewMemory())
}

func TestWalletTxIndex_PutAndQuery(t *testing.T) {
	idx := newTestIndex()

	entries := []TxHistoryEntry{
		{TxHash: "aaa", Type: "coinbase", Amount: 100, Height: 0},
		{TxHash: "bbb", Type: "received", Amount: 200, Height: 0},
	}

	if err := idx.PutEntries("w1", 0, entries); err != nil {
		t.Fatalf("put entries: %v", err)
	}

	meta := indexMeta{LastHeight: 0, Count: 2}
	if err := idx.setMeta("w1", meta); err != nil {
		t.Fatalf("set meta: %v", err)
	}

	result, total, err := idx.Query("w1", 50, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if len(result) != 2 {
		t.Errorf("entries = %d, want 2", len(result))
	}
}

func TestWalletTxIndex_Ordering(t *testing.T) {
	idx := newTestIndex()

	if err := idx.PutEntries("w1", 0, []TxHistoryEntry{
		{TxHash: "genesis", Type: "coinbase", Height: 0},
	}); err != nil {
		t.Fatal(err)
	}
	if err := idx.PutEntries("w1", 5, []TxHistoryEntry{
		{TxHash: "block5", Type: "coinbase", Height: 5},
	}); err != nil {
		t.Fatal(err)
	}
	if err := idx.PutEntries("w1", 10, []TxHistoryEntry{
		{TxHash: "block10", Type: "sent", Height: 10},
	}); err != nil {
		t.Fatal(err)
	}

	result, total, err := idx.Query("w1", 50, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}

	if result[0].TxHash != "block10" {
		t.Errorf("first entry = %s, want block10", result[0].TxHash)
	}
	if result[1].TxHash != "block5" {
		t.Errorf("second entry = %s, want block5", result[1].TxHash)
	}
	if result[2].TxHash != "genesis" {
		t.Errorf("third entry = %s, want genesis", result[2].TxHash)
	}
}

func TestWalletTxIndex_Pagination(t *testing.T) {
	idx := newTestIndex()

	for h := uint64(0); h < 5; h++ {
		if err := idx.PutEntries("w1", h, []TxHistoryEntry{
			{TxHash: "tx" + string(rune('A'+h)), Type: "coinbase", Height: h},
		}); err != nil {
			t.Fatal(err)
		}
	}

	page1, total, err := idx.Query("w1", 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page1) != 2 {
		t.Errorf("page1 len = %d, want 2", len(page1))
	}

	page2, total2, err := idx.Query("w1", 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total2 != 5 {
		t.Errorf("total changed: %d vs %d", total, total2)
	}
	if len(page2) != 2 {
		t.Errorf("page2 len = %d, want 2", len(page2))
	}

	page3, _, err := idx.Query("w1", 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(page3) != 1 {
		t.Errorf("page3 len = %d, want 1", len(page3))
	}

	page4, _, err := idx.Query("w1", 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page4) != 0 {
		t.Errorf("page4 len = %d, want 0", len(page4))
	}
}

func TestWalletTxIndex_DeleteAbove(t *testing.T) {
	idx := newTestIndex()

	for _, h := range []uint64{0, 5, 10} {
		if err := idx.PutEntries("w1", h, []TxHistoryEntry{
			{TxHash: "tx", Type: "coinbase", Height: h},
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := idx.setMeta("w1", indexMeta{LastHeight: 10, Count: 3}); err != nil {
		t.Fatal(err)
	}

	if err := idx.DeleteAbove("w1", 5); err != nil {
		t.Fatalf("delete above: %v", err)
	}

	result, total, err := idx.Query("w1", 50, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}

	for _, e := range result {
		if e.Height > 5 {
			t.Errorf("entry at height %d should have been deleted", e.Height)
		}
	}

	meta, _ := idx.GetMeta("w1")
	if meta.LastHeight != 5 {
		t.Errorf("meta.LastHeight = %d, want 5", meta.LastHeight)
	}
	if meta.Count != 2 {
		t.Errorf("meta.Count = %d, want 2", meta.Count)
	}
}

func TestWalletTxIndex_ClearWallet(t *testing.T) {
	idx := newTestIndex()

	if err := idx.PutEntries("w1", 0, []TxHistoryEntry{
		{TxHash: "tx1", Type: "coinbase"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := idx.setMeta("w1", indexMeta{LastHeight: 0, Count: 1}); err != nil {
		t.Fatal(err)
	}

	if err := idx.ClearWallet("w1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	result, total, err := idx.Query("w1", 50, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0 after clear", total)
	}
	if len(result) != 0 {
		t.Errorf("entries = %d, want 0 after clear", len(result))
	}

	meta, _ := idx.GetMeta("w1")
	if meta.Count != 0 {
		t.Errorf("meta count = %d, want 0", meta.Count)
	}
}

func TestWalletTxIndex_MultipleWallets(t *testing.T) {
	idx := newTestIndex()

	if err := idx.PutEntries("alice", 0, []TxHistoryEntry{
		{TxHash: "alice-tx", Type: "coinbase"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := idx.PutEntries("bob", 0, []TxHistoryEntry{
		{TxHash: "bob-tx", Type: "received"},
	}); err != nil {
		t.Fatal(err)
	}

	alice, total, _ := idx.Query("alice", 50, 0)
	if total != 1 {
		t.Errorf("alice total = %d, want 1", total)
	}
	if alice[0].TxHash != "alice-tx" {
		t.Errorf("alice tx = %s, want alice-tx", alice[0].TxHash)
	}

	bob, total, _ := idx.Query("bob", 50, 0)
	if total != 1 {
		t.Errorf("bob total = %d, want 1", total)
	}
	if bob[0].TxHash != "bob-tx" {
		t.Errorf("bob tx = %s, want bob-tx", bob[0].TxHash)
	}
}

func TestWalletTxIndex_MetaFresh(t *testing.T) {
	idx := newTestIndex()

	meta, err := idx.GetMeta("nonexistent")
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if meta.LastHeight != 0 || meta.Count != 0 {
		t.Errorf("fresh meta = %+v, want zero", meta)
	}
}

func TestWalletTxIndex_IndexBlocksClassifies(t *testing.T) {
	// classifyForWallet and its call site are exercised from the RPC
	// and handler tests; here we just confirm a classified entry carries
	// through PutEntries/Query intact.
	idx := newTestIndex()
	entries := []TxHistoryEntry{
		{TxHash: "only-relevant", Type: "sent", Amount: 42, To: "addr-b", From: "addr-a"},
	}
	if err := idx.PutEntries("w1", 3, entries); err != nil {
		t.Fatal(err)
	}
	result, total, err := idx.Query("w1", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || result[0].Amount != 42 {
		t.Errorf("unexpected query result: %+v", result)
	}
}
