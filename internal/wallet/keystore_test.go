package wallet

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

func testKeystore(t *testing.T) *Keystore {
	t.Helper()
	dir := t.TempDir()
	ks, err := NewKeystore(dir)
	if err != nil {
		t.Fatalf("NewKeystore() error: %v", err)
	}
	return ks
}

func TestKeystore_CreateUnencrypted(t *testing.T) {
	ks := testKeystore(t)

	w, err := ks.Create("mywallet", "")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if w.Encrypted {
		t.Error("wallet created without a passphrase should be unencrypted")
	}
	if w.MasterAddress == "" {
		t.Error("Create() should populate a master address")
	}
	if w.BackupSeed == "" {
		t.Error("Create() should populate a backup seed")
	}

	loaded, err := ks.Open("mywallet", "")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if loaded.MasterAddress != w.MasterAddress {
		t.Error("reloaded wallet has a different master address")
	}
	if !bytes.Equal(loaded.MasterPrivateKey, w.MasterPrivateKey) {
		t.Error("reloaded wallet has a different master private key")
	}
	if loaded.BackupSeed != w.BackupSeed {
		t.Error("reloaded unencrypted wallet should keep its backup seed")
	}
}

func TestKeystore_CreateEncrypted(t *testing.T) {
	ks := testKeystore(t)

	w, err := ks.Create("secured", "correct horse")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if !w.Encrypted {
		t.Error("wallet created with a passphrase should be encrypted")
	}

	loaded, err := ks.Open("secured", "correct horse")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if !bytes.Equal(loaded.MasterPrivateKey, w.MasterPrivateKey) {
		t.Error("reloaded wallet has a different master private key")
	}
}

func TestKeystore_OpenWrongPassphrase(t *testing.T) {
	ks := testKeystore(t)
	ks.Create("secured", "correct")

	if _, err := ks.Open("secured", "wrong"); err == nil {
		t.Error("Open() with the wrong passphrase should fail")
	}
}

func TestKeystore_CreateDuplicate(t *testing.T) {
	ks := testKeystore(t)

	if _, err := ks.Create("dup", ""); err != nil {
		t.Fatalf("first Create() error: %v", err)
	}
	if _, err := ks.Create("dup", ""); err == nil {
		t.Error("second Create() should fail for a duplicate name")
	}
}

func TestKeystore_OpenNonexistent(t *testing.T) {
	ks := testKeystore(t)

	if _, err := ks.Open("doesnotexist", ""); err == nil {
		t.Error("Open() for a nonexistent wallet should fail")
	}
}

func TestKeystore_List(t *testing.T) {
	ks := testKeystore(t)

	names, err := ks.ListWallets()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected 0 wallets, got %d", len(names))
	}

	ks.Create("alpha", "")
	ks.Create("beta", "")

	names, err = ks.ListWallets()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("expected 2 wallets, got %d", len(names))
	}
}

func TestKeystore_Delete(t *testing.T) {
	ks := testKeystore(t)
	ks.Create("todelete", "")

	if err := ks.Delete("todelete"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := ks.Open("todelete", ""); err == nil {
		t.Error("wallet should be deleted")
	}
}

func TestKeystore_DeleteNonexistent(t *testing.T) {
	ks := testKeystore(t)

	if err := ks.Delete("ghost"); err == nil {
		t.Error("Delete() for a nonexistent wallet should fail")
	}
}

func TestKeystore_FilePermissions(t *testing.T) {
	ks := testKeystore(t)
	ks.Create("secure", "")

	path := filepath.Join(ks.dir, "secure.wallet")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}

	if perm := info.Mode().Perm(); perm&0077 != 0 {
		t.Errorf("wallet file should be 0600, got %o", perm)
	}
}

func TestKeystore_NewAddressPersists(t *testing.T) {
	ks := testKeystore(t)
	w, _ := ks.Create("wallet", "")

	addr, err := w.NewAddress("savings")
	if err != nil {
		t.Fatalf("NewAddress() error: %v", err)
	}
	if err := ks.Save(w, ""); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := ks.Open("wallet", "")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if len(loaded.Addresses) != 1 {
		t.Fatalf("expected 1 sub-address, got %d", len(loaded.Addresses))
	}
	if loaded.Addresses[0].Address != addr {
		t.Error("reloaded sub-address does not match")
	}
	if loaded.Addresses[0].Label != "savings" {
		t.Errorf("label = %q, want %q", loaded.Addresses[0].Label, "savings")
	}
	if len(loaded.Addresses[0].PrivateKey) != 32 {
		t.Errorf("sub-address private key length = %d, want 32", len(loaded.Addresses[0].PrivateKey))
	}
}

func TestKeystore_NewAddressIndependentOfMaster(t *testing.T) {
	ks := testKeystore(t)
	w, _ := ks.Create("wallet", "")

	if _, err := w.NewAddress("one"); err != nil {
		t.Fatalf("NewAddress() error: %v", err)
	}
	if bytes.Equal(w.Addresses[0].PrivateKey, w.MasterPrivateKey) {
		t.Error("sub-address key should be independently generated, not derived from the master key")
	}
}

func TestKeystore_ContactsPersist(t *testing.T) {
	ks := testKeystore(t)
	w, _ := ks.Create("wallet", "")

	w.AddContact("GSC1deadbeefdeadbeefdeadbeefdead", "alice")
	if err := ks.Save(w, ""); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := ks.Open("wallet", "")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	contacts := loaded.ListContacts()
	if len(contacts) != 1 || contacts[0].Label != "alice" {
		t.Error("contact not persisted correctly")
	}
}

func TestKeystore_Encrypt_PromotesUnencryptedWallet(t *testing.T) {
	ks := testKeystore(t)
	w, _ := ks.Create("wallet", "")
	w.NewAddress("one")
	ks.Save(w, "")

	if err := ks.Encrypt(w, "new-passphrase"); err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if !w.Encrypted {
		t.Error("wallet should be marked encrypted after Encrypt()")
	}

	loaded, err := ks.Open("wallet", "new-passphrase")
	if err != nil {
		t.Fatalf("Open() after Encrypt() error: %v", err)
	}
	if !bytes.Equal(loaded.MasterPrivateKey, w.MasterPrivateKey) {
		t.Error("master key mismatch after encrypting an existing wallet")
	}
	if len(loaded.Addresses) != 1 {
		t.Fatal("sub-addresses should survive encryption")
	}
	if loaded.BackupSeed != "" {
		t.Error("backup seed should not be persisted once the wallet is encrypted")
	}
}

func TestKeystore_Encrypt_AlreadyEncrypted(t *testing.T) {
	ks := testKeystore(t)
	w, _ := ks.Create("wallet", "pass")

	if err := ks.Encrypt(w, "other"); err == nil {
		t.Error("Encrypt() on an already-encrypted wallet should fail")
	}
}

func TestKeystore_ChangePassphrase(t *testing.T) {
	ks := testKeystore(t)
	w, _ := ks.Create("wallet", "old-pass")

	if err := ks.ChangePassphrase(w, "old-pass", "new-pass"); err != nil {
		t.Fatalf("ChangePassphrase() error: %v", err)
	}

	if _, err := ks.Open("wallet", "old-pass"); err == nil {
		t.Error("old passphrase should no longer open the wallet")
	}
	loaded, err := ks.Open("wallet", "new-pass")
	if err != nil {
		t.Fatalf("Open() with new passphrase error: %v", err)
	}
	if !bytes.Equal(loaded.MasterPrivateKey, w.MasterPrivateKey) {
		t.Error("master key mismatch after ChangePassphrase()")
	}
}

func TestKeystore_ChangePassphrase_WrongOld(t *testing.T) {
	ks := testKeystore(t)
	w, _ := ks.Create("wallet", "old-pass")

	if err := ks.ChangePassphrase(w, "not-it", "new-pass"); err == nil {
		t.Error("ChangePassphrase() with the wrong old passphrase should fail")
	}
}

func TestKeystore_BackupAndRestore(t *testing.T) {
	ks := testKeystore(t)
	w, _ := ks.Create("wallet", "pass")

	backupPath := filepath.Join(t.TempDir(), "wallet.backup")
	if err := ks.Backup("wallet", backupPath); err != nil {
		t.Fatalf("Backup() error: %v", err)
	}

	if err := ks.Restore(backupPath, "restored"); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}

	loaded, err := ks.Open("restored", "pass")
	if err != nil {
		t.Fatalf("Open() restored wallet error: %v", err)
	}
	if loaded.MasterAddress != w.MasterAddress {
		t.Error("restored wallet has a different master address")
	}
}

func TestKeystore_Restore_NameAlreadyExists(t *testing.T) {
	ks := testKeystore(t)
	ks.Create("wallet", "pass")
	ks.Create("taken", "")

	backupPath := filepath.Join(t.TempDir(), "wallet.backup")
	ks.Backup("wallet", backupPath)

	if err := ks.Restore(backupPath, "taken"); err == nil {
		t.Error("Restore() into an existing wallet name should fail")
	}
}

func TestKeystore_RefreshBalance(t *testing.T) {
	ks := testKeystore(t)
	w, _ := ks.Create("wallet", "")

	w.RefreshBalance(func(types.Address) int64 { return 42 })
	if w.Balance != 42 {
		t.Errorf("Balance = %d, want 42", w.Balance)
	}
}
