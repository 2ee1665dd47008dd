package wallet

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// walletFile is the on-disk JSON format for a wallet.
type walletFile struct {
	Name             string              `json:"name"`
	Created          time.Time           `json:"created"`
	Version          int                 `json:"version"`
	MasterAddress    types.Address       `json:"master_address"`
	MasterPrivateKey string              `json:"master_private_key"`
	MasterPublicKey  string              `json:"master_public_key"`
	Balance          int64               `json:"balance"`
	Addresses        []addressFileRecord `json:"addresses"`
	SendingAddresses []contactFileRecord `json:"sending_addresses"`
	Encrypted        bool                `json:"encrypted"`
	Salt             string              `json:"salt,omitempty"`
	BackupSeed       string              `json:"backup_seed,omitempty"`
}

type addressFileRecord struct {
	Address    types.Address `json:"address"`
	PrivateKey string        `json:"private_key"`
	Label      string        `json:"label"`
	Created    time.Time     `json:"created"`
}

type contactFileRecord struct {
	Address types.Address `json:"address"`
	Label   string        `json:"label"`
	Added   time.Time     `json:"added"`
}

// Keystore manages wallet files on disk, one file per wallet name.
type Keystore struct {
	dir string
}

// NewKeystore opens a keystore rooted at dir, creating it if absent.
func NewKeystore(dir string) (*Keystore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{dir: dir}, nil
}

func (ks *Keystore) walletPath(name string) string {
	return filepath.Join(ks.dir, name+".wallet")
}

// Create makes a new wallet named name with a fresh master key and
// backup phrase. If passphrase is non-empty, the wallet is encrypted
// immediately; otherwise it is written in plaintext.
func (ks *Keystore) Create(name, passphrase string) (*Wallet, error) {
	path := ks.walletPath(name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("wallet %q already exists", name)
	}

	w, err := newWallet(name)
	if err != nil {
		return nil, err
	}
	if passphrase != "" {
		if err := ks.encryptInPlace(w, passphrase); err != nil {
			return nil, err
		}
	}
	if err := ks.save(w, passphrase); err != nil {
		return nil, err
	}
	return w, nil
}

// Open loads a wallet by name, decrypting it if it is encrypted.
// passphrase is ignored for an unencrypted wallet.
func (ks *Keystore) Open(name, passphrase string) (*Wallet, error) {
	wf, err := ks.readFile(ks.walletPath(name))
	if err != nil {
		return nil, err
	}

	w := &Wallet{
		Name:      wf.Name,
		Created:   wf.Created,
		Version:   wf.Version,
		Balance:   wf.Balance,
		Encrypted: wf.Encrypted,
	}

	var key []byte
	if wf.Encrypted {
		salt, err := base64.StdEncoding.DecodeString(wf.Salt)
		if err != nil {
			return nil, fmt.Errorf("decode salt: %w", err)
		}
		w.salt = salt
		key = deriveKey([]byte(passphrase), salt, DefaultParams())
		defer zero(key)
	}

	masterPriv, err := decodeField(wf.MasterPrivateKey, wf.Encrypted, key)
	if err != nil {
		return nil, fmt.Errorf("decode master private key: %w", err)
	}
	w.MasterPrivateKey = masterPriv
	w.MasterAddress = wf.MasterAddress

	pubBytes, err := hex.DecodeString(wf.MasterPublicKey)
	if err != nil {
		return nil, fmt.Errorf("decode master public key: %w", err)
	}
	copy(w.MasterPublicKey[:], pubBytes)

	for _, a := range wf.Addresses {
		priv, err := decodeField(a.PrivateKey, wf.Encrypted, key)
		if err != nil {
			return nil, fmt.Errorf("decode address %s private key: %w", a.Address, err)
		}
		w.Addresses = append(w.Addresses, AddressRecord{
			Address:    a.Address,
			PrivateKey: priv,
			Label:      a.Label,
			Created:    a.Created,
		})
	}
	for _, c := range wf.SendingAddresses {
		w.Contacts = append(w.Contacts, Contact{Address: c.Address, Label: c.Label, Added: c.Added})
	}
	w.BackupSeed = wf.BackupSeed

	return w, nil
}

// decodeField decrypts a stored field if the wallet is encrypted,
// otherwise decodes it as plain hex.
func decodeField(stored string, encrypted bool, key []byte) ([]byte, error) {
	if encrypted {
		ciphertext, err := base64.StdEncoding.DecodeString(stored)
		if err != nil {
			return nil, fmt.Errorf("decode ciphertext: %w", err)
		}
		return open(key, ciphertext)
	}
	return hex.DecodeString(stored)
}

// encodeField encrypts a field if key is non-nil, otherwise encodes
// it as plain hex.
func encodeField(raw []byte, key []byte) (string, error) {
	if key == nil {
		return hex.EncodeToString(raw), nil
	}
	ciphertext, err := seal(key, raw)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Save persists w to disk. passphrase must match the wallet's current
// encryption state (ignored if the wallet is unencrypted).
func (ks *Keystore) Save(w *Wallet, passphrase string) error {
	return ks.save(w, passphrase)
}

func (ks *Keystore) save(w *Wallet, passphrase string) error {
	var key []byte
	if w.Encrypted {
		if len(w.salt) == 0 {
			return fmt.Errorf("wallet %q is marked encrypted but has no salt", w.Name)
		}
		key = deriveKey([]byte(passphrase), w.salt, DefaultParams())
		defer zero(key)
	}

	masterPriv, err := encodeField(w.MasterPrivateKey, key)
	if err != nil {
		return fmt.Errorf("encode master private key: %w", err)
	}

	wf := walletFile{
		Name:             w.Name,
		Created:          w.Created,
		Version:          w.Version,
		MasterAddress:    w.MasterAddress,
		MasterPrivateKey: masterPriv,
		MasterPublicKey:  hex.EncodeToString(w.MasterPublicKey[:]),
		Balance:          w.Balance,
		Encrypted:        w.Encrypted,
	}
	if w.Encrypted {
		wf.Salt = base64.StdEncoding.EncodeToString(w.salt)
	} else {
		wf.BackupSeed = w.BackupSeed
	}

	for _, a := range w.Addresses {
		priv, err := encodeField(a.PrivateKey, key)
		if err != nil {
			return fmt.Errorf("encode address %s private key: %w", a.Address, err)
		}
		wf.Addresses = append(wf.Addresses, addressFileRecord{
			Address:    a.Address,
			PrivateKey: priv,
			Label:      a.Label,
			Created:    a.Created,
		})
	}
	for _, c := range w.Contacts {
		wf.SendingAddresses = append(wf.SendingAddresses, contactFileRecord{
			Address: c.Address,
			Label:   c.Label,
			Added:   c.Added,
		})
	}

	return ks.writeFile(ks.walletPath(w.Name), &wf)
}

// Encrypt promotes an unencrypted wallet to an encrypted one in
// place, generating a new salt, and saves the result.
func (ks *Keystore) Encrypt(w *Wallet, passphrase string) error {
	if w.Encrypted {
		return fmt.Errorf("wallet %q is already encrypted", w.Name)
	}
	if err := ks.encryptInPlace(w, passphrase); err != nil {
		return err
	}
	return ks.save(w, passphrase)
}

func (ks *Keystore) encryptInPlace(w *Wallet, passphrase string) error {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	w.salt = salt
	w.Encrypted = true
	w.BackupSeed = ""
	return nil
}

// ChangePassphrase re-encrypts a wallet's private key fields under a
// new passphrase and a freshly generated salt.
func (ks *Keystore) ChangePassphrase(w *Wallet, oldPassphrase, newPassphrase string) error {
	if !w.Encrypted {
		return fmt.Errorf("wallet %q is not encrypted", w.Name)
	}
	// Verify the old passphrase actually opens the wallet by re-deriving
	// and attempting to decrypt the master key as stored on disk.
	wf, err := ks.readFile(ks.walletPath(w.Name))
	if err != nil {
		return err
	}
	salt, err := base64.StdEncoding.DecodeString(wf.Salt)
	if err != nil {
		return fmt.Errorf("decode salt: %w", err)
	}
	oldKey := deriveKey([]byte(oldPassphrase), salt, DefaultParams())
	defer zero(oldKey)
	if _, err := decodeField(wf.MasterPrivateKey, true, oldKey); err != nil {
		return fmt.Errorf("wrong passphrase: %w", err)
	}

	newSalt := make([]byte, SaltSize)
	if _, err := rand.Read(newSalt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	w.salt = newSalt
	return ks.save(w, newPassphrase)
}

// Backup copies the wallet's on-disk file verbatim to destPath.
func (ks *Keystore) Backup(name, destPath string) error {
	data, err := os.ReadFile(ks.walletPath(name))
	if err != nil {
		return fmt.Errorf("read wallet: %w", err)
	}
	return os.WriteFile(destPath, data, 0600)
}

// Restore installs the wallet file at backupPath under newName in
// this keystore. Call Open(newName, passphrase) afterward to get a
// live Wallet.
func (ks *Keystore) Restore(backupPath, newName string) error {
	dest := ks.walletPath(newName)
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("wallet %q already exists", newName)
	}

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	var wf walletFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return fmt.Errorf("parse backup: %w", err)
	}
	wf.Name = newName
	return ks.writeFile(dest, &wf)
}

// ListWallets returns the names of all wallets in this keystore.
func (ks *Keystore) ListWallets() ([]string, error) {
	entries, err := os.ReadDir(ks.dir)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".wallet" {
			names = append(names, e.Name()[:len(e.Name())-len(ext)])
		}
	}
	return names, nil
}

// Delete removes a wallet file.
func (ks *Keystore) Delete(name string) error {
	path := ks.walletPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("wallet %q not found", name)
	}
	return os.Remove(path)
}

// writeFile performs an atomic full-file rewrite: write to a temp
// file in the same directory, then rename over the destination.
func (ks *Keystore) writeFile(path string, wf *walletFile) error {
	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename wallet: %w", err)
	}
	return nil
}

func (ks *Keystore) readFile(path string) (*walletFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	var wf walletFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}
	if wf.Version != WalletVersion {
		return nil, fmt.Errorf("unsupported wallet version: %d", wf.Version)
	}
	return &wf, nil
}
