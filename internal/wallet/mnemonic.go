package wallet

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// BackupSeedWords is the number of words in a wallet's backup phrase.
const BackupSeedWords = 12

// GenerateBackupSeed draws BackupSeedWords words, with replacement,
// from the BIP-39 English wordlist using a cryptographically secure
// random source. Unlike a real BIP-39 mnemonic this phrase carries no
// checksum and derives no key: it exists purely so a wallet owner has
// something human-readable to write down, and is stored on disk only
// while the wallet is unencrypted.
func GenerateBackupSeed() (string, error) {
	wordlist := bip39.GetWordList()
	words := make([]string, BackupSeedWords)
	for i := range words {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(wordlist))))
		if err != nil {
			return "", fmt.Errorf("select backup word: %w", err)
		}
		words[i] = wordlist[n.Int64()]
	}
	return strings.Join(words, " "), nil
}
