package tx

import (
	"strings"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

func addr(label string) types.Address {
	h := crypto.Hash([]byte(label))
	return types.Address(types.AddressPrefix + h.String()[:types.AddressHexLen])
}

func TestNew_ComputesID(t *testing.T) {
	t1 := New(addr("alice"), addr("bob"), 1000, 1, 100)
	if t1.ID.IsZero() {
		t.Error("New() should compute a non-zero ID")
	}
	if err := t1.ValidateIntrinsic(); err != nil {
		t.Errorf("ValidateIntrinsic() error: %v", err)
	}
}

func TestNew_Deterministic(t *testing.T) {
	t1 := New(addr("alice"), addr("bob"), 1000, 1, 100)
	t2 := New(addr("alice"), addr("bob"), 1000, 1, 100)
	if t1.ID != t2.ID {
		t.Error("identical transactions should have the same ID")
	}
}

func TestNew_IDChangesWithContent(t *testing.T) {
	t1 := New(addr("alice"), addr("bob"), 1000, 1, 100)
	t2 := New(addr("alice"), addr("bob"), 2000, 1, 100)
	if t1.ID == t2.ID {
		t.Error("different amounts should produce different IDs")
	}
}

func TestNew_IDIgnoresSignature(t *testing.T) {
	t1 := New(addr("alice"), addr("bob"), 1000, 1, 100)
	before := t1.ID
	t1.Signature = []byte("some signature")
	if t1.ID != before {
		t.Error("adding a signature must not change the tx ID")
	}
}

func TestNewCoinbase(t *testing.T) {
	c := NewCoinbase(addr("miner"), 50, 100)
	if !c.IsCoinbase() {
		t.Error("NewCoinbase() should produce a coinbase transaction")
	}
	if c.Fee != 0 {
		t.Errorf("coinbase fee = %d, want 0", c.Fee)
	}
	if err := c.ValidateIntrinsic(); err != nil {
		t.Errorf("ValidateIntrinsic() error: %v", err)
	}
}

func TestTransaction_SignAndVerify(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	transaction := New(addr("alice"), addr("bob"), 500, 2, 123)
	if err := transaction.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if len(transaction.Signature) == 0 {
		t.Fatal("Sign() should populate Signature")
	}
	if !crypto.VerifySignature(transaction.ID[:], transaction.Signature, key.PublicKey()) {
		t.Error("signature should verify against the tx ID and public key")
	}
}

func TestTransaction_JSONRoundTrip(t *testing.T) {
	key, _ := crypto.GenerateKey()
	original := New(addr("alice"), addr("bob"), 500, 2, 123)
	if err := original.Sign(key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	data, err := original.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if !strings.Contains(string(data), `"tx_id"`) {
		t.Errorf("encoded transaction missing tx_id field: %s", data)
	}

	var decoded Transaction
	if err := decoded.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if decoded.ID != original.ID {
		t.Errorf("round-trip ID mismatch: got %s, want %s", decoded.ID, original.ID)
	}
	if string(decoded.Signature) != string(original.Signature) {
		t.Error("round-trip signature mismatch")
	}
}

func TestBuilder_BuildAndSign(t *testing.T) {
	key, _ := crypto.GenerateKey()

	transaction, err := NewBuilder(addr("alice"), addr("bob")).
		WithAmount(5000).
		WithFee(10).
		WithTimestamp(42).
		BuildSigned(key)
	if err != nil {
		t.Fatalf("BuildSigned() error: %v", err)
	}

	if err := transaction.ValidateIntrinsic(); err != nil {
		t.Errorf("ValidateIntrinsic() error: %v", err)
	}
	if !crypto.VerifySignature(transaction.ID[:], transaction.Signature, key.PublicKey()) {
		t.Error("built transaction signature should verify")
	}
}
