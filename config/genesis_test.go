package config

import "testing"

func TestDefaultGenesis_Valid(t *testing.T) {
	g := DefaultGenesis()
	if err := g.Validate(); err != nil {
		t.Errorf("default genesis should be valid: %v", err)
	}
}

func TestDefaultGenesis_FoundationReserve(t *testing.T) {
	g := DefaultGenesis()
	if g.Receiver != GenesisForeignAddress {
		t.Errorf("genesis receiver = %s, want %s", g.Receiver, GenesisForeignAddress)
	}
	if g.Supply != MaxSupply {
		t.Errorf("genesis supply = %d, want %d", g.Supply, MaxSupply)
	}
}

func TestRewardAt_InitialReward(t *testing.T) {
	if got := RewardAt(0); got != InitialReward {
		t.Errorf("RewardAt(0) = %d, want %d", got, InitialReward)
	}
	if got := RewardAt(HalvingInterval - 1); got != InitialReward {
		t.Errorf("RewardAt(%d) = %d, want %d", HalvingInterval-1, got, InitialReward)
	}
}

func TestRewardAt_FirstHalving(t *testing.T) {
	got := RewardAt(HalvingInterval)
	want := InitialReward / 2
	if got != want {
		t.Errorf("RewardAt(%d) = %d, want %d", HalvingInterval, got, want)
	}
}

func TestRewardAt_ZeroAfterMaxHalvings(t *testing.T) {
	height := MaxHalvings * HalvingInterval
	if got := RewardAt(height); got != 0 {
		t.Errorf("RewardAt(%d) = %d, want 0", height, got)
	}
}

func TestGenesis_Validate_WrongSupply(t *testing.T) {
	g := DefaultGenesis()
	g.Supply = 1
	if err := g.Validate(); err == nil {
		t.Error("genesis with wrong supply should fail validation")
	}
}

func TestGenesis_Validate_BadReceiver(t *testing.T) {
	g := DefaultGenesis()
	g.Receiver = "not-an-address"
	if err := g.Validate(); err == nil {
		t.Error("genesis with invalid receiver should fail validation")
	}
}

func TestGenesis_Hash_Deterministic(t *testing.T) {
	g := DefaultGenesis()
	h1, err := g.Hash()
	if err != nil {
		t.Fatalf("Hash(): %v", err)
	}
	h2, err := g.Hash()
	if err != nil {
		t.Fatalf("Hash(): %v", err)
	}
	if h1 != h2 {
		t.Error("genesis hash should be deterministic")
	}
}
