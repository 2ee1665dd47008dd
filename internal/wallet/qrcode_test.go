package wallet

import "testing"

func TestEncodeQR_AddressLength(t *testing.T) {
	addr := "GSC1deadbeefdeadbeefdeadbeefdead"
	grid, err := encodeQR([]byte(addr))
	if err != nil {
		t.Fatalf("encodeQR() error: %v", err)
	}
	if len(grid) != qrSize {
		t.Fatalf("grid has %d rows, want %d", len(grid), qrSize)
	}
	for _, row := range grid {
		if len(row) != qrSize {
			t.Fatalf("grid row has %d columns, want %d", len(row), qrSize)
		}
	}
}

func TestEncodeQR_PrivateKeyHexLength(t *testing.T) {
	hexKey := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	if _, err := encodeQR([]byte(hexKey)); err != nil {
		t.Fatalf("encodeQR() error for a 64-char hex key: %v", err)
	}
}

func TestEncodeQR_PayloadTooLong(t *testing.T) {
	payload := make([]byte, qrMaxPayload+1)
	if _, err := encodeQR(payload); err == nil {
		t.Error("encodeQR() should reject a payload beyond version-4-L capacity")
	}
}

func TestEncodeQR_FinderPatternsPresent(t *testing.T) {
	grid, err := encodeQR([]byte("GSC1test"))
	if err != nil {
		t.Fatalf("encodeQR() error: %v", err)
	}
	// Top-left finder pattern's outer ring must be fully dark.
	for i := 0; i < 7; i++ {
		if !grid[0][i] {
			t.Errorf("top-left finder row 0 col %d should be dark", i)
		}
		if !grid[i][0] {
			t.Errorf("top-left finder row %d col 0 should be dark", i)
		}
	}
}

func TestRSEncode_ProducesExpectedLength(t *testing.T) {
	data := make([]byte, qrDataCodewords)
	ec := rsEncode(data, qrECCodewords)
	if len(ec) != qrECCodewords {
		t.Fatalf("len(ec) = %d, want %d", len(ec), qrECCodewords)
	}
}

func TestGFMul_Identity(t *testing.T) {
	if gfMul(5, 0) != 0 {
		t.Error("gfMul(x, 0) should be 0")
	}
	if gfMul(0, 9) != 0 {
		t.Error("gfMul(0, x) should be 0")
	}
}
