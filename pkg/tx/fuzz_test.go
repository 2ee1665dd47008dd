package tx

import (
	"encoding/json"
	"testing"
)

// FuzzTxUnmarshal tests that arbitrary JSON input does not panic
// when unmarshaled into a Transaction struct.
func FuzzTxUnmarshal(f *testing.F) {
	f.Add([]byte(`{"sender":"GSC1aa","receiver":"GSC1bb","amount":1000,"fee":1,"timestamp":100,"tx_id":"0000000000000000000000000000000000000000000000000000000000000000"}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"sender":"","receiver":"","amount":0,"fee":0,"timestamp":0}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var transaction Transaction
		if err := transaction.UnmarshalJSON(data); err != nil {
			return
		}
		// If unmarshal succeeded, these must not panic.
		transaction.computeID()
		transaction.SigningBytes()
		transaction.ValidateIntrinsic()
	})
}
