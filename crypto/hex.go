package crypto

import (
	"encoding/hex"
	"fmt"
)

// BytesToHex renders b as lowercase hex pairs, one pair per byte
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// HexToBytes parses hex pairs left to right. Upper and lower case digits are
// accepted; odd lengths and non-hex characters are rejected.
func HexToBytes(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return b, nil
}
