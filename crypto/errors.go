package crypto

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedKey is returned when a PEM body is not valid base64
	ErrMalformedKey = errors.New("malformed key")
	// ErrInvalidKey is returned when key bytes are not the expected SPKI/PKCS8 RSA structure
	// or the configured hash is unrecognized
	ErrInvalidKey = errors.New("invalid key")
	// ErrMissingKey is matched by every MissingKeyError
	ErrMissingKey = errors.New("missing key")
	// ErrInvalidEncoding is returned for ciphertext that is not well-formed hex
	ErrInvalidEncoding = errors.New("invalid encoding")
	// ErrPlaintextTooLarge is returned when the plaintext exceeds the OAEP capacity of the key
	ErrPlaintextTooLarge = errors.New("plaintext too large")
	// ErrDecryption is returned for length mismatches, padding failures and wrong keys
	ErrDecryption = errors.New("decryption failed")
	// ErrUnsupportedAlgorithm is returned for algorithm names other than the RSA-OAEP family
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
)

// KeyKind identifies which half of a key pair an operation needs
type KeyKind string

const (
	KeyKindPublic  KeyKind = "public"
	KeyKindPrivate KeyKind = "private"
)

// MissingKeyError reports that the key required by an operation was not configured
type MissingKeyError struct {
	Kind KeyKind
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s: no %s key configured", ErrMissingKey, e.Kind)
}

func (e *MissingKeyError) Is(target error) bool {
	return target == ErrMissingKey
}
