package crypto

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
)

// Algorithm names the padding scheme a Cipher is configured with
type Algorithm string

const (
	AlgorithmRSAOAEP       Algorithm = "RSA-OAEP"
	AlgorithmRSAOAEP256    Algorithm = "RSA-OAEP-256"
	AlgorithmRSA1_5        Algorithm = "RSA1_5"
	AlgorithmRSAESPKCS1v15 Algorithm = "RSAES-PKCS1-v1_5"
	AlgorithmRSAPSS        Algorithm = "RSA-PSS"

	DefaultAlgorithm = AlgorithmRSAOAEP
)

// Hash names the digest used for OAEP padding and the mask generation function
type Hash string

const (
	HashSHA1   Hash = "SHA-1"
	HashSHA256 Hash = "SHA-256"
	HashSHA384 Hash = "SHA-384"
	HashSHA512 Hash = "SHA-512"

	DefaultHash = HashSHA256
)

// New returns a fresh hash.Hash for h
func (h Hash) New() (hash.Hash, error) {
	switch h {
	case HashSHA1:
		return sha1.New(), nil
	case HashSHA256:
		return sha256.New(), nil
	case HashSHA384:
		return sha512.New384(), nil
	case HashSHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("%w: unrecognized hash %q", ErrInvalidKey, string(h))
	}
}

// Size returns the digest length in bytes, or 0 for an unrecognized hash
func (h Hash) Size() int {
	switch h {
	case HashSHA1:
		return sha1.Size
	case HashSHA256:
		return sha256.Size
	case HashSHA384:
		return sha512.Size384
	case HashSHA512:
		return sha512.Size
	default:
		return 0
	}
}

// resolveAlgorithm applies defaults and rejects anything outside the RSA-OAEP family.
// RSA-OAEP-256 pins the hash to SHA-256.
func resolveAlgorithm(alg Algorithm, h Hash) (Algorithm, Hash, error) {
	if alg == "" {
		alg = DefaultAlgorithm
	}

	switch alg {
	case AlgorithmRSAOAEP:
		if h == "" {
			h = DefaultHash
		}
	case AlgorithmRSAOAEP256:
		if h == "" {
			h = HashSHA256
		}
		if h.Size() == 0 {
			return "", "", fmt.Errorf("%w: unrecognized hash %q", ErrInvalidKey, string(h))
		}
		if h != HashSHA256 {
			return "", "", fmt.Errorf("%w: %s requires %s, got %s", ErrUnsupportedAlgorithm, alg, HashSHA256, h)
		}
	case AlgorithmRSA1_5, AlgorithmRSAESPKCS1v15, AlgorithmRSAPSS:
		return "", "", fmt.Errorf("%w: %s is not implemented, only RSA-OAEP variants are", ErrUnsupportedAlgorithm, alg)
	default:
		return "", "", fmt.Errorf("%w: unknown algorithm %q", ErrUnsupportedAlgorithm, string(alg))
	}

	if h.Size() == 0 {
		return "", "", fmt.Errorf("%w: unrecognized hash %q", ErrInvalidKey, string(h))
	}

	return alg, h, nil
}
