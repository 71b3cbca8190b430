package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
)

// PublicKeyHandle is an RSA public key bound to an OAEP hash. It can only encrypt.
type PublicKeyHandle struct {
	key       *rsa.PublicKey
	algorithm Algorithm
	hash      Hash
}

// PrivateKeyHandle is an RSA private key bound to an OAEP hash. It can only decrypt.
type PrivateKeyHandle struct {
	key       *rsa.PrivateKey
	algorithm Algorithm
	hash      Hash
}

// ImportPublicKey decodes an SPKI PEM block and binds the RSA key to alg and h
func ImportPublicKey(pemText string, alg Algorithm, h Hash) (*PublicKeyHandle, error) {
	alg, h, err := resolveAlgorithm(alg, h)
	if err != nil {
		return nil, err
	}

	der, err := DecodePEM(pemText)
	if err != nil {
		return nil, err
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse SPKI public key: %v", ErrInvalidKey, err)
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: public key is %T, not RSA", ErrInvalidKey, parsed)
	}

	return &PublicKeyHandle{
		key:       key,
		algorithm: alg,
		hash:      h,
	}, nil
}

// ImportPrivateKey decodes a PKCS8 PEM block and binds the RSA key to alg and h
func ImportPrivateKey(pemText string, alg Algorithm, h Hash) (*PrivateKeyHandle, error) {
	alg, h, err := resolveAlgorithm(alg, h)
	if err != nil {
		return nil, err
	}

	der, err := DecodePEM(pemText)
	if err != nil {
		return nil, err
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse PKCS8 private key: %v", ErrInvalidKey, err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: private key is %T, not RSA", ErrInvalidKey, parsed)
	}

	return &PrivateKeyHandle{
		key:       key,
		algorithm: alg,
		hash:      h,
	}, nil
}

// Size returns the modulus length in bytes, which is also the ciphertext length
func (k *PublicKeyHandle) Size() int {
	return k.key.Size()
}

// MaxPlaintextSize returns the largest payload OAEP can carry with this key and hash
func (k *PublicKeyHandle) MaxPlaintextSize() int {
	return maxPlaintextSize(k.key.Size(), k.hash)
}

func (k *PublicKeyHandle) Algorithm() Algorithm { return k.algorithm }
func (k *PublicKeyHandle) Hash() Hash           { return k.hash }

// Encrypt performs RSA-OAEP encryption of plaintext
func (k *PublicKeyHandle) Encrypt(plaintext []byte) ([]byte, error) {
	if limit := k.MaxPlaintextSize(); len(plaintext) > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d for a %d-bit key with %s",
			ErrPlaintextTooLarge, len(plaintext), limit, k.key.N.BitLen(), k.hash)
	}

	h, err := k.hash.New()
	if err != nil {
		return nil, err
	}

	ciphertext, err := rsa.EncryptOAEP(h, rand.Reader, k.key, plaintext, nil)
	if err != nil {
		if errors.Is(err, rsa.ErrMessageTooLong) {
			return nil, fmt.Errorf("%w: %v", ErrPlaintextTooLarge, err)
		}
		return nil, fmt.Errorf("failed to encrypt: %w", err)
	}

	return ciphertext, nil
}

// Size returns the modulus length in bytes
func (k *PrivateKeyHandle) Size() int {
	return k.key.Size()
}

func (k *PrivateKeyHandle) Algorithm() Algorithm { return k.algorithm }
func (k *PrivateKeyHandle) Hash() Hash           { return k.hash }

// Decrypt performs RSA-OAEP decryption of ciphertext
func (k *PrivateKeyHandle) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != k.key.Size() {
		return nil, fmt.Errorf("%w: ciphertext is %d bytes, key modulus is %d",
			ErrDecryption, len(ciphertext), k.key.Size())
	}

	h, err := k.hash.New()
	if err != nil {
		return nil, err
	}

	plaintext, err := rsa.DecryptOAEP(h, rand.Reader, k.key, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	return plaintext, nil
}

// PublicKeyPEM returns the SPKI PEM of the public half of the key
func (k *PrivateKeyHandle) PublicKeyPEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&k.key.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return EncodePEM("PUBLIC KEY", der), nil
}

// Fingerprint returns the lowercase hex SHA-256 of the SPKI DER inside publicKeyPEM
func Fingerprint(publicKeyPEM string) (string, error) {
	der, err := DecodePEM(publicKeyPEM)
	if err != nil {
		return "", err
	}
	if _, err := x509.ParsePKIXPublicKey(der); err != nil {
		return "", fmt.Errorf("%w: failed to parse SPKI public key: %v", ErrInvalidKey, err)
	}

	sum := sha256.Sum256(der)
	return BytesToHex(sum[:]), nil
}

func maxPlaintextSize(modulusBytes int, h Hash) int {
	limit := modulusBytes - 2*h.Size() - 2
	if limit < 0 {
		return 0
	}
	return limit
}
