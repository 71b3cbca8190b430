package crypto

import (
	"context"
	"strings"
	"time"

	"temporal-sa/rsa-oaep-codec/metrics"

	"go.temporal.io/sdk/client"
)

// Config is the read-only configuration of a Cipher. Either key may be empty;
// the operation needing it fails with a MissingKeyError at call time.
type Config struct {
	// PublicKey is an SPKI public key in PEM form, used by Encrypt
	PublicKey string
	// PrivateKey is a PKCS8 private key in PEM form, used by Decrypt
	PrivateKey string
	// Algorithm defaults to RSA-OAEP
	Algorithm Algorithm
	// Hash defaults to SHA-256
	Hash Hash
}

// Encrypter encrypts raw bytes
type Encrypter interface {
	EncryptBytes(ctx context.Context, plaintext []byte) ([]byte, error)
}

// Decrypter decrypts raw bytes
type Decrypter interface {
	DecryptBytes(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// Cipher performs RSA-OAEP encryption and decryption with PEM key material.
// Keys are imported on every call unless a KeyCache is supplied. A Cipher is
// safe for concurrent use.
type Cipher struct {
	config         Config
	keyCache       *KeyCache
	metricsHandler client.MetricsHandler
}

// CipherOption customizes a Cipher
type CipherOption func(*Cipher)

// WithKeyCache shares imported key handles across calls
func WithKeyCache(cache *KeyCache) CipherOption {
	return func(c *Cipher) {
		c.keyCache = cache
	}
}

// WithMetricsHandler records request, error and latency metrics for each call
func WithMetricsHandler(handler client.MetricsHandler) CipherOption {
	return func(c *Cipher) {
		if handler != nil {
			c.metricsHandler = handler
		}
	}
}

// NewCipher creates a Cipher, applying the default algorithm and hash.
// Algorithms outside the RSA-OAEP family are rejected here rather than coerced.
func NewCipher(config Config, opts ...CipherOption) (*Cipher, error) {
	alg, h, err := resolveAlgorithm(config.Algorithm, config.Hash)
	if err != nil {
		return nil, err
	}
	config.Algorithm = alg
	config.Hash = h

	c := &Cipher{
		config:         config,
		metricsHandler: client.MetricsNopHandler,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Cipher) Algorithm() Algorithm { return c.config.Algorithm }
func (c *Cipher) Hash() Hash           { return c.config.Hash }
func (c *Cipher) HasPublicKey() bool   { return c.config.PublicKey != "" }
func (c *Cipher) HasPrivateKey() bool  { return c.config.PrivateKey != "" }

// PublicKeyPEM returns the configured public key, or "" when none was supplied
func (c *Cipher) PublicKeyPEM() string { return c.config.PublicKey }

// Encrypt encrypts the UTF-8 bytes of plaintext and returns lowercase hex ciphertext
func (c *Cipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	ciphertext, err := c.EncryptBytes(ctx, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return BytesToHex(ciphertext), nil
}

// Decrypt decodes hexCiphertext, decrypts it and returns the plaintext as UTF-8 text
func (c *Cipher) Decrypt(ctx context.Context, hexCiphertext string) (string, error) {
	if !c.HasPrivateKey() {
		return "", &MissingKeyError{Kind: KeyKindPrivate}
	}
	return DecryptHex(ctx, c, hexCiphertext)
}

// EncryptBytes implements Encrypter
func (c *Cipher) EncryptBytes(ctx context.Context, plaintext []byte) (ciphertext []byte, err error) {
	defer c.record(time.Now(), metrics.EncryptRequests, metrics.EncryptLatency, metrics.EncryptErrors, metrics.EncryptSuccess, &err)

	if !c.HasPublicKey() {
		return nil, &MissingKeyError{Kind: KeyKindPublic}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := c.publicKey()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return key.Encrypt(plaintext)
}

// DecryptBytes implements Decrypter
func (c *Cipher) DecryptBytes(ctx context.Context, ciphertext []byte) (plaintext []byte, err error) {
	defer c.record(time.Now(), metrics.DecryptRequests, metrics.DecryptLatency, metrics.DecryptErrors, metrics.DecryptSuccess, &err)

	if !c.HasPrivateKey() {
		return nil, &MissingKeyError{Kind: KeyKindPrivate}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := c.privateKey()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return key.Decrypt(ciphertext)
}

// DecryptHex hex-decodes ciphertext, decrypts it with d and returns UTF-8 text.
// Invalid UTF-8 sequences are replaced with U+FFFD.
func DecryptHex(ctx context.Context, d Decrypter, hexCiphertext string) (string, error) {
	ciphertext, err := HexToBytes(hexCiphertext)
	if err != nil {
		return "", err
	}

	plaintext, err := d.DecryptBytes(ctx, ciphertext)
	if err != nil {
		return "", err
	}

	return strings.ToValidUTF8(string(plaintext), "\uFFFD"), nil
}

func (c *Cipher) publicKey() (*PublicKeyHandle, error) {
	if c.keyCache != nil {
		return c.keyCache.PublicKey(c.config.PublicKey, c.config.Algorithm, c.config.Hash)
	}
	return ImportPublicKey(c.config.PublicKey, c.config.Algorithm, c.config.Hash)
}

func (c *Cipher) privateKey() (*PrivateKeyHandle, error) {
	if c.keyCache != nil {
		return c.keyCache.PrivateKey(c.config.PrivateKey, c.config.Algorithm, c.config.Hash)
	}
	return ImportPrivateKey(c.config.PrivateKey, c.config.Algorithm, c.config.Hash)
}

func (c *Cipher) record(start time.Time, requests, latency, errs, success string, err *error) {
	c.metricsHandler.Counter(requests).Inc(1)
	c.metricsHandler.Timer(latency).Record(time.Since(start))
	if *err != nil {
		c.metricsHandler.Counter(errs).Inc(1)
		return
	}
	c.metricsHandler.Counter(success).Inc(1)
}
