// Package testutil generates throwaway key material for tests.
package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/require"
)

// RSAKeyPair holds an RSA key and its PEM encodings
type RSAKeyPair struct {
	Key *rsa.PrivateKey
	// PublicPEM is SPKI ("PUBLIC KEY")
	PublicPEM string
	// PrivatePEM is PKCS8 ("PRIVATE KEY")
	PrivatePEM string
}

// GenerateRSAKeyPair creates a fresh RSA key of the given size
func GenerateRSAKeyPair(t testing.TB, bits int) *RSAKeyPair {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, bits)
	require.NoError(t, err)

	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	priv, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	return &RSAKeyPair{
		Key:        key,
		PublicPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})),
		PrivatePEM: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: priv})),
	}
}

// GenerateECKeyPEMs returns SPKI and PKCS8 PEMs of a P-256 key, for wrong-key-type cases
func GenerateECKeyPEMs(t testing.TB) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	priv, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})),
		string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: priv}))
}

// PKCS1PrivatePEM returns the key in PKCS1 ("RSA PRIVATE KEY") form
func PKCS1PrivatePEM(key *rsa.PrivateKey) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}
