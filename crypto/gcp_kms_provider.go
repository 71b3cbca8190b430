package crypto

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GCPKMSOptions contains configuration options for GCPKMSProvider
type GCPKMSOptions struct {
	// KeyVersionName is the fully qualified name of an RSA_DECRYPT_OAEP_* key version
	// Format: projects/{project}/locations/{location}/keyRings/{keyRing}/cryptoKeys/{cryptoKey}/cryptoKeyVersions/{version}
	KeyVersionName string

	// Hash must match the digest baked into the key version algorithm (defaults to SHA-256)
	Hash Hash
}

// GCPKMSClient defines the interface for GCP KMS operations
type GCPKMSClient interface {
	GetPublicKey(ctx context.Context, req *kmspb.GetPublicKeyRequest, opts ...gax.CallOption) (*kmspb.PublicKey, error)
	AsymmetricDecrypt(ctx context.Context, req *kmspb.AsymmetricDecryptRequest, opts ...gax.CallOption) (*kmspb.AsymmetricDecryptResponse, error)
}

// GCPKMSProvider decrypts RSA-OAEP ciphertext with a Cloud KMS asymmetric key
type GCPKMSProvider struct {
	kmsClient      GCPKMSClient
	keyVersionName string
	hash           Hash
}

// NewGCPKMSProvider creates a new Cloud KMS-backed decrypter
func NewGCPKMSProvider(kmsClient GCPKMSClient, options GCPKMSOptions) (*GCPKMSProvider, error) {
	h := options.Hash
	if h == "" {
		h = DefaultHash
	}
	if gcpAlgorithmSuffix(h) == "" {
		return nil, fmt.Errorf("%w: Cloud KMS does not support RSA-OAEP with %s", ErrUnsupportedAlgorithm, h)
	}

	return &GCPKMSProvider{
		kmsClient:      kmsClient,
		keyVersionName: options.KeyVersionName,
		hash:           h,
	}, nil
}

func (g *GCPKMSProvider) Hash() Hash { return g.hash }

// PublicKeyPEM fetches the public key of the key version and checks that its
// algorithm is RSA-OAEP with the configured hash
func (g *GCPKMSProvider) PublicKeyPEM(ctx context.Context) (string, error) {
	pk, err := g.kmsClient.GetPublicKey(ctx, &kmspb.GetPublicKeyRequest{Name: g.keyVersionName})
	if err != nil {
		return "", fmt.Errorf("failed to get public key: %w", err)
	}

	algorithm := pk.GetAlgorithm().String()
	if !strings.HasPrefix(algorithm, "RSA_DECRYPT_OAEP_") || !strings.HasSuffix(algorithm, gcpAlgorithmSuffix(g.hash)) {
		return "", fmt.Errorf("%w: key version algorithm %s does not match RSA-OAEP with %s", ErrInvalidKey, algorithm, g.hash)
	}

	return pk.GetPem(), nil
}

// DecryptBytes implements Decrypter using AsymmetricDecrypt
func (g *GCPKMSProvider) DecryptBytes(ctx context.Context, ciphertext []byte) ([]byte, error) {
	req := &kmspb.AsymmetricDecryptRequest{
		Name:       g.keyVersionName,
		Ciphertext: ciphertext,
	}

	resp, err := g.kmsClient.AsymmetricDecrypt(ctx, req)
	if err != nil {
		if status.Code(err) == codes.InvalidArgument {
			return nil, fmt.Errorf("%w: kms asymmetric decrypt: %v", ErrDecryption, err)
		}
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return resp.GetPlaintext(), nil
}

// gcpAlgorithmSuffix maps a hash to the suffix of RSA_DECRYPT_OAEP_* algorithm names
func gcpAlgorithmSuffix(h Hash) string {
	switch h {
	case HashSHA1:
		return "_SHA1"
	case HashSHA256:
		return "_SHA256"
	case HashSHA512:
		return "_SHA512"
	default:
		return ""
	}
}
