package crypto

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
)

// AWSKMSOptions contains configuration options for AWSKMSProvider
type AWSKMSOptions struct {
	// KeyID is the ARN, alias or ID of an asymmetric RSA_* KMS key with usage ENCRYPT_DECRYPT
	KeyID string

	// Hash selects the OAEP digest (defaults to SHA-256). KMS supports SHA-1 and SHA-256.
	Hash Hash
}

// AWSKMSProvider decrypts RSA-OAEP ciphertext inside AWS KMS. The private key never
// leaves KMS; the public key can be fetched for local encryption.
type AWSKMSProvider struct {
	kmsClient kmsiface.KMSAPI
	keyID     string
	hash      Hash
	algorithm string
}

// NewAWSKMSProvider creates a new KMS-backed decrypter
func NewAWSKMSProvider(kmsClient kmsiface.KMSAPI, options AWSKMSOptions) (*AWSKMSProvider, error) {
	h := options.Hash
	if h == "" {
		h = DefaultHash
	}

	var algorithm string
	switch h {
	case HashSHA1:
		algorithm = kms.EncryptionAlgorithmSpecRsaesOaepSha1
	case HashSHA256:
		algorithm = kms.EncryptionAlgorithmSpecRsaesOaepSha256
	default:
		return nil, fmt.Errorf("%w: AWS KMS does not support RSA-OAEP with %s", ErrUnsupportedAlgorithm, h)
	}

	return &AWSKMSProvider{
		kmsClient: kmsClient,
		keyID:     options.KeyID,
		hash:      h,
		algorithm: algorithm,
	}, nil
}

func (k *AWSKMSProvider) Hash() Hash { return k.hash }

// PublicKeyPEM fetches the SPKI public key of the KMS key
func (k *AWSKMSProvider) PublicKeyPEM(ctx context.Context) (string, error) {
	result, err := k.kmsClient.GetPublicKeyWithContext(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(k.keyID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get public key: %w", err)
	}

	if !containsString(result.EncryptionAlgorithms, k.algorithm) {
		return "", fmt.Errorf("%w: key %s does not support %s", ErrInvalidKey, k.keyID, k.algorithm)
	}

	return EncodePEM("PUBLIC KEY", result.PublicKey), nil
}

// DecryptBytes implements Decrypter using the KMS Decrypt API
func (k *AWSKMSProvider) DecryptBytes(ctx context.Context, ciphertext []byte) ([]byte, error) {
	input := &kms.DecryptInput{
		CiphertextBlob:      ciphertext,
		KeyId:               aws.String(k.keyID),
		EncryptionAlgorithm: aws.String(k.algorithm),
	}

	result, err := k.kmsClient.DecryptWithContext(ctx, input)
	if err != nil {
		var awsErr awserr.Error
		if errors.As(err, &awsErr) {
			switch awsErr.Code() {
			case kms.ErrCodeInvalidCiphertextException, kms.ErrCodeIncorrectKeyException:
				return nil, fmt.Errorf("%w: kms decrypt: %v", ErrDecryption, err)
			}
		}
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return result.Plaintext, nil
}

func containsString(values []*string, want string) bool {
	for _, v := range values {
		if aws.StringValue(v) == want {
			return true
		}
	}
	return false
}
