package codec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"temporal-sa/rsa-oaep-codec/crypto"
	"temporal-sa/rsa-oaep-codec/metrics"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"google.golang.org/protobuf/proto"
)

const (
	// MetadataEncodingEncrypted is "binary/encrypted"
	MetadataEncodingEncrypted = "binary/encrypted"
	// MetadataEncryptionKeyID is "encryption-key-id"
	MetadataEncryptionKeyID = "encryption-key-id"
	// MetadataEncryptionAlgorithm is "encryption-algorithm"
	MetadataEncryptionAlgorithm = "encryption-algorithm"
)

var ErrUnknownKeyID = errors.New("unknown encryption key id")

type CodecOptions struct {
	// KeyID is stamped on every encrypted payload and required on decode
	KeyID string
	// Hash is the OAEP digest used by Encrypter and Decrypter
	Hash crypto.Hash
	// Encrypter is nil for decode-only codecs
	Encrypter crypto.Encrypter
	// Decrypter is nil for encode-only codecs
	Decrypter      crypto.Decrypter
	MetricsHandler client.MetricsHandler
}

// Codec implements PayloadCodec by RSA-OAEP encrypting each serialized payload.
// A payload must fit the key's OAEP capacity once serialized; larger payloads
// fail with crypto.ErrPlaintextTooLarge.
type Codec struct {
	keyID          string
	algorithm      string
	encrypter      crypto.Encrypter
	decrypter      crypto.Decrypter
	metricsHandler client.MetricsHandler
}

func NewCodec(options CodecOptions) *Codec {
	h := options.Hash
	if h == "" {
		h = crypto.DefaultHash
	}

	metricsHandler := options.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = client.MetricsNopHandler
	}

	return &Codec{
		keyID:          options.KeyID,
		algorithm:      AlgorithmMetadata(h),
		encrypter:      options.Encrypter,
		decrypter:      options.Decrypter,
		metricsHandler: metricsHandler,
	}
}

// AlgorithmMetadata is the encryption-algorithm value written for hash h.
// RSA-OAEP-256 and RSA-OAEP with SHA-256 share a value since their ciphertexts are interchangeable.
func AlgorithmMetadata(h crypto.Hash) string {
	return fmt.Sprintf("%s/%s", crypto.AlgorithmRSAOAEP, h)
}

func (e *Codec) KeyID() string     { return e.keyID }
func (e *Codec) CanEncode() bool   { return e.encrypter != nil }
func (e *Codec) CanDecode() bool   { return e.decrypter != nil }
func (e *Codec) Algorithm() string { return e.algorithm }

// Encode implements converter.PayloadCodec.Encode.
func (e *Codec) Encode(payloads []*commonpb.Payload) (_ []*commonpb.Payload, err error) {
	defer e.record(time.Now(), metrics.PayloadEncodeRequests, metrics.PayloadEncodeLatency,
		metrics.PayloadEncodeErrors, metrics.PayloadEncodeSuccess, &err)

	if e.encrypter == nil {
		return payloads, &crypto.MissingKeyError{Kind: crypto.KeyKindPublic}
	}

	ctx := context.Background()
	result := make([]*commonpb.Payload, len(payloads))
	for i, p := range payloads {
		origBytes, err := proto.Marshal(p)
		if err != nil {
			return payloads, fmt.Errorf("failed to marshal payload: %w", err)
		}

		ciphertext, err := e.encrypter.EncryptBytes(ctx, origBytes)
		if err != nil {
			return payloads, fmt.Errorf("failed to encrypt payload: %w", err)
		}

		result[i] = &commonpb.Payload{
			Metadata: map[string][]byte{
				converter.MetadataEncoding:  []byte(MetadataEncodingEncrypted),
				MetadataEncryptionKeyID:     []byte(e.keyID),
				MetadataEncryptionAlgorithm: []byte(e.algorithm),
			},
			Data: ciphertext,
		}
	}

	return result, nil
}

// Decode implements converter.PayloadCodec.Decode.
func (e *Codec) Decode(payloads []*commonpb.Payload) (_ []*commonpb.Payload, err error) {
	defer e.record(time.Now(), metrics.PayloadDecodeRequests, metrics.PayloadDecodeLatency,
		metrics.PayloadDecodeErrors, metrics.PayloadDecodeSuccess, &err)

	ctx := context.Background()
	result := make([]*commonpb.Payload, len(payloads))
	for i, p := range payloads {
		// Only if it's encrypted
		if string(p.GetMetadata()[converter.MetadataEncoding]) != MetadataEncodingEncrypted {
			result[i] = p
			continue
		}

		if e.decrypter == nil {
			return payloads, &crypto.MissingKeyError{Kind: crypto.KeyKindPrivate}
		}

		keyID, ok := p.Metadata[MetadataEncryptionKeyID]
		if !ok {
			return payloads, fmt.Errorf("no encryption key id")
		}
		if string(keyID) != e.keyID {
			return payloads, fmt.Errorf("%w: %s", ErrUnknownKeyID, keyID)
		}

		if algorithm, ok := p.Metadata[MetadataEncryptionAlgorithm]; ok && string(algorithm) != e.algorithm {
			return payloads, fmt.Errorf("%w: payload encrypted with %s, codec uses %s",
				crypto.ErrUnsupportedAlgorithm, algorithm, e.algorithm)
		}

		decrypted, err := e.decrypter.DecryptBytes(ctx, p.Data)
		if err != nil {
			return payloads, fmt.Errorf("failed to decrypt payload: %w", err)
		}

		result[i] = &commonpb.Payload{}
		if err := proto.Unmarshal(decrypted, result[i]); err != nil {
			return payloads, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	return result, nil
}

// EncryptText encrypts plaintext and returns lowercase hex ciphertext
func (e *Codec) EncryptText(ctx context.Context, plaintext string) (string, error) {
	if e.encrypter == nil {
		return "", &crypto.MissingKeyError{Kind: crypto.KeyKindPublic}
	}

	ciphertext, err := e.encrypter.EncryptBytes(ctx, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return crypto.BytesToHex(ciphertext), nil
}

// DecryptText decrypts hex ciphertext produced by EncryptText
func (e *Codec) DecryptText(ctx context.Context, hexCiphertext string) (string, error) {
	if e.decrypter == nil {
		return "", &crypto.MissingKeyError{Kind: crypto.KeyKindPrivate}
	}
	return crypto.DecryptHex(ctx, e.decrypter, hexCiphertext)
}

func (e *Codec) record(start time.Time, requests, latency, errs, success string, err *error) {
	e.metricsHandler.Counter(requests).Inc(1)
	e.metricsHandler.Timer(latency).Record(time.Since(start))
	if *err != nil {
		e.metricsHandler.Counter(errs).Inc(1)
		return
	}
	e.metricsHandler.Counter(success).Inc(1)
}
