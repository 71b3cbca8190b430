package codec

import (
	gcpKms "cloud.google.com/go/kms/apiv1"
	"context"
	"errors"
	"fmt"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awsKms "github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"go.temporal.io/sdk/client"
	"os"
	"sync"
	"temporal-sa/rsa-oaep-codec/config"
	"temporal-sa/rsa-oaep-codec/crypto"
	"temporal-sa/rsa-oaep-codec/metrics"
)

//
//	Each key source yields a Codec whose encrypt side is always a local Cipher
//	(RSA-OAEP only needs the public key) and whose decrypt side is either the
//	same Cipher or the KMS holding the private key.
//

type (
	EncryptionCodecFactory interface {
		NewEncryptionCodec(ctx context.Context, args EncryptionCodecOptions) (*Codec, error)
		Close() error
	}

	EncryptionCodecOptions struct {
		EncryptionConfig config.EncryptionConfig
		MetricsHandler   client.MetricsHandler
	}

	EncryptionCodecConstructor func(ctx context.Context, args EncryptionCodecOptions) (*Codec, error)

	// GCPKMSClient is the subset of the Cloud KMS client used by the factory
	GCPKMSClient interface {
		crypto.GCPKMSClient
		Close() error
	}

	encryptionCodecFactory struct {
		providers       map[string]EncryptionCodecConstructor
		keyCache        *crypto.KeyCache
		newAWSKMSClient func(region string) (kmsiface.KMSAPI, error)
		newGCPKMSClient func(ctx context.Context) (GCPKMSClient, error)

		mu      sync.Mutex
		closers []func() error
	}
)

func NewEncryptionCodecFactory(cachingConfig config.CachingConfig) (EncryptionCodecFactory, error) {
	cf, err := newEncryptionCodecFactory(cachingConfig, newAWSKMSClient, newGCPKMSClient)
	if err != nil {
		return nil, err
	}
	return cf, nil
}

func newEncryptionCodecFactory(
	cachingConfig config.CachingConfig,
	awsClient func(region string) (kmsiface.KMSAPI, error),
	gcpClient func(ctx context.Context) (GCPKMSClient, error),
) (*encryptionCodecFactory, error) {
	cf := &encryptionCodecFactory{
		providers:       make(map[string]EncryptionCodecConstructor),
		newAWSKMSClient: awsClient,
		newGCPKMSClient: gcpClient,
	}

	if cachingConfig.Enabled() {
		maxAge, err := cachingConfig.MaxAgeDuration()
		if err != nil {
			return nil, err
		}
		keyCache, err := crypto.NewKeyCache(crypto.KeyCacheConfig{
			MaxKeys: cachingConfig.MaxCache,
			MaxAge:  maxAge,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create key cache: %w", err)
		}
		cf.keyCache = keyCache
	}

	cf.providers[config.KeySourceLocal] = cf.newLocalCodec
	cf.providers[config.KeySourceAwsKms] = cf.newAWSKMSCodec
	cf.providers[config.KeySourceGcpKms] = cf.newGCPKMSCodec

	return cf, nil
}

func (e *encryptionCodecFactory) NewEncryptionCodec(ctx context.Context, args EncryptionCodecOptions) (*Codec, error) {
	keySource := args.EncryptionConfig.KeySource
	if keySource == "" {
		keySource = config.KeySourceLocal
	}

	encryptionCodec, ok := e.providers[keySource]
	if !ok {
		return nil, fmt.Errorf("unsupported key source %s", keySource)
	}

	if args.MetricsHandler == nil {
		args.MetricsHandler = client.MetricsNopHandler
	}
	args.MetricsHandler = args.MetricsHandler.WithTags(map[string]string{
		metrics.KeySourceAttribute: keySource,
	})

	return encryptionCodec(ctx, args)
}

// Close releases KMS clients created by the factory
func (e *encryptionCodecFactory) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for _, closer := range e.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil

	return errors.Join(errs...)
}

func (e *encryptionCodecFactory) newLocalCodec(ctx context.Context, args EncryptionCodecOptions) (*Codec, error) {
	cfg := args.EncryptionConfig

	publicPEM, err := cfg.PublicKey.Resolve()
	if err != nil {
		return nil, fmt.Errorf("failed to load public key: %w", err)
	}
	privatePEM, err := cfg.PrivateKey.Resolve()
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}

	cipher, err := e.newCipher(cfg, publicPEM, privatePEM, args.MetricsHandler)
	if err != nil {
		return nil, err
	}

	keyID := cfg.KeyID
	if keyID == "" {
		if keyID, err = localKeyID(cipher, privatePEM); err != nil {
			return nil, err
		}
	}

	options := CodecOptions{
		KeyID:          keyID,
		Hash:           cipher.Hash(),
		MetricsHandler: args.MetricsHandler.WithTags(map[string]string{metrics.EncryptionKeyAttribute: keyID}),
	}
	if cipher.HasPublicKey() {
		options.Encrypter = cipher
	}
	if cipher.HasPrivateKey() {
		options.Decrypter = cipher
	}

	return NewCodec(options), nil
}

func (e *encryptionCodecFactory) newAWSKMSCodec(ctx context.Context, args EncryptionCodecOptions) (*Codec, error) {
	cfg := args.EncryptionConfig
	if cfg.AwsKms == nil || cfg.AwsKms.KeyID == "" {
		return nil, fmt.Errorf("aws_kms key_id not found in config")
	}

	region := cfg.AwsKms.Region
	if region == "" {
		region = os.Getenv(config.AwsRegionEnvVar)
	}
	if region == "" {
		region = config.DefaultAwsRegion
	}

	kmsClient, err := e.newAWSKMSClient(region)
	if err != nil {
		return nil, err
	}

	provider, err := crypto.NewAWSKMSProvider(kmsClient, crypto.AWSKMSOptions{
		KeyID: cfg.AwsKms.KeyID,
		Hash:  crypto.Hash(cfg.Hash),
	})
	if err != nil {
		return nil, err
	}

	return e.newRemoteCodec(ctx, args, provider, provider.Hash(), cfg.AwsKms.KeyID)
}

func (e *encryptionCodecFactory) newGCPKMSCodec(ctx context.Context, args EncryptionCodecOptions) (*Codec, error) {
	cfg := args.EncryptionConfig
	if cfg.GcpKms == nil || cfg.GcpKms.KeyVersionName == "" {
		return nil, fmt.Errorf("gcp_kms key_version_name not found in config")
	}

	kmsClient, err := e.newGCPKMSClient(ctx)
	if err != nil {
		return nil, err
	}
	e.addCloser(kmsClient.Close)

	provider, err := crypto.NewGCPKMSProvider(kmsClient, crypto.GCPKMSOptions{
		KeyVersionName: cfg.GcpKms.KeyVersionName,
		Hash:           crypto.Hash(cfg.Hash),
	})
	if err != nil {
		return nil, err
	}

	return e.newRemoteCodec(ctx, args, provider, provider.Hash(), cfg.GcpKms.KeyVersionName)
}

// newRemoteCodec encrypts locally with the KMS public key and decrypts inside the KMS
func (e *encryptionCodecFactory) newRemoteCodec(ctx context.Context, args EncryptionCodecOptions,
	provider remoteKeyProvider, h crypto.Hash, defaultKeyID string) (*Codec, error) {

	cfg := args.EncryptionConfig

	publicPEM, err := provider.PublicKeyPEM(ctx)
	if err != nil {
		return nil, err
	}

	cfg.Hash = string(h)
	cipher, err := e.newCipher(cfg, publicPEM, "", args.MetricsHandler)
	if err != nil {
		return nil, err
	}

	keyID := cfg.KeyID
	if keyID == "" {
		keyID = defaultKeyID
	}

	return NewCodec(CodecOptions{
		KeyID:          keyID,
		Hash:           cipher.Hash(),
		Encrypter:      cipher,
		Decrypter:      provider,
		MetricsHandler: args.MetricsHandler.WithTags(map[string]string{metrics.EncryptionKeyAttribute: keyID}),
	}), nil
}

type remoteKeyProvider interface {
	crypto.Decrypter
	PublicKeyPEM(ctx context.Context) (string, error)
}

func (e *encryptionCodecFactory) newCipher(cfg config.EncryptionConfig, publicPEM, privatePEM string,
	metricsHandler client.MetricsHandler) (*crypto.Cipher, error) {

	opts := []crypto.CipherOption{crypto.WithMetricsHandler(metricsHandler)}
	if e.keyCache != nil {
		opts = append(opts, crypto.WithKeyCache(e.keyCache))
	}

	return crypto.NewCipher(crypto.Config{
		PublicKey:  publicPEM,
		PrivateKey: privatePEM,
		Algorithm:  crypto.Algorithm(cfg.Algorithm),
		Hash:       crypto.Hash(cfg.Hash),
	}, opts...)
}

func (e *encryptionCodecFactory) addCloser(closer func() error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closers = append(e.closers, closer)
}

// localKeyID derives the key id from the public key, or from the public half of
// the private key when only a private key is configured
func localKeyID(cipher *crypto.Cipher, privatePEM string) (string, error) {
	publicPEM := cipher.PublicKeyPEM()
	if publicPEM == "" {
		private, err := crypto.ImportPrivateKey(privatePEM, cipher.Algorithm(), cipher.Hash())
		if err != nil {
			return "", err
		}
		if publicPEM, err = private.PublicKeyPEM(); err != nil {
			return "", err
		}
	}

	return crypto.Fingerprint(publicPEM)
}

func newAWSKMSClient(region string) (kmsiface.KMSAPI, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	return awsKms.New(sess), nil
}

func newGCPKMSClient(ctx context.Context) (GCPKMSClient, error) {
	kmsClient, err := gcpKms.NewKeyManagementClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcp kms client: %w", err)
	}
	return kmsClient, nil
}
