package codec

import (
	"context"
	"temporal-sa/rsa-oaep-codec/config"

	"go.temporal.io/sdk/client"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Provide(
	newCodecFactoryProvider,
	newCodecProvider,
)

func newCodecFactoryProvider(lc fx.Lifecycle, configProvider config.ConfigProvider) (EncryptionCodecFactory, error) {
	factory, err := NewEncryptionCodecFactory(configProvider.GetCodecConfig().Encryption.Caching)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return factory.Close()
		},
	})

	return factory, nil
}

func newCodecProvider(configProvider config.ConfigProvider, factory EncryptionCodecFactory,
	metricsHandler client.MetricsHandler, logger *zap.Logger) (*Codec, error) {

	encryptionConfig := configProvider.GetCodecConfig().Encryption

	codec, err := factory.NewEncryptionCodec(context.Background(), EncryptionCodecOptions{
		EncryptionConfig: encryptionConfig,
		MetricsHandler:   metricsHandler,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("payload codec configured",
		zap.String("key_source", encryptionConfig.KeySource),
		zap.String("key_id", codec.KeyID()),
		zap.String("algorithm", codec.Algorithm()),
		zap.Bool("encode", codec.CanEncode()),
		zap.Bool("decode", codec.CanDecode()),
	)

	return codec, nil
}
