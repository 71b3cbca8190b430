package auth

import (
	"context"
	"fmt"
	"temporal-sa/rsa-oaep-codec/config"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Provide(
	newAuthManagerProvider,
)

// NewAuthenticator returns an uninitialised authenticator of the given type
func NewAuthenticator(authType string, logger *zap.Logger) (Authenticator, error) {
	switch authType {
	case "jwt":
		return &JwtAuthenticator{Logger: logger}, nil
	case "spiffe":
		return &SpiffeAuthenticator{}, nil
	default:
		return nil, fmt.Errorf("unsupported authentication type: %s", authType)
	}
}

// newAuthManagerProvider returns a nil manager when authentication is not configured
func newAuthManagerProvider(lc fx.Lifecycle, configProvider config.ConfigProvider, logger *zap.Logger) (*AuthManager, error) {
	authConfig := configProvider.GetCodecConfig().Authentication
	if authConfig == nil {
		logger.Warn("codec server authentication is disabled")
		return nil, nil
	}

	authenticator, err := NewAuthenticator(authConfig.Type, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := authenticator.Init(ctx, authConfig.Config); err != nil {
		return nil, fmt.Errorf("failed to initialize %s authenticator: %w", authConfig.Type, err)
	}

	authManager := NewAuthManager()
	if err := authManager.RegisterAuthenticator(authenticator); err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return authManager.Close()
		},
	})

	return authManager, nil
}
