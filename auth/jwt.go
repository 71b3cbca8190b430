package auth

import (
	"context"
	"fmt"
	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"time"
)

type JwtAuthenticator struct {
	Audiences []string `yaml:"audiences"`
	JwksUrl   string   `yaml:"jwks-url"`
	Logger    *zap.Logger
	jwks      *keyfunc.JWKS
}

func (j *JwtAuthenticator) Type() string {
	return "jwt"
}

func (j *JwtAuthenticator) Init(ctx context.Context, config map[string]interface{}) error {
	jwksUrl, ok := config["jwks-url"].(string)
	if !ok || jwksUrl == "" {
		return fmt.Errorf("jwks-url is required")
	}
	j.JwksUrl = jwksUrl
	j.Audiences = stringSlice(config, "audiences")

	logger := j.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	jwks, err := keyfunc.Get(jwksUrl, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Warn("JWKS refresh failed", zap.String("jwks_url", jwksUrl), zap.Error(err))
		},
		RefreshInterval:   time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return fmt.Errorf("failed to get JWKS: %w", err)
	}

	j.jwks = jwks

	return nil
}

func (j *JwtAuthenticator) Authenticate(ctx context.Context, token string) (*AuthenticationResult, error) {
	if j.jwks == nil {
		return unauthenticated(fmt.Errorf("%w: jwt authenticator is not initialised", ErrUnauthenticated))
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, j.jwks.Keyfunc)
	if err != nil {
		return unauthenticated(fmt.Errorf("%w: %v", ErrUnauthenticated, err))
	}
	if !parsed.Valid {
		return unauthenticated(fmt.Errorf("%w: invalid token signature", ErrUnauthenticated))
	}

	validAud := false
	for _, audience := range j.Audiences {
		if claims.VerifyAudience(audience, true) {
			validAud = true
			break
		}
	}
	if !validAud {
		return unauthenticated(fmt.Errorf("%w: invalid audience: %v", ErrUnauthenticated, claims["aud"]))
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return unauthenticated(fmt.Errorf("%w: invalid subject: %v", ErrUnauthenticated, claims["sub"]))
	}

	now := time.Now()
	if !claims.VerifyExpiresAt(now.Unix(), true) {
		return unauthenticated(fmt.Errorf("%w: token expired or missing exp", ErrUnauthenticated))
	}
	expFloat, _ := claims["exp"].(float64)

	return &AuthenticationResult{
		Authenticated: true,
		Subject:       sub,
		Claims:        claims,
		Expiration:    time.Unix(int64(expFloat), 0),
	}, nil
}

func (j *JwtAuthenticator) Close() error {
	if j.jwks != nil {
		j.jwks.EndBackground()
	}
	return nil
}
