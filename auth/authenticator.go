package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type AuthenticationResult struct {
	Authenticated bool
	Subject       string
	Claims        map[string]interface{}
	Expiration    time.Time
}

// IsExpired reports whether the result expired before now. A zero Expiration never expires.
func (r *AuthenticationResult) IsExpired(now time.Time) bool {
	return !r.Expiration.IsZero() && now.After(r.Expiration)
}

type Authenticator interface {
	Type() string
	Init(ctx context.Context, config map[string]interface{}) error
	Authenticate(ctx context.Context, token string) (*AuthenticationResult, error)
	Close() error
}

const bearerPrefix = "Bearer "

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	return token, token != ""
}

type resultKey struct{}

// WithResult attaches an authentication result to ctx
func WithResult(ctx context.Context, result *AuthenticationResult) context.Context {
	return context.WithValue(ctx, resultKey{}, result)
}

// ResultFromContext returns the result attached by the authentication middleware
func ResultFromContext(ctx context.Context) (*AuthenticationResult, bool) {
	result, ok := ctx.Value(resultKey{}).(*AuthenticationResult)
	return result, ok
}

func stringSlice(config map[string]interface{}, key string) []string {
	var values []string
	switch raw := config[key].(type) {
	case []interface{}:
		for _, v := range raw {
			if s, ok := v.(string); ok {
				values = append(values, s)
			}
		}
	case []string:
		values = append(values, raw...)
	case string:
		values = append(values, raw)
	}
	return values
}

func unauthenticated(err error) (*AuthenticationResult, error) {
	return &AuthenticationResult{Authenticated: false}, err
}
