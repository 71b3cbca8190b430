package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

type AuthManager struct {
	authenticators map[string]Authenticator
	mu             sync.RWMutex
}

func NewAuthManager() *AuthManager {
	return &AuthManager{
		authenticators: make(map[string]Authenticator),
	}
}

func (am *AuthManager) RegisterAuthenticator(auth Authenticator) error {
	am.mu.Lock()
	defer am.mu.Unlock()

	typ := auth.Type()
	if _, exists := am.authenticators[typ]; exists {
		return fmt.Errorf("authenticator with type %s already registered", typ)
	}

	am.authenticators[typ] = auth
	return nil
}

func (am *AuthManager) GetAuthenticator(name string) (Authenticator, error) {
	am.mu.RLock()
	defer am.mu.RUnlock()

	auth, exists := am.authenticators[name]
	if !exists {
		return nil, fmt.Errorf("authenticator with name %s not found", name)
	}

	return auth, nil
}

func (am *AuthManager) Authenticate(ctx context.Context, name string, token string) (*AuthenticationResult, error) {
	auth, err := am.GetAuthenticator(name)
	if err != nil {
		return nil, err
	}

	return auth.Authenticate(ctx, token)
}

// Middleware rejects requests without a bearer token accepted by the named authenticator
func (am *AuthManager) Middleware(name string, logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r.Header.Get("Authorization"))
		if !ok {
			logger.Debug("request without bearer token", zap.String("path", r.URL.Path))
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		result, err := am.Authenticate(r.Context(), name, token)
		if err != nil || result == nil || !result.Authenticated {
			logger.Warn("authentication failed",
				zap.String("auth_type", name),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		logger.Debug("request authenticated",
			zap.String("auth_type", name),
			zap.String("subject", result.Subject),
		)
		next.ServeHTTP(w, r.WithContext(WithResult(r.Context(), result)))
	})
}

func (am *AuthManager) Close() error {
	am.mu.Lock()
	defer am.mu.Unlock()

	var errs []error
	for name, auth := range am.authenticators {
		if err := auth.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close authenticator %s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
