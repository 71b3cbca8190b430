package auth

import (
	"context"
	"fmt"

	"github.com/spiffe/go-spiffe/v2/bundle/jwtbundle"
	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/svid/jwtsvid"
	"github.com/spiffe/go-spiffe/v2/workloadapi"
)

type SpiffeAuthenticator struct {
	TrustDomain string   `yaml:"trust_domain"`
	Audiences   []string `yaml:"audiences"`
	Endpoint    string   `yaml:"endpoint"`
	trustDomain spiffeid.TrustDomain
	bundles     jwtbundle.Source
	jwtSource   *workloadapi.JWTSource
}

func (s *SpiffeAuthenticator) Type() string {
	return "spiffe"
}

// Init reads the configuration and connects to the SPIFFE Workload API for JWT bundles
func (s *SpiffeAuthenticator) Init(ctx context.Context, config map[string]interface{}) error {
	if err := s.configure(config); err != nil {
		return err
	}

	clientOptions := workloadapi.WithClientOptions(workloadapi.WithAddr(s.Endpoint))
	jwtSource, err := workloadapi.NewJWTSource(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to initialise JWT source: %w", err)
	}

	s.jwtSource = jwtSource
	s.bundles = jwtSource

	return nil
}

func (s *SpiffeAuthenticator) configure(config map[string]interface{}) error {
	trustDomain, ok := config["trust_domain"].(string)
	if !ok || trustDomain == "" {
		return fmt.Errorf("trust_domain is required")
	}

	td, err := spiffeid.TrustDomainFromString(trustDomain)
	if err != nil {
		return fmt.Errorf("invalid trust_domain: %w", err)
	}
	s.TrustDomain = trustDomain
	s.trustDomain = td

	endpoint, ok := config["endpoint"].(string)
	if !ok || endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	s.Endpoint = endpoint

	s.Audiences = stringSlice(config, "audiences")

	return nil
}

func (s *SpiffeAuthenticator) Authenticate(ctx context.Context, token string) (*AuthenticationResult, error) {
	if s.bundles == nil {
		return unauthenticated(fmt.Errorf("%w: spiffe authenticator is not initialised", ErrUnauthenticated))
	}

	svid, err := jwtsvid.ParseAndValidate(token, s.bundles, s.Audiences)
	if err != nil {
		return unauthenticated(fmt.Errorf("%w: invalid token: %v", ErrUnauthenticated, err))
	}

	if !svid.ID.MemberOf(s.trustDomain) {
		return unauthenticated(fmt.Errorf("%w: %s is not a member of trust domain %s",
			ErrUnauthenticated, svid.ID, s.trustDomain))
	}

	claims := make(map[string]interface{})
	for k, v := range svid.Claims {
		claims[k] = v
	}

	return &AuthenticationResult{
		Authenticated: true,
		Subject:       svid.ID.String(),
		Claims:        claims,
		Expiration:    svid.Expiry,
	}, nil
}

func (s *SpiffeAuthenticator) Close() error {
	if s.jwtSource != nil {
		return s.jwtSource.Close()
	}
	return nil
}
