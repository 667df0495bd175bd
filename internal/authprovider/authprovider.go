// Package authprovider implements the AuthProvider capability: resolution of
// per-provider model credentials (API keys, base URLs) for ModelClient. It
// generalizes the teacher's internal/auth.Service — which authenticates
// end users via JWT/API key — into a capability that authenticates this
// runtime's own outbound requests to Anthropic/OpenAI/Google, grounded on
// the same constant-time comparison and JWT machinery.
package authprovider

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoCredential is returned when no credential is registered for a provider.
	ErrNoCredential = errors.New("authprovider: no credential configured for provider")
	// ErrInvalidEnvelope is returned when a persisted refresh-token envelope fails validation.
	ErrInvalidEnvelope = errors.New("authprovider: invalid refresh token envelope")
)

// Credential is the resolved authentication material for one model provider.
type Credential struct {
	Provider string
	APIKey   string
	BaseURL  string
}

// Config declares the static credentials an AuthProvider is seeded with.
type Config struct {
	Credentials []Credential
	// JWTSecret, if set, enables Sign/Verify for persisted refresh-token
	// envelopes (e.g. short-lived OAuth tokens cached to disk between runs).
	JWTSecret string
}

// AuthProvider resolves per-provider model credentials and, when
// configured with a JWTSecret, signs/verifies refresh-token envelopes so a
// short-lived OAuth token can be persisted between process runs without
// storing it in plaintext.
type AuthProvider struct {
	mu          sync.RWMutex
	credentials map[string]Credential
	jwtSecret   []byte
}

// New builds an AuthProvider from config.
func New(cfg Config) *AuthProvider {
	p := &AuthProvider{credentials: make(map[string]Credential, len(cfg.Credentials))}
	for _, c := range cfg.Credentials {
		provider := strings.TrimSpace(c.Provider)
		if provider == "" {
			continue
		}
		p.credentials[provider] = c
	}
	if strings.TrimSpace(cfg.JWTSecret) != "" {
		p.jwtSecret = []byte(cfg.JWTSecret)
	}
	return p
}

// Resolve returns the credential configured for provider ("anthropic",
// "openai", "google").
func (p *AuthProvider) Resolve(provider string) (Credential, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cred, ok := p.credentials[provider]
	if !ok {
		return Credential{}, fmt.Errorf("%w: %s", ErrNoCredential, provider)
	}
	return cred, nil
}

// Set registers or replaces the credential for a provider at runtime (used
// when a resolved OAuth token is refreshed mid-session).
func (p *AuthProvider) Set(cred Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.credentials[cred.Provider] = cred
}

// VerifyAPIKey compares key against the configured credential for provider
// using a constant-time comparison, mirroring the teacher's
// internal/auth.Service.ValidateAPIKey timing-attack protection.
func (p *AuthProvider) VerifyAPIKey(provider, key string) bool {
	cred, err := p.Resolve(provider)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(key)), []byte(cred.APIKey)) == 1
}

// RefreshClaims is the payload of a persisted refresh-token envelope.
type RefreshClaims struct {
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// SignRefreshEnvelope signs a refresh-token envelope for provider, valid
// for ttl. Used to persist short-lived OAuth tokens between process runs
// without storing the raw token on disk.
func (p *AuthProvider) SignRefreshEnvelope(provider string, ttl time.Duration) (string, error) {
	if len(p.jwtSecret) == 0 {
		return "", errors.New("authprovider: no JWTSecret configured")
	}
	claims := RefreshClaims{
		Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.jwtSecret)
}

// VerifyRefreshEnvelope parses and validates a previously signed envelope,
// returning the provider it was issued for.
func (p *AuthProvider) VerifyRefreshEnvelope(envelope string) (string, error) {
	if len(p.jwtSecret) == 0 {
		return "", errors.New("authprovider: no JWTSecret configured")
	}
	parsed, err := jwt.ParseWithClaims(envelope, &RefreshClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.jwtSecret, nil
	})
	if err != nil {
		return "", ErrInvalidEnvelope
	}
	claims, ok := parsed.Claims.(*RefreshClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Provider) == "" {
		return "", ErrInvalidEnvelope
	}
	return claims.Provider, nil
}

// Resolver resolves a credential dynamically for a call, generalizing the
// teacher's internal/agent.APIKeyResolver context-carried hook (used in
// loop.go's streamPhase for short-lived OAuth tokens that may expire during
// long-running turns).
type Resolver func(ctx context.Context, provider string) (Credential, error)

type resolverKey struct{}

// WithResolver stores a Resolver in ctx, overriding the AuthProvider's
// static credential lookup for the lifetime of that context.
func WithResolver(ctx context.Context, resolver Resolver) context.Context {
	return context.WithValue(ctx, resolverKey{}, resolver)
}

// ResolverFromContext retrieves the Resolver stored by WithResolver, or nil.
func ResolverFromContext(ctx context.Context) Resolver {
	resolver, _ := ctx.Value(resolverKey{}).(Resolver)
	return resolver
}

// ResolveContext resolves a credential for provider, preferring a
// context-carried Resolver over the AuthProvider's static table.
func (p *AuthProvider) ResolveContext(ctx context.Context, provider string) (Credential, error) {
	if resolver := ResolverFromContext(ctx); resolver != nil {
		return resolver(ctx, provider)
	}
	return p.Resolve(provider)
}
