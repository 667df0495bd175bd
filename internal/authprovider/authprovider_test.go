package authprovider

import (
	"context"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	p := New(Config{Credentials: []Credential{{Provider: "anthropic", APIKey: "sk-ant-test"}}})

	cred, err := p.Resolve("anthropic")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cred.APIKey != "sk-ant-test" {
		t.Errorf("APIKey = %q, want sk-ant-test", cred.APIKey)
	}
}

func TestResolveUnknownProvider(t *testing.T) {
	p := New(Config{})
	if _, err := p.Resolve("openai"); err == nil {
		t.Error("expected error for unconfigured provider")
	}
}

func TestVerifyAPIKey(t *testing.T) {
	p := New(Config{Credentials: []Credential{{Provider: "openai", APIKey: "sk-test-key"}}})

	if !p.VerifyAPIKey("openai", "sk-test-key") {
		t.Error("expected matching key to verify")
	}
	if p.VerifyAPIKey("openai", "wrong-key") {
		t.Error("expected mismatched key to fail verification")
	}
	if p.VerifyAPIKey("google", "sk-test-key") {
		t.Error("expected unconfigured provider to fail verification")
	}
}

func TestSignAndVerifyRefreshEnvelope(t *testing.T) {
	p := New(Config{JWTSecret: "test-secret"})

	envelope, err := p.SignRefreshEnvelope("anthropic", time.Hour)
	if err != nil {
		t.Fatalf("SignRefreshEnvelope() error = %v", err)
	}

	provider, err := p.VerifyRefreshEnvelope(envelope)
	if err != nil {
		t.Fatalf("VerifyRefreshEnvelope() error = %v", err)
	}
	if provider != "anthropic" {
		t.Errorf("provider = %q, want anthropic", provider)
	}
}

func TestVerifyRefreshEnvelopeExpired(t *testing.T) {
	p := New(Config{JWTSecret: "test-secret"})

	envelope, err := p.SignRefreshEnvelope("openai", -time.Hour)
	if err != nil {
		t.Fatalf("SignRefreshEnvelope() error = %v", err)
	}
	if _, err := p.VerifyRefreshEnvelope(envelope); err == nil {
		t.Error("expected expired envelope to fail verification")
	}
}

func TestVerifyRefreshEnvelopeWithoutSecret(t *testing.T) {
	p := New(Config{})
	if _, err := p.SignRefreshEnvelope("anthropic", time.Hour); err == nil {
		t.Error("expected error when no JWTSecret is configured")
	}
}

func TestSetOverridesCredential(t *testing.T) {
	p := New(Config{Credentials: []Credential{{Provider: "anthropic", APIKey: "old-key"}}})
	p.Set(Credential{Provider: "anthropic", APIKey: "new-key"})

	cred, err := p.Resolve("anthropic")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cred.APIKey != "new-key" {
		t.Errorf("APIKey = %q, want new-key", cred.APIKey)
	}
}

func TestResolveContextPrefersResolver(t *testing.T) {
	p := New(Config{Credentials: []Credential{{Provider: "anthropic", APIKey: "static-key"}}})

	ctx := WithResolver(context.Background(), func(ctx context.Context, provider string) (Credential, error) {
		return Credential{Provider: provider, APIKey: "dynamic-key"}, nil
	})

	cred, err := p.ResolveContext(ctx, "anthropic")
	if err != nil {
		t.Fatalf("ResolveContext() error = %v", err)
	}
	if cred.APIKey != "dynamic-key" {
		t.Errorf("APIKey = %q, want dynamic-key", cred.APIKey)
	}
}

func TestResolveContextFallsBackToStatic(t *testing.T) {
	p := New(Config{Credentials: []Credential{{Provider: "anthropic", APIKey: "static-key"}}})

	cred, err := p.ResolveContext(context.Background(), "anthropic")
	if err != nil {
		t.Fatalf("ResolveContext() error = %v", err)
	}
	if cred.APIKey != "static-key" {
		t.Errorf("APIKey = %q, want static-key", cred.APIKey)
	}
}
