package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/payoutcore-backend/pkg/config"
)

func TestMintAndParseOperatorToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "payoutcore",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()

	token, err := MintOperatorToken(cfg, now, "ops@example.com")
	if err != nil {
		t.Fatalf("mint operator token: %v", err)
	}

	claims, err := ParseOperatorToken(cfg, token)
	if err != nil {
		t.Fatalf("parse operator token: %v", err)
	}
	if !claims.IsOperator() {
		t.Fatalf("expected operator role, got %q", claims.Role)
	}
	if claims.Subject != "ops@example.com" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	exp := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v", exp, claims.ExpiresAt.Time)
	}
}

func TestParseOperatorTokenInvalidSignature(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "payoutcore", ExpirationMinutes: 10}
	token, err := MintOperatorToken(cfg, time.Now(), "ops")
	if err != nil {
		t.Fatalf("mint operator token: %v", err)
	}

	wrong := cfg
	wrong.Secret = "other"
	if _, err := ParseOperatorToken(wrong, token); err == nil {
		t.Fatal("expected signature validation error")
	}
}

func TestParseOperatorTokenExpired(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "payoutcore", ExpirationMinutes: 1}
	token, err := MintOperatorToken(cfg, time.Now().Add(-2*time.Hour), "ops")
	if err != nil {
		t.Fatalf("mint operator token: %v", err)
	}
	if _, err := ParseOperatorToken(cfg, token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseOperatorTokenRejectsOtherAlgorithms(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "payoutcore", ExpirationMinutes: 10}
	claims := OperatorClaims{Role: RoleOperator, RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseOperatorToken(cfg, token); err == nil {
		t.Fatal("expected HS512 token to be rejected")
	}
}

func TestMintOperatorTokenValidatesConfig(t *testing.T) {
	if _, err := MintOperatorToken(config.JWTConfig{}, time.Now(), "ops"); err == nil {
		t.Fatal("expected missing secret error")
	}
	if _, err := MintOperatorToken(config.JWTConfig{Secret: "s", Issuer: "i", ExpirationMinutes: 5}, time.Now(), " "); err == nil {
		t.Fatal("expected missing subject error")
	}
}
