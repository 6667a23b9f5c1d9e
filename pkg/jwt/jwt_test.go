package jwtutil

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	token, err := GenerateAccessToken(NewClaims("user-1", "ADMIN", "desk@gym.test", time.Minute), key)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := ParseAccessToken(token, &key.PublicKey)
	if err != nil {
		t.Fatalf("ParseAccessToken() error = %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "ADMIN" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	token, err := GenerateAccessToken(NewClaims("user-1", "MEMBER", "", -time.Minute), key)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if _, err := ParseAccessToken(token, &key.PublicKey); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestLoadPublicKeyFallsBackToPrivate(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pub, err := LoadPublicKey("", "", key)
	if err != nil {
		t.Fatalf("LoadPublicKey() error = %v", err)
	}
	if pub.N.Cmp(key.PublicKey.N) != 0 {
		t.Fatalf("expected public half of private key")
	}
}
