package jwtutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const issuer = "gymmaster"

type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func NewClaims(userID, role, email string, expiry time.Duration) *Claims {
	now := time.Now().UTC()
	return &Claims{
		UserID: userID,
		Role:   role,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
}

func GenerateAccessToken(claims *Claims, privateKey *rsa.PrivateKey) (string, error) {
	if privateKey == nil {
		return "", errors.New("private key is nil")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(privateKey)
}

func GenerateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func ParseAccessToken(tokenStr string, publicKey *rsa.PublicKey) (*Claims, error) {
	if publicKey == nil {
		return nil, errors.New("public key is nil")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return claims, nil
}

// LoadPrivateKey reads a PEM key from the inline value or, when empty, from path.
func LoadPrivateKey(inline, path string) (*rsa.PrivateKey, error) {
	raw, err := readPEM(inline, path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPrivateKeyFromPEM(raw)
}

// LoadPublicKey falls back to the private key's public half when no public key is configured.
func LoadPublicKey(inline, path string, privateKey *rsa.PrivateKey) (*rsa.PublicKey, error) {
	raw, err := readPEM(inline, path)
	if err != nil {
		if privateKey != nil {
			return &privateKey.PublicKey, nil
		}
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(raw)
}

func readPEM(inline, path string) ([]byte, error) {
	if value := strings.TrimSpace(inline); value != "" {
		return []byte(value), nil
	}
	if p := strings.TrimSpace(path); p != "" {
		// #nosec G304 -- path is provided by operator config.
		return os.ReadFile(p)
	}
	return nil, errors.New("jwt key not configured")
}
