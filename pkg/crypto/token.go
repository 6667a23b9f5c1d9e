package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const membershipAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RandomToken returns 2*n hex characters from crypto/rand.
func RandomToken(n int) (string, error) {
	if n <= 0 {
		n = 16
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// QRToken is the opaque value encoded in a member's QR code.
func QRToken() (string, error) {
	token, err := RandomToken(24)
	if err != nil {
		return "", err
	}
	return "GMQR-" + token, nil
}

// NumericCode returns a zero-padded code of the given number of digits.
func NumericCode(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("invalid code length %d", digits)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

// MembershipNumber formats GM-YYYY-XXXXXX with an unambiguous alphabet.
func MembershipNumber(at time.Time) (string, error) {
	var b strings.Builder
	b.Grow(6)
	max := big.NewInt(int64(len(membershipAlphabet)))
	for i := 0; i < 6; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(membershipAlphabet[n.Int64()])
	}
	return fmt.Sprintf("GM-%04d-%s", at.UTC().Year(), b.String()), nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// EqualHash compares two hex digests in constant time.
func EqualHash(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
