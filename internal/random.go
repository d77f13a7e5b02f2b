package internal

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/hex"
	"strings"
)

const recoveryCodeRawSize = 10

var recoveryEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// HashRefreshToken returns hex(HMAC-SHA256(pepper, raw)). The ledger stores only this value.
func HashRefreshToken(pepper []byte, raw string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewRecoveryCode returns a random 16-character code grouped as XXXX-XXXX-XXXX-XXXX.
func NewRecoveryCode() (string, error) {
	var raw [recoveryCodeRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	encoded := recoveryEncoding.EncodeToString(raw[:])

	var b strings.Builder
	b.Grow(len(encoded) + 3)
	for i := 0; i < len(encoded); i += 4 {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(encoded[i : i+4])
	}
	return b.String(), nil
}

// NormalizeRecoveryCode strips separators and whitespace and upper-cases the input.
func NormalizeRecoveryCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer("-", "", " ", "").Replace(code)
}

// HashRecoveryCode returns hex(SHA-256(normalized code)).
func HashRecoveryCode(code string) string {
	sum := sha256.Sum256([]byte(NormalizeRecoveryCode(code)))
	return hex.EncodeToString(sum[:])
}

// EqualHash compares two hex digests in constant time.
func EqualHash(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
