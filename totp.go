package goIdentity

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpManager wraps pquerna/otp with the configured digits, period and skew. SHA1 is fixed
// because authenticator apps ignore the algorithm parameter.
type totpManager struct {
	issuer string
	digits otp.Digits
	period uint
	skew   uint
}

func newTOTPManager(cfg TwoFactorConfig) *totpManager {
	digits := otp.DigitsSix
	if cfg.Digits == 8 {
		digits = otp.DigitsEight
	}
	return &totpManager{
		issuer: cfg.Issuer,
		digits: digits,
		period: cfg.Period,
		skew:   cfg.Skew,
	}
}

// Generate returns a base32 secret and its otpauth:// provisioning URL.
func (m *totpManager) Generate(account string) (string, string, error) {
	if m == nil {
		return "", "", ErrEngineNotReady
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: account,
		Period:      m.period,
		Digits:      m.digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// Verify checks code against secret within +-skew periods of now and returns the time
// step it matched. The step feeds the replay guard.
func (m *totpManager) Verify(code, secret string, now time.Time) (int64, bool) {
	if m == nil || secret == "" {
		return 0, false
	}
	code = strings.TrimSpace(code)
	if len(code) != m.digits.Length() {
		return 0, false
	}
	opts := totp.ValidateOpts{
		Period:    m.period,
		Digits:    m.digits,
		Algorithm: otp.AlgorithmSHA1,
	}
	period := int64(m.period)
	base := now.Unix() / period
	for step := -int64(m.skew); step <= int64(m.skew); step++ {
		counter := base + step
		if counter < 0 {
			continue
		}
		want, err := totp.GenerateCodeCustom(secret, time.Unix(counter*period, 0).UTC(), opts)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return counter, true
		}
	}
	return 0, false
}
