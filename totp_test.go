package goIdentity

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func codeAt(t *testing.T, secret string, at time.Time, digits otp.Digits) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    digits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	return code
}

// RFC 6238 appendix B, SHA1 seed "12345678901234567890".
func TestTOTPValidateRFCVectorsSHA1(t *testing.T) {
	const secret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
	m := newTOTPManager(TwoFactorConfig{Issuer: "Analytics", Digits: 8, Period: 30, Skew: 0})

	vectors := []struct {
		unix int64
		code string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
	}
	for _, v := range vectors {
		if counter, ok := m.Verify(v.code, secret, time.Unix(v.unix, 0)); !ok || counter != v.unix/30 {
			t.Fatalf("expected RFC vector %s at %d to match step %d, got %d %v", v.code, v.unix, v.unix/30, counter, ok)
		}
	}
}

func TestTOTPGenerateProvisioningURL(t *testing.T) {
	m := newTOTPManager(DefaultConfig().TwoFactor)
	secret, rawURL, err := m.Generate("alice@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if secret == "" {
		t.Fatal("expected secret")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Scheme != "otpauth" || u.Host != "totp" {
		t.Fatalf("unexpected otpauth url %q", rawURL)
	}
	if !strings.Contains(u.Path, "alice@example.com") {
		t.Fatalf("expected account name in path, got %q", u.Path)
	}
	if got := u.Query().Get("issuer"); got != "Analytics" {
		t.Fatalf("expected issuer Analytics, got %q", got)
	}
	if got := u.Query().Get("secret"); got != secret {
		t.Fatalf("expected url secret to match, got %q", got)
	}
}

func TestTOTPSkewWindow(t *testing.T) {
	m := newTOTPManager(TwoFactorConfig{Issuer: "x", Digits: 6, Period: 30, Skew: 1})
	secret, _, err := m.Generate("bob@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	now := time.Unix(1_700_000_010, 0)
	if _, ok := m.Verify(codeAt(t, secret, now.Add(-30*time.Second), otp.DigitsSix), secret, now); !ok {
		t.Fatal("expected previous step to be accepted within skew")
	}
	if _, ok := m.Verify(codeAt(t, secret, now.Add(30*time.Second), otp.DigitsSix), secret, now); !ok {
		t.Fatal("expected next step to be accepted within skew")
	}
	if _, ok := m.Verify(codeAt(t, secret, now.Add(-90*time.Second), otp.DigitsSix), secret, now); ok {
		t.Fatal("expected code three steps old to be rejected")
	}
}

func TestTOTPRejectsWrongLengthAndEmptySecret(t *testing.T) {
	m := newTOTPManager(TwoFactorConfig{Issuer: "x", Digits: 6, Period: 30, Skew: 1})
	secret, _, err := m.Generate("carol@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	now := time.Now()
	code := codeAt(t, secret, now, otp.DigitsSix)

	if _, ok := m.Verify(code+"0", secret, now); ok {
		t.Fatal("expected 7-digit input to be rejected")
	}
	if _, ok := m.Verify(code, "", now); ok {
		t.Fatal("expected empty secret to be rejected")
	}
	if _, ok := m.Verify(" "+code+" ", secret, now); !ok {
		t.Fatal("expected surrounding whitespace to be ignored")
	}
}

func TestTOTPVerifyReturnsMatchedStep(t *testing.T) {
	m := newTOTPManager(TwoFactorConfig{Issuer: "x", Digits: 6, Period: 30, Skew: 1})
	secret, _, err := m.Generate("dan@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	now := time.Unix(1_700_000_010, 0)
	base := now.Unix() / 30

	if got, ok := m.Verify(codeAt(t, secret, now.Add(-30*time.Second), otp.DigitsSix), secret, now); !ok || got != base-1 {
		t.Fatalf("expected previous step %d, got %d %v", base-1, got, ok)
	}
	if got, ok := m.Verify(codeAt(t, secret, now, otp.DigitsSix), secret, now); !ok || got != base {
		t.Fatalf("expected current step %d, got %d %v", base, got, ok)
	}
}
