package internal

import (
	"regexp"
	"testing"
)

func TestHashRefreshTokenDependsOnPepper(t *testing.T) {
	a := HashRefreshToken([]byte("pepper-a"), "token")
	b := HashRefreshToken([]byte("pepper-b"), "token")
	if a == b {
		t.Fatal("expected different peppers to produce different hashes")
	}
	if a != HashRefreshToken([]byte("pepper-a"), "token") {
		t.Fatal("expected hash to be deterministic")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestNewRecoveryCodeShape(t *testing.T) {
	shape := regexp.MustCompile(`^[A-Z2-7]{4}-[A-Z2-7]{4}-[A-Z2-7]{4}-[A-Z2-7]{4}$`)
	seen := map[string]struct{}{}
	for i := 0; i < 32; i++ {
		code, err := NewRecoveryCode()
		if err != nil {
			t.Fatalf("NewRecoveryCode: %v", err)
		}
		if !shape.MatchString(code) {
			t.Fatalf("unexpected code shape %q", code)
		}
		if _, dup := seen[code]; dup {
			t.Fatalf("duplicate recovery code %q", code)
		}
		seen[code] = struct{}{}
	}
}

func TestHashRecoveryCodeNormalizes(t *testing.T) {
	want := HashRecoveryCode("ABCD-EFGH-IJKL-MNOP")
	if got := HashRecoveryCode(" abcd efgh-ijkl mnop "); !EqualHash(want, got) {
		t.Fatalf("expected normalized hashes to match: %s != %s", want, got)
	}
}

func TestEqualHashRejectsEmpty(t *testing.T) {
	if EqualHash("", "") {
		t.Fatal("expected empty digests to never compare equal")
	}
}
