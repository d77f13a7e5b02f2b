package password

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	return Config{
		Memory:      8192,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T, cfg Config) *Hasher {
	t.Helper()
	h, err := NewHasher(cfg)
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t, testConfig())
	ctx := context.Background()

	hash, err := h.Hash(ctx, "P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := h.Verify(ctx, "P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}

	ok, err = h.Verify(ctx, "wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestVerifyEmptyHashNeverMatches(t *testing.T) {
	h := newTestHasher(t, testConfig())

	ok, err := h.Verify(context.Background(), "anything", "")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected empty stored hash to never match")
	}
}

func TestVerifyLegacyBcrypt(t *testing.T) {
	h := newTestHasher(t, testConfig())

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	ok, err := h.Verify(context.Background(), "legacy-password", string(legacy))
	if err != nil || !ok {
		t.Fatalf("expected legacy bcrypt hash to verify: ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify(context.Background(), "other", string(legacy))
	if err != nil || ok {
		t.Fatalf("expected legacy mismatch: ok=%v err=%v", ok, err)
	}
	if !h.NeedsRehash(string(legacy)) {
		t.Fatal("expected bcrypt hash to need rehash")
	}
}

func TestNeedsRehash(t *testing.T) {
	old := newTestHasher(t, testConfig())
	hash, err := old.Hash(context.Background(), "test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if old.NeedsRehash(hash) {
		t.Fatal("expected current parameters to not need rehash")
	}

	stronger := testConfig()
	stronger.Time = 2
	if !newTestHasher(t, stronger).NeedsRehash(hash) {
		t.Fatal("expected weaker hash to need rehash")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := newTestHasher(t, testConfig())

	cases := []string{
		"not-a-phc-hash",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
		"$argon2id$v=19$m=1,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5",
	}
	for _, encoded := range cases {
		if _, err := h.Verify(context.Background(), "password", encoded); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("expected ErrMalformedHash for %q, got %v", encoded, err)
		}
	}
}

func TestHashRejectsEmptyAndOversized(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPasswordBytes = 64
	h := newTestHasher(t, cfg)

	if _, err := h.Hash(context.Background(), ""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
	if _, err := h.Hash(context.Background(), strings.Repeat("a", 65)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if _, err := h.Hash(context.Background(), strings.Repeat("b", 64)); err != nil {
		t.Fatalf("expected exactly-max password to be accepted: %v", err)
	}
}

func TestHashWaitsForSlot(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	h := newTestHasher(t, cfg)

	// Occupy the only slot.
	h.slots <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := h.Hash(ctx, "blocked-password"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while slot is held, got %v", err)
	}

	h.release()
	if _, err := h.Hash(context.Background(), "free-password"); err != nil {
		t.Fatalf("expected hash to succeed after release: %v", err)
	}
}

func TestNewHasherValidation(t *testing.T) {
	cfg := testConfig()
	cfg.Memory = 1024
	if _, err := NewHasher(cfg); err == nil {
		t.Fatal("expected low memory to be rejected")
	}
	cfg = testConfig()
	cfg.SaltLength = 8
	if _, err := NewHasher(cfg); err == nil {
		t.Fatal("expected short salt to be rejected")
	}
}
