package stores

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSSOReserveFillConsume(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSSOCorrelationStore(rdb, "sso", 300*time.Second, false)
	ctx := context.Background()
	state := "google:0b5c3c5e-5b0e-4c7a-9f38-0f4af3fc4d11"

	if err := store.Reserve(ctx, state); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if got, err := mr.Get("sso:" + state); err != nil || got != "" {
		t.Fatalf("expected pending empty value, got %q err=%v", got, err)
	}

	if _, err := store.Consume(ctx, state); !errors.Is(err, ErrSSONotReady) {
		t.Fatalf("expected ErrSSONotReady before fill, got %v", err)
	}
	if !mr.Exists("sso:" + state) {
		t.Fatal("expected pending entry to survive a not-ready consume")
	}

	if err := store.Fill(ctx, state, SSOIdentity{Sub: "g42", Email: "a@b.com"}); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	identity, err := store.Consume(ctx, state)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if identity.Sub != "g42" || identity.Email != "a@b.com" {
		t.Fatalf("unexpected identity %+v", identity)
	}

	if _, err := store.Consume(ctx, state); !errors.Is(err, ErrSSONotFound) {
		t.Fatalf("expected ErrSSONotFound on second consume, got %v", err)
	}
}

func TestSSOFillRequiresPendingEntry(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewSSOCorrelationStore(rdb, "sso", 300*time.Second, false)
	ctx := context.Background()

	if err := store.Fill(ctx, "github:missing", SSOIdentity{ID: 7, Email: "x@y.z"}); !errors.Is(err, ErrSSONotFound) {
		t.Fatalf("expected ErrSSONotFound, got %v", err)
	}

	state := "github:6a0f"
	if err := store.Reserve(ctx, state); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := store.Fill(ctx, state, SSOIdentity{ID: 7, Email: "x@y.z"}); err != nil {
		t.Fatalf("first Fill: %v", err)
	}
	if err := store.Fill(ctx, state, SSOIdentity{ID: 8, Email: "evil@y.z"}); !errors.Is(err, ErrSSOAlreadyFilled) {
		t.Fatalf("expected ErrSSOAlreadyFilled, got %v", err)
	}

	identity, err := store.Consume(ctx, state)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if identity.ID != 7 {
		t.Fatalf("expected first identity to win, got %+v", identity)
	}
}

func TestSSOPendingReportsEntryState(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSSOCorrelationStore(rdb, "sso", 300*time.Second, false)
	ctx := context.Background()
	state := "github:2c41"

	if err := store.Pending(ctx, state); !errors.Is(err, ErrSSONotFound) {
		t.Fatalf("expected ErrSSONotFound for unknown state, got %v", err)
	}
	if mr.Exists("sso:" + state) {
		t.Fatal("Pending must not create an entry")
	}

	if err := store.Reserve(ctx, state); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := store.Pending(ctx, state); err != nil {
		t.Fatalf("expected pending entry, got %v", err)
	}

	if err := store.Fill(ctx, state, SSOIdentity{ID: 9, Email: "p@q.r"}); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if err := store.Pending(ctx, state); !errors.Is(err, ErrSSOAlreadyFilled) {
		t.Fatalf("expected ErrSSOAlreadyFilled after fill, got %v", err)
	}

	mr.FastForward(301 * time.Second)
	if err := store.Pending(ctx, state); !errors.Is(err, ErrSSONotFound) {
		t.Fatalf("expected ErrSSONotFound after expiry, got %v", err)
	}
}

func TestSSOFillResetsTTLByDefault(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSSOCorrelationStore(rdb, "sso", 300*time.Second, false)
	ctx := context.Background()
	state := "google:ttl-reset"

	if err := store.Reserve(ctx, state); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	mr.FastForward(200 * time.Second)

	if err := store.Fill(ctx, state, SSOIdentity{Sub: "g1", Email: "a@b.com"}); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if ttl := mr.TTL("sso:" + state); ttl != 300*time.Second {
		t.Fatalf("expected TTL reset to 300s, got %v", ttl)
	}
}

func TestSSOFillKeepsTTLWhenConfigured(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSSOCorrelationStore(rdb, "sso", 300*time.Second, true)
	ctx := context.Background()
	state := "google:ttl-keep"

	if err := store.Reserve(ctx, state); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	mr.FastForward(200 * time.Second)

	if err := store.Fill(ctx, state, SSOIdentity{Sub: "g1", Email: "a@b.com"}); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if ttl := mr.TTL("sso:" + state); ttl != 100*time.Second {
		t.Fatalf("expected remaining TTL of 100s, got %v", ttl)
	}
}

func TestSSOEntryExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSSOCorrelationStore(rdb, "sso", 300*time.Second, false)
	ctx := context.Background()
	state := "google:expiring"

	if err := store.Reserve(ctx, state); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	mr.FastForward(301 * time.Second)

	if err := store.Fill(ctx, state, SSOIdentity{Sub: "g1", Email: "a@b.com"}); !errors.Is(err, ErrSSONotFound) {
		t.Fatalf("expected expired state to be gone, got %v", err)
	}
	if _, err := store.Consume(ctx, state); !errors.Is(err, ErrSSONotFound) {
		t.Fatalf("expected ErrSSONotFound after expiry, got %v", err)
	}
}

func TestSSOConsumeCorruptedPayload(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSSOCorrelationStore(rdb, "sso", 300*time.Second, false)
	ctx := context.Background()
	state := "google:corrupt"

	if err := mr.Set("sso:"+state, "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := store.Consume(ctx, state); !errors.Is(err, ErrSSOCorrupted) {
		t.Fatalf("expected ErrSSOCorrupted, got %v", err)
	}
	if _, err := store.Consume(ctx, state); !errors.Is(err, ErrSSONotFound) {
		t.Fatalf("expected corrupted entry to be removed, got %v", err)
	}
}

func TestSSOConcurrentConsumeYieldsOneWinner(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewSSOCorrelationStore(rdb, "sso", 300*time.Second, false)
	ctx := context.Background()
	state := "github:race"

	if err := store.Reserve(ctx, state); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := store.Fill(ctx, state, SSOIdentity{ID: 99, Email: "r@c.e"}); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, state); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one consumer to win, got %d", winners)
	}
}

func TestSSORedisUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSSOCorrelationStore(rdb, "sso", 300*time.Second, false)
	mr.Close()

	if err := store.Reserve(context.Background(), "google:down"); !errors.Is(err, ErrSSORedisUnavailable) {
		t.Fatalf("expected ErrSSORedisUnavailable, got %v", err)
	}
	if err := store.Pending(context.Background(), "google:down"); !errors.Is(err, ErrSSORedisUnavailable) {
		t.Fatalf("expected ErrSSORedisUnavailable from Pending, got %v", err)
	}
}
