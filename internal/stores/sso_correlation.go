package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrSSONotFound         = errors.New("sso correlation not found")
	ErrSSONotReady         = errors.New("sso correlation not ready")
	ErrSSOCorrupted        = errors.New("sso correlation payload corrupted")
	ErrSSOAlreadyFilled    = errors.New("sso correlation already filled")
	ErrSSORedisUnavailable = errors.New("sso redis unavailable")
)

// fillSSOLua writes the identity only while the key is still pending.
// KEYS[1] = correlation key
// ARGV[1] = encoded identity
// ARGV[2] = "1" to keep the remaining TTL, "0" to reset it
// ARGV[3] = TTL in milliseconds (used when ARGV[2] == "0")
//
// Returns "OK" or error string: "not_found", "already_filled"
var fillSSOLua = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
  return {err='not_found'}
end
if current ~= '' then
  return {err='already_filled'}
end
if ARGV[2] == '1' then
  redis.call('SET', KEYS[1], ARGV[1], 'KEEPTTL')
else
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
end
return 'OK'
`)

// consumeSSOLua atomically reads and deletes a filled correlation entry.
// A pending entry is left in place so the client can keep polling.
// KEYS[1] = correlation key
//
// Returns the stored payload or error string: "not_found", "not_ready"
var consumeSSOLua = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
  return {err='not_found'}
end
if current == '' then
  return {err='not_ready'}
end
redis.call('DEL', KEYS[1])
return current
`)

// SSOIdentity is the JSON payload stored once the provider exchange completes.
// Google identities carry Sub; GitHub identities carry the numeric ID.
type SSOIdentity struct {
	Sub   string `json:"sub,omitempty"`
	ID    int64  `json:"id,omitempty"`
	Email string `json:"email"`
}

// SSOCorrelationStore keeps one short-lived key per SSO attempt, laid out as
// {prefix}:{provider}:{uuid}. The value is "" while pending and JSON once filled.
type SSOCorrelationStore struct {
	redis         redis.UniversalClient
	prefix        string
	ttl           time.Duration
	keepTTLOnFill bool
}

func NewSSOCorrelationStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration, keepTTLOnFill bool) *SSOCorrelationStore {
	if prefix == "" {
		prefix = "sso"
	}
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &SSOCorrelationStore{
		redis:         redisClient,
		prefix:        prefix,
		ttl:           ttl,
		keepTTLOnFill: keepTTLOnFill,
	}
}

// TTL is the lifetime of a reserved entry.
func (s *SSOCorrelationStore) TTL() time.Duration {
	return s.ttl
}

func (s *SSOCorrelationStore) key(state string) string {
	return s.prefix + ":" + state
}

// Reserve creates the pending entry for state. Reserving an existing state fails.
func (s *SSOCorrelationStore) Reserve(ctx context.Context, state string) error {
	ok, err := s.redis.SetNX(ctx, s.key(state), "", s.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSSORedisUnavailable, err)
	}
	if !ok {
		return ErrSSOAlreadyFilled
	}
	return nil
}

// Pending reports whether state is reserved and not yet filled. It does not reserve
// anything; Fill still checks atomically.
func (s *SSOCorrelationStore) Pending(ctx context.Context, state string) error {
	value, err := s.redis.Get(ctx, s.key(state)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrSSONotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSSORedisUnavailable, err)
	}
	if value != "" {
		return ErrSSOAlreadyFilled
	}
	return nil
}

// Fill stores identity under a pending state.
func (s *SSOCorrelationStore) Fill(ctx context.Context, state string, identity SSOIdentity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return err
	}

	keep := "0"
	if s.keepTTLOnFill {
		keep = "1"
	}

	err = fillSSOLua.Run(ctx, s.redis,
		[]string{s.key(state)},
		string(payload),
		keep,
		s.ttl.Milliseconds(),
	).Err()
	if err != nil {
		switch err.Error() {
		case "not_found":
			return ErrSSONotFound
		case "already_filled":
			return ErrSSOAlreadyFilled
		default:
			return fmt.Errorf("%w: %v", ErrSSORedisUnavailable, err)
		}
	}
	return nil
}

// Consume returns the identity stored under state and deletes it. A second Consume of
// the same state returns ErrSSONotFound. A payload that does not decode is deleted too
// and reported as ErrSSOCorrupted.
func (s *SSOCorrelationStore) Consume(ctx context.Context, state string) (SSOIdentity, error) {
	result, err := consumeSSOLua.Run(ctx, s.redis, []string{s.key(state)}).Result()
	if err != nil {
		switch err.Error() {
		case "not_found":
			return SSOIdentity{}, ErrSSONotFound
		case "not_ready":
			return SSOIdentity{}, ErrSSONotReady
		default:
			return SSOIdentity{}, fmt.Errorf("%w: %v", ErrSSORedisUnavailable, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return SSOIdentity{}, fmt.Errorf("%w: unexpected lua result type %T", ErrSSOCorrupted, result)
	}

	var identity SSOIdentity
	if err := json.Unmarshal([]byte(data), &identity); err != nil {
		return SSOIdentity{}, fmt.Errorf("%w: %v", ErrSSOCorrupted, err)
	}
	if identity.Sub == "" && identity.ID == 0 {
		return SSOIdentity{}, fmt.Errorf("%w: identity has no subject", ErrSSOCorrupted)
	}
	return identity, nil
}
