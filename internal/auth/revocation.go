package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore tracks revoked sessions. RevokeMember invalidates every token
// of a member issued at or before the given instant.
type RevocationStore interface {
	RevokeToken(ctx context.Context, jti string, until time.Time) error
	RevokeMember(ctx context.Context, memberID string, at time.Time) error
	IsRevoked(ctx context.Context, claims *Claims) (bool, error)
}

func issuedAt(c *Claims) time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// RedisRevocationStore keeps revoked jtis with a TTL matching the token and a
// per-member watermark for bulk revocation.
type RedisRevocationStore struct {
	client    redis.UniversalClient
	prefix    string
	memberTTL time.Duration
}

// NewRedisRevocationStore wraps client. memberTTL should cover the longest token lifetime.
func NewRedisRevocationStore(client redis.UniversalClient, memberTTL time.Duration) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, prefix: "auth:revoked", memberTTL: memberTTL}
}

func (s *RedisRevocationStore) tokenKey(jti string) string {
	return fmt.Sprintf("%s:jti:%s", s.prefix, jti)
}

func (s *RedisRevocationStore) memberKey(memberID string) string {
	return fmt.Sprintf("%s:member:%s", s.prefix, memberID)
}

func (s *RedisRevocationStore) RevokeToken(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.tokenKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) RevokeMember(ctx context.Context, memberID string, at time.Time) error {
	if err := s.client.Set(ctx, s.memberKey(memberID), at.Unix(), s.memberTTL).Err(); err != nil {
		return fmt.Errorf("revoke member sessions: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, claims *Claims) (bool, error) {
	pipe := s.client.Pipeline()
	tokenCmd := pipe.Exists(ctx, s.tokenKey(claims.ID))
	memberCmd := pipe.Get(ctx, s.memberKey(claims.MemberID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("check revocation: %w", err)
	}

	if tokenCmd.Val() > 0 {
		return true, nil
	}

	raw, err := memberCmd.Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check member revocation: %w", err)
	}
	watermark, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse member revocation: %w", err)
	}
	return issuedAt(claims).Unix() <= watermark, nil
}

// MemoryRevocationStore is the in-process RevocationStore used when Redis is not configured.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	tokens  map[string]time.Time
	members map[string]time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		tokens:  make(map[string]time.Time),
		members: make(map[string]time.Time),
	}
}

func (s *MemoryRevocationStore) RevokeToken(_ context.Context, jti string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[jti] = until
	return nil
}

func (s *MemoryRevocationStore) RevokeMember(_ context.Context, memberID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberID] = at
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, claims *Claims) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if until, ok := s.tokens[claims.ID]; ok && time.Now().Before(until) {
		return true, nil
	}
	if at, ok := s.members[claims.MemberID]; ok && !issuedAt(claims).After(at) {
		return true, nil
	}
	return false, nil
}
