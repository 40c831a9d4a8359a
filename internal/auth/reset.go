package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"dhuni-backend/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultResetTTL = time.Hour

// ResetStore keeps pending password reset tokens. Take removes the token,
// so each one can be redeemed once.
type ResetStore interface {
	Save(ctx context.Context, tokenHash string, credentialID uuid.UUID, ttl time.Duration) error
	Take(ctx context.Context, tokenHash string) (uuid.UUID, bool, error)
}

// ResetSender delivers a reset token to the account's email address.
type ResetSender interface {
	SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
}

// PasswordResets configures the forgot-password flow. Zero values fall back
// to an in-memory store, a log sender and a one hour TTL.
type PasswordResets struct {
	Store  ResetStore
	Sender ResetSender
	TTL    time.Duration
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// hashResetToken is the key the stores keep; raw tokens are never stored.
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type RedisResetStore struct {
	rdb *redis.Client
}

func NewRedisResetStore(rdb *redis.Client) *RedisResetStore {
	return &RedisResetStore{rdb: rdb}
}

func (r *RedisResetStore) Save(ctx context.Context, tokenHash string, credentialID uuid.UUID, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, "pwreset:"+tokenHash, credentialID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}
	return nil
}

func (r *RedisResetStore) Take(ctx context.Context, tokenHash string) (uuid.UUID, bool, error) {
	v, err := r.rdb.GetDel(ctx, "pwreset:"+tokenHash).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("take reset token: %w", err)
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

type resetEntry struct {
	credentialID uuid.UUID
	until        time.Time
}

type MemoryResetStore struct {
	mu      sync.Mutex
	pending map[string]resetEntry
	now     func() time.Time
}

func NewMemoryResetStore() *MemoryResetStore {
	return &MemoryResetStore{pending: make(map[string]resetEntry), now: time.Now}
}

func (m *MemoryResetStore) Save(ctx context.Context, tokenHash string, credentialID uuid.UUID, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for h, e := range m.pending {
		if !e.until.After(now) {
			delete(m.pending, h)
		}
	}
	m.pending[tokenHash] = resetEntry{credentialID: credentialID, until: now.Add(ttl)}
	return nil
}

func (m *MemoryResetStore) Take(ctx context.Context, tokenHash string) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.pending[tokenHash]
	if !ok {
		return uuid.Nil, false, nil
	}
	delete(m.pending, tokenHash)
	if !e.until.After(m.now()) {
		return uuid.Nil, false, nil
	}
	return e.credentialID, true, nil
}

// LogResetSender writes the reset link to the log. It stands in for a mail
// provider in development.
type LogResetSender struct {
	BaseURL string
}

func (s LogResetSender) SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	link := "token=" + token
	if u, err := url.Parse(s.BaseURL); err == nil && s.BaseURL != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
		link = u.String()
	}
	config.GetLogger().WithFields(logrus.Fields{
		"email":      email,
		"link":       link,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	}).Info("[auth.password_reset] reset link issued")
	return nil
}
