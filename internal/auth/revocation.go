package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList はログアウト済みトークンのjtiを有効期限まで保持する。
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisCommander はRevocationListが使うRedisコマンドの部分集合。
// *redis.Client はこのインターフェースを満たす。
type RedisCommander interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

const revokedKeyPrefix = "roombook:revoked:"

// RedisRevocationList はRedisのキーTTLで失効リストを管理する。
// 複数のAPIサーバー間で失効状態を共有できる。
type RedisRevocationList struct {
	client RedisCommander
	now    func() time.Time
}

// NewRedisRevocationList はRedisRevocationListを生成する。
func NewRedisRevocationList(client RedisCommander) *RedisRevocationList {
	return &RedisRevocationList{client: client, now: time.Now}
}

// Revoke はjtiをトークンの残り有効期間だけ保持する。期限切れのトークンは記録しない。
func (l *RedisRevocationList) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(l.now())
	if ttl <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revoked token: %w", err)
	}
	return nil
}

// IsRevoked はjtiが失効済みかを返す。
func (l *RedisRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := l.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return n > 0, nil
}

// MemoryRevocationList はREDIS_ADDR未設定時に使うプロセス内の失効リスト。
// 単一プロセスでのみ有効。
type MemoryRevocationList struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocationList は空のMemoryRevocationListを生成する。
func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke はjtiを記録し、あわせて期限切れのエントリを掃除する。
func (l *MemoryRevocationList) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, exp := range l.entries {
		if !now.Before(exp) {
			delete(l.entries, id)
		}
	}
	if now.Before(expiresAt) {
		l.entries[tokenID] = expiresAt
	}
	return nil
}

// IsRevoked はjtiが失効済みかを返す。
func (l *MemoryRevocationList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	exp, ok := l.entries[tokenID]
	return ok && l.now().Before(exp), nil
}

// Len は保持しているエントリ数を返す。
func (l *MemoryRevocationList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

var (
	_ RevocationList = (*RedisRevocationList)(nil)
	_ RevocationList = (*MemoryRevocationList)(nil)
	_ RedisCommander = (*redis.Client)(nil)
)
