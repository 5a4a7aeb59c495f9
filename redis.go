package magiclink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisMemoPrefix is the default key prefix of RedisMemo.
const DefaultRedisMemoPrefix = "magiclink:memo:"

// RedisMemo is a Memo shared by all processes using the same Redis,
// for deployments where renders of one browser may hit different replicas.
type RedisMemo struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisMemo creates a new RedisMemo. An empty prefix means DefaultRedisMemoPrefix.
// This function panics if rdb is nil.
func NewRedisMemo(rdb *redis.Client, prefix string) *RedisMemo {
	if rdb == nil {
		panic("rdb must be provided")
	}
	if prefix == "" {
		prefix = DefaultRedisMemoPrefix
	}
	return &RedisMemo{rdb: rdb, prefix: prefix}
}

// key returns the Redis key for token. Tokens are hashed so they never appear in Redis.
func (m *RedisMemo) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return m.prefix + hex.EncodeToString(sum[:])
}

// Get implements Memo.
func (m *RedisMemo) Get(ctx context.Context, token string) (Outcome, bool, error) {
	b, err := m.rdb.Get(ctx, m.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Outcome{}, false, nil
	}
	if err != nil {
		return Outcome{}, false, err
	}
	var o Outcome
	if err := json.Unmarshal(b, &o); err != nil {
		return Outcome{}, false, err
	}
	return o, true, nil
}

// Put implements Memo.
func (m *RedisMemo) Put(ctx context.Context, token string, o Outcome, ttl time.Duration) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return m.rdb.Set(ctx, m.key(token), b, ttl).Err()
}
