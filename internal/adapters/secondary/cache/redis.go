package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/askarthikey/cleverSM/internal/core/ports"
)

const DefaultUnreadTTL = 10 * time.Minute

// versionTTL couvre largement la fenêtre entre Get et Set.
const versionTTL = 24 * time.Hour

// setIfVersion : KEYS[1] compteur, KEYS[2] version ; ARGV version attendue, valeur, TTL (ms).
var setIfVersion = redis.NewScript(`
if (redis.call("GET", KEYS[2]) or "0") ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// RedisUnreadCounter met en cache le nombre de notifications non lues.
// Clés : "notifications:unread:<userID>" et sa version "notifications:unread:<userID>:v".
type RedisUnreadCounter struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ ports.UnreadCounter = (*RedisUnreadCounter)(nil)

func NewRedisUnreadCounter(client redis.Cmdable, ttl time.Duration) *RedisUnreadCounter {
	if ttl <= 0 {
		ttl = DefaultUnreadTTL
	}
	return &RedisUnreadCounter{client: client, ttl: ttl}
}

func unreadKey(userID string) string {
	return fmt.Sprintf("notifications:unread:%s", userID)
}

func versionKey(userID string) string {
	return unreadKey(userID) + ":v"
}

func (r *RedisUnreadCounter) Get(ctx context.Context, userID string) (int64, int64, bool, error) {
	var countCmd, versionCmd *redis.StringCmd
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		countCmd = p.Get(ctx, unreadKey(userID))
		versionCmd = p.Get(ctx, versionKey(userID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, false, err
	}

	version, err := optionalInt(versionCmd)
	if err != nil {
		return 0, 0, false, err
	}
	n, err := countCmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, version, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	return n, version, true, nil
}

func optionalInt(cmd *redis.StringCmd) (int64, error) {
	n, err := cmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Set n'écrit rien si Invalidate est passé depuis la lecture de version.
func (r *RedisUnreadCounter) Set(ctx context.Context, userID string, count, version int64) error {
	keys := []string{unreadKey(userID), versionKey(userID)}
	return setIfVersion.Run(ctx, r.client, keys, version, count, r.ttl.Milliseconds()).Err()
}

// Invalidate supprime la valeur et incrémente la version dans une même transaction.
func (r *RedisUnreadCounter) Invalidate(ctx context.Context, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, unreadKey(userID))
		p.Incr(ctx, versionKey(userID))
		p.Expire(ctx, versionKey(userID), versionTTL)
		return nil
	})
	return err
}
