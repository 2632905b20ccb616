package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"music-search-api-go/logcolors"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	redisHistoryKey = "music:history"
	redisHotCount   = "music:hot:count"
	redisHotLast    = "music:hot:last"
	redisHotDisplay = "music:hot:display"
)

// RedisTracker keeps history in Redis so several API instances share it.
// History and hot-search timestamps live in sorted sets scored by Unix
// milliseconds; counts live in a sorted set scored by count.
type RedisTracker struct {
	client *redis.Client
	prefix string
}

// NewRedisTracker connects to addr and pings it. prefix namespaces every key.
func NewRedisTracker(ctx context.Context, addr, prefix string) (*RedisTracker, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	log.Infof("%s Redis history connected at %s", logcolors.LogHistory, addr)
	return &RedisTracker{client: client, prefix: prefix}, nil
}

func (rt *RedisTracker) key(name string) string {
	return rt.prefix + name
}

func (rt *RedisTracker) Record(ctx context.Context, term string) error {
	display := strings.TrimSpace(term)
	if display == "" {
		return nil
	}
	ms := float64(now().UnixMilli())
	hk := hotKey(display)

	_, err := rt.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, rt.key(redisHistoryKey), &redis.Z{Score: ms, Member: display})
		pipe.ZIncrBy(ctx, rt.key(redisHotCount), 1, hk)
		pipe.ZAdd(ctx, rt.key(redisHotLast), &redis.Z{Score: ms, Member: hk})
		pipe.HSet(ctx, rt.key(redisHotDisplay), hk, display)
		return nil
	})
	return err
}

func (rt *RedisTracker) Recent(ctx context.Context, limit int) ([]Entry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	zs, err := rt.client.ZRevRangeWithScores(ctx, rt.key(redisHistoryKey), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(zs))
	for _, z := range zs {
		entries = append(entries, Entry{
			Term:      fmt.Sprint(z.Member),
			Timestamp: time.UnixMilli(int64(z.Score)),
		})
	}
	return entries, nil
}

func (rt *RedisTracker) Remove(ctx context.Context, term string) error {
	return rt.client.ZRem(ctx, rt.key(redisHistoryKey), strings.TrimSpace(term)).Err()
}

func (rt *RedisTracker) Clear(ctx context.Context) error {
	return rt.client.Del(ctx, rt.key(redisHistoryKey)).Err()
}

func (rt *RedisTracker) allHot(ctx context.Context) ([]HotSearch, error) {
	counts, err := rt.client.ZRevRangeWithScores(ctx, rt.key(redisHotCount), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		return nil, nil
	}

	pipe := rt.client.Pipeline()
	lastCmds := make([]*redis.FloatCmd, len(counts))
	displayCmds := make([]*redis.StringCmd, len(counts))
	for i, z := range counts {
		term := fmt.Sprint(z.Member)
		lastCmds[i] = pipe.ZScore(ctx, rt.key(redisHotLast), term)
		displayCmds[i] = pipe.HGet(ctx, rt.key(redisHotDisplay), term)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	hot := make([]HotSearch, 0, len(counts))
	for i, z := range counts {
		term := fmt.Sprint(z.Member)
		h := HotSearch{Term: term, DisplayTerm: term, Count: int64(z.Score)}
		if last, err := lastCmds[i].Result(); err == nil {
			h.LastSearched = time.UnixMilli(int64(last))
		}
		if display, err := displayCmds[i].Result(); err == nil && display != "" {
			h.DisplayTerm = display
		}
		hot = append(hot, h)
	}
	return hot, nil
}

func (rt *RedisTracker) Top(ctx context.Context, limit int) ([]HotSearch, error) {
	hot, err := rt.allHot(ctx)
	if err != nil {
		return nil, err
	}
	sortHot(hot)
	return truncate(hot, limit), nil
}

func (rt *RedisTracker) Trending(ctx context.Context, limit int, window time.Duration) ([]HotSearch, error) {
	if window <= 0 {
		window = DefaultTrendingWindow
	}
	hot, err := rt.allHot(ctx)
	if err != nil {
		return nil, err
	}
	hot = filterSince(hot, now().Add(-window))
	sortHot(hot)
	return truncate(hot, limit), nil
}

func (rt *RedisTracker) Close() error {
	return rt.client.Close()
}
