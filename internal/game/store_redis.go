package game

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	winnersKey     = "numguess:winners"
	resetsChannel  = "numguess:resets"
	defaultFeedLen = 50
)

// RedisWinFeed keeps the most recent wins in a capped Redis list and
// publishes each one on a pub/sub channel for outside consumers. It is a
// WinRecorder.
type RedisWinFeed struct {
	rdb    *redis.Client
	maxLen int64
}

func NewRedisWinFeed(rdb *redis.Client, maxLen int) *RedisWinFeed {
	if maxLen <= 0 {
		maxLen = defaultFeedLen
	}
	return &RedisWinFeed{rdb: rdb, maxLen: int64(maxLen)}
}

func (f *RedisWinFeed) RecordWin(ctx context.Context, ev WinEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pipe := f.rdb.TxPipeline()
	pipe.LPush(ctx, winnersKey, b)
	pipe.LTrim(ctx, winnersKey, 0, f.maxLen-1)
	pipe.Publish(ctx, resetsChannel, b)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis win feed: %w", err)
	}
	return nil
}

// Recent returns up to n wins, newest first.
func (f *RedisWinFeed) Recent(ctx context.Context, n int) ([]WinEvent, error) {
	if n <= 0 || int64(n) > f.maxLen {
		n = int(f.maxLen)
	}
	vals, err := f.rdb.LRange(ctx, winnersKey, 0, int64(n-1)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]WinEvent, 0, len(vals))
	for _, v := range vals {
		var ev WinEvent
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			return nil, fmt.Errorf("decode win event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}
