package sink

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/chess-game-metrics/pkg/metricsdto"
)

const (
	redisListKey   = "gm:records"
	redisRecordKey = "gm:record:"
)

// Redis appends each record to a list and indexes it by game id.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis uses rdb for writes. A zero ttl keeps records forever.
func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func (r *Redis) keyRecord(id string) string { return redisRecordKey + strings.TrimSpace(id) }

func (r *Redis) Write(ctx context.Context, m *metricsdto.GameMetrics) error {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, redisListKey, raw)
		if strings.TrimSpace(m.GameID) != "" {
			p.Set(ctx, r.keyRecord(m.GameID), raw, r.ttl)
		}
		return nil
	})
	return err
}

// Load returns the latest record stored for id, or nil when there is none.
func (r *Redis) Load(ctx context.Context, id string) (*metricsdto.GameMetrics, error) {
	raw, err := r.rdb.Get(ctx, r.keyRecord(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m metricsdto.GameMetrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Redis) Len(ctx context.Context) (int64, error) {
	return r.rdb.LLen(ctx, redisListKey).Result()
}

func (r *Redis) Close() error { return r.rdb.Close() }
