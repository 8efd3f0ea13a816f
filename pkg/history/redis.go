package history

import (
	"context"
	"encoding/json"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "battdiag:history:"

var _ Store = &Redis{}

// Redis keeps one capped list per API key, newest at the head.
type Redis struct {
	client    *redis.Client
	retention int
}

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	Retention int
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, pkgerrors.Wrapf(err, "failed to connect to redis at %s", opts.Addr)
	}

	return NewRedisFromClient(client, opts.Retention), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, retention int) *Redis {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Redis{client: client, retention: retention}
}

func (r *Redis) Append(ctx context.Context, e Entry) error {
	b, err := json.Marshal(redisEntry{Entry: e, APIKey: e.APIKey})
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to marshal history entry %s", e.ID)
	}

	key := redisKeyPrefix + e.APIKey
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, b)
	pipe.LTrim(ctx, key, 0, int64(r.retention-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return pkgerrors.Wrapf(err, "failed to append history entry %s", e.ID)
	}
	return nil
}

func (r *Redis) List(ctx context.Context, apiKey string, limit int) ([]Entry, error) {
	limit = normalizeLimit(limit)

	vals, err := r.client.LRange(ctx, redisKeyPrefix+apiKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to list history")
	}

	out := make([]Entry, 0, len(vals))
	for _, v := range vals {
		var re redisEntry
		if err := json.Unmarshal([]byte(v), &re); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to unmarshal history entry")
		}
		re.Entry.APIKey = re.APIKey
		out = append(out, re.Entry)
	}
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// redisEntry keeps the API key in the stored value, which Entry's JSON form
// leaves out.
type redisEntry struct {
	Entry
	APIKey string `json:"apiKey"`
}
