package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xxxsen/mtodo/internal/model"
)

const (
	defaultTTL = 5 * time.Minute
	// versionTTL bounds how long a read may stay in flight and still be
	// recognised as stale.
	versionTTL = 24 * time.Hour
)

var errStaleFill = errors.New("stale cache fill")

type cachedTodo struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Completed   bool   `json:"completed"`
	CompletedAt *int64 `json:"completed_at"`
	Creator     string `json:"creator"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}

// TodoCache keeps single todos in redis under an owner-qualified key, so a
// cached entry can only ever be served back to its owner. Every key has a
// version counter next to it; writes to the store bump it and fills carry the
// version observed before the store read.
type TodoCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func NewTodoCache(client *redis.Client, ttl time.Duration) *TodoCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &TodoCache{client: client, ttl: ttl}
}

func todoKey(owner, todoID string) string {
	return fmt.Sprintf("todo:%s:%s", owner, todoID)
}

func versionKey(owner, todoID string) string {
	return todoKey(owner, todoID) + ":ver"
}

func parseVersion(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected version type %T", v)
	}
	return strconv.ParseInt(s, 10, 64)
}

// Get returns the cached todo, or nil on a miss, and the key's version.
func (c *TodoCache) Get(ctx context.Context, owner, todoID string) (*model.Todo, int64, error) {
	key := todoKey(owner, todoID)
	vals, err := c.client.MGet(ctx, key, versionKey(owner, todoID)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis mget: %w", err)
	}
	version, err := parseVersion(vals[1])
	if err != nil {
		return nil, 0, fmt.Errorf("decode cache version: %w", err)
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, version, nil
	}
	var entry cachedTodo
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.client.Del(ctx, key)
		return nil, 0, fmt.Errorf("decode cached todo: %w", err)
	}
	if entry.Creator != owner {
		return nil, version, nil
	}
	return &model.Todo{
		ID:          entry.ID,
		Text:        entry.Text,
		Completed:   entry.Completed,
		CompletedAt: entry.CompletedAt,
		Creator:     entry.Creator,
		Ctime:       entry.Ctime,
		Mtime:       entry.Mtime,
	}, version, nil
}

// Fill caches todo only while the key's version still equals version. A fill
// that lost the race against Invalidate is dropped silently.
func (c *TodoCache) Fill(ctx context.Context, todo *model.Todo, version int64) error {
	data, err := json.Marshal(cachedTodo{
		ID:          todo.ID,
		Text:        todo.Text,
		Completed:   todo.Completed,
		CompletedAt: todo.CompletedAt,
		Creator:     todo.Creator,
		Ctime:       todo.Ctime,
		Mtime:       todo.Mtime,
	})
	if err != nil {
		return err
	}
	key := todoKey(todo.Creator, todo.ID)
	verKey := versionKey(todo.Creator, todo.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, verKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			return nil
		})
		return err
	}, verKey)
	if errors.Is(err, errStaleFill) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Invalidate drops the cached entry and bumps its version in one transaction.
func (c *TodoCache) Invalidate(ctx context.Context, owner, todoID string) error {
	verKey := versionKey(owner, todoID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, verKey)
		pipe.Expire(ctx, verKey, versionTTL)
		pipe.Del(ctx, todoKey(owner, todoID))
		return nil
	})
	return err
}

func (c *TodoCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
