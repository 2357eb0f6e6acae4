package localcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"notebuddy/internal/domain"
)

const (
	notePrefix   = "notebuddy:note:"
	editedPrefix = "notebuddy:edited:"
)

// Keys carry the owner so notes from different users sharing one cache
// instance never collide or leak across accounts.
func noteKey(userID, noteID string) string {
	return notePrefix + userID + ":" + noteID
}

func editedKey(userID, noteID string) string {
	return editedPrefix + userID + ":" + noteID
}

// Cache is the device-scoped snapshot store. Failures degrade, never
// propagate: a write that cannot land is logged and the caller proceeds
// without local durability for that edit.
type Cache interface {
	Save(ctx context.Context, note *domain.Note)
	Load(ctx context.Context, userID, noteID string) *domain.Note
	LastEdited(ctx context.Context, userID, noteID string) time.Time
	Delete(ctx context.Context, userID, noteID string)
	Available(ctx context.Context) bool

	SaveSettings(ctx context.Context, userID string, settings domain.SessionSettings)
	LoadSettings(ctx context.Context, userID string) domain.SessionSettings
}

type RedisCache struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisCache(ctx context.Context, addr, password string, db int, log *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	cache := &RedisCache{client: client, log: log}
	if err := client.Ping(ctx).Err(); err != nil {
		// The medium being down at startup is the LocalStorageUnavailable
		// case, not a fatal one: callers consult Available before every use.
		log.Warn("local cache unavailable at startup", zap.Error(err))
	}

	return cache, nil
}

// NewRedisCacheWithClient wraps an existing client; used by tests.
func NewRedisCacheWithClient(client *redis.Client, log *zap.Logger) *RedisCache {
	return &RedisCache{client: client, log: log}
}

func (c *RedisCache) Save(ctx context.Context, note *domain.Note) {
	data, err := json.Marshal(note)
	if err != nil {
		c.log.Error("failed to serialize note for local cache",
			zap.String("note_id", note.ID), zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, noteKey(note.UserID, note.ID), data, 0).Err(); err != nil {
		c.log.Error("failed to save note to local cache",
			zap.String("note_id", note.ID), zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, editedKey(note.UserID, note.ID), time.Now().Format(time.RFC3339Nano), 0).Err(); err != nil {
		c.log.Error("failed to record last-edited timestamp",
			zap.String("note_id", note.ID), zap.Error(err))
	}
}

func (c *RedisCache) Load(ctx context.Context, userID, noteID string) *domain.Note {
	data, err := c.client.Get(ctx, noteKey(userID, noteID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Error("failed to read note from local cache",
				zap.String("note_id", noteID), zap.Error(err))
		}
		return nil
	}

	var note domain.Note
	if err := json.Unmarshal(data, &note); err != nil {
		// Corrupt entries are treated as absent, not fatal.
		c.log.Warn("corrupt note entry in local cache",
			zap.String("note_id", noteID), zap.Error(err))
		return nil
	}

	return &note
}

func (c *RedisCache) LastEdited(ctx context.Context, userID, noteID string) time.Time {
	value, err := c.client.Get(ctx, editedKey(userID, noteID)).Result()
	if err != nil {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}

	return t
}

func (c *RedisCache) Delete(ctx context.Context, userID, noteID string) {
	if err := c.client.Del(ctx, noteKey(userID, noteID), editedKey(userID, noteID)).Err(); err != nil {
		c.log.Error("failed to delete note from local cache",
			zap.String("note_id", noteID), zap.Error(err))
	}
}

// Available probes the storage medium. All other operations should be skipped,
// not attempted, while this reports false.
func (c *RedisCache) Available(ctx context.Context) bool {
	return c.client.Ping(ctx).Err() == nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
