package localcache

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"notebuddy/internal/domain"
)

const settingsPrefix = "notebuddy:settings:"

// Session feature toggles persist through the same cache abstraction as note
// snapshots rather than a separate ad hoc mechanism.

func (c *RedisCache) SaveSettings(ctx context.Context, userID string, settings domain.SessionSettings) {
	data, err := json.Marshal(settings)
	if err != nil {
		c.log.Error("failed to serialize session settings",
			zap.String("user_id", userID), zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, settingsPrefix+userID, data, 0).Err(); err != nil {
		c.log.Error("failed to save session settings",
			zap.String("user_id", userID), zap.Error(err))
	}
}

func (c *RedisCache) LoadSettings(ctx context.Context, userID string) domain.SessionSettings {
	data, err := c.client.Get(ctx, settingsPrefix+userID).Bytes()
	if err != nil {
		return domain.DefaultSessionSettings()
	}

	var settings domain.SessionSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		c.log.Warn("corrupt session settings entry, using defaults",
			zap.String("user_id", userID), zap.Error(err))
		return domain.DefaultSessionSettings()
	}

	return settings
}
