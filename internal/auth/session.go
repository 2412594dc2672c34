package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sessions live in redis under one key per user, value = the active token.
// Issuing a new token overwrites the old one, so a user has at most one
// live session.
const sessionKeyPrefix = "session:"

func sessionKey(userId uint) string {
	return fmt.Sprintf("%s%d", sessionKeyPrefix, userId)
}

func SetSession(rdb *redis.Client, userId uint, token string, duration time.Duration) error {
	return rdb.Set(context.Background(), sessionKey(userId), token, duration).Err()
}

func GetSession(rdb *redis.Client, userId uint) (string, error) {
	return rdb.Get(context.Background(), sessionKey(userId)).Result()
}

func DeleteSession(rdb *redis.Client, userId uint) error {
	return rdb.Del(context.Background(), sessionKey(userId)).Err()
}

// OnlineUserCount counts users with a live session. SCAN rather than KEYS;
// the redis instance also holds dialogue checkpoints.
func OnlineUserCount(rdb *redis.Client) (int, error) {
	ctx := context.Background()
	var cursor uint64
	userIds := make(map[string]struct{})
	for {
		keys, newCursor, err := rdb.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, err
		}
		for _, key := range keys {
			if id := strings.TrimPrefix(key, sessionKeyPrefix); id != "" && id != key {
				userIds[id] = struct{}{}
			}
		}
		if newCursor == 0 {
			break
		}
		cursor = newCursor
	}
	return len(userIds), nil
}
