package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	UserKeyPrefix    = "user:%d"
	ProfileKeyPrefix = "profile:%s"
)

const (
	UserTTL    = 5 * time.Minute
	ProfileTTL = 10 * time.Minute
)

// UserKey caches a user with its profile by id.
func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// ProfileKey caches the owner of a blog slug. Slugs are matched case-insensitively.
func ProfileKey(slug string) string {
	return fmt.Sprintf(ProfileKeyPrefix, strings.ToLower(slug))
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateUser drops every cached view of a user.
func InvalidateUser(ctx context.Context, userID uint, slug string) {
	keys := []string{UserKey(userID)}
	if slug != "" {
		keys = append(keys, ProfileKey(slug))
	}
	Invalidate(ctx, keys...)
}
