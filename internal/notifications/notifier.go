// Package notifications publishes social activity events over Redis pub/sub.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// EventType names a social action that concerns another user.
type EventType string

const (
	EventLike   EventType = "like"
	EventReblog EventType = "reblog"
	EventFollow EventType = "follow"
)

// Event is the payload published to the recipient's channel.
type Event struct {
	Type      EventType `json:"type"`
	ActorID   uint      `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	PostID    uint      `json:"post_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserChannel returns the channel carrying a user's notifications.
func UserChannel(userID uint) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier. A nil client turns every call into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends ev to the recipient's channel.
func (n *Notifier) PublishUser(ctx context.Context, recipientID uint, ev Event) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.rdb.Publish(ctx, UserChannel(recipientID), payload).Err()
}
