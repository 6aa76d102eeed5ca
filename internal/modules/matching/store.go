// README: Dispatch record backed by Redis sets.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"driverbot/internal/types"
)

const (
	notifiedKeyPrefix   = "dispatch:order:%s:notified"
	dispatchedKeyPrefix = "dispatch:order:%s:dispatched_at"
	// TTL for dispatch keys (orders should resolve well within 7 days).
	keyTTL = 7 * 24 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// RecordDispatch records the dispatch timestamp and adds the notified chats for an order.
func (s *Store) RecordDispatch(ctx context.Context, orderID types.ID, chatIDs []types.ChatID) error {
	pipe := s.redis.Pipeline()
	pipe.SetNX(ctx, dispatchedAtKey(orderID), time.Now().UTC().Format(time.RFC3339), keyTTL)
	if len(chatIDs) > 0 {
		members := make([]interface{}, len(chatIDs))
		for i, c := range chatIDs {
			members[i] = c.String()
		}
		key := notifiedKey(orderID)
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, keyTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// WasNotified is true when the chat is in the notified set, or when the
// order was never dispatched through this service.
func (s *Store) WasNotified(ctx context.Context, orderID types.ID, chatID types.ChatID) (bool, error) {
	key := notifiedKey(orderID)
	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return true, nil
	}
	return s.redis.SIsMember(ctx, key, chatID.String()).Result()
}

// GetDispatchedAt returns when the order was first dispatched, and whether it has been dispatched.
func (s *Store) GetDispatchedAt(ctx context.Context, orderID types.ID) (time.Time, bool, error) {
	val, err := s.redis.Get(ctx, dispatchedAtKey(orderID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func notifiedKey(orderID types.ID) string {
	return fmt.Sprintf(notifiedKeyPrefix, orderID.String())
}

func dispatchedAtKey(orderID types.ID) string {
	return fmt.Sprintf(dispatchedKeyPrefix, orderID.String())
}
