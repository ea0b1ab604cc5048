// Package redis stores conversations as JSON blobs in Redis with a TTL, plus a
// sorted-set index ordered by creation time.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"concierge-backend/internal/models"
	"concierge-backend/internal/store"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const indexKey = "conversations"

var _ store.Store = (*RedisStore)(nil)

type RedisStore struct {
	client *goredis.Client
	ttl    time.Duration
	now    func() time.Time
}

// Connect parses a redis:// URL, pings the server and returns a store whose
// conversations expire ttl after their last update.
func Connect(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis URL")
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}
	return NewRedisStore(client, ttl), nil
}

func NewRedisStore(client *goredis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func conversationKey(id uuid.UUID) string {
	return fmt.Sprintf("conversation:%s", id)
}

func (s *RedisStore) CreateConversation(ctx context.Context, c *models.Conversation) error {
	now := s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	data, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode conversation")
	}

	created, err := s.client.SetNX(ctx, conversationKey(c.ID), data, s.ttl).Result()
	if err != nil {
		return errors.Wrap(err, "save conversation failed")
	}
	if !created {
		return errors.Errorf("conversation %s already exists", c.ID)
	}

	err = s.client.ZAdd(ctx, indexKey, goredis.Z{
		Score:  float64(now.UnixNano()),
		Member: c.ID.String(),
	}).Err()
	if err != nil {
		// an unindexed key would never be listed
		if delErr := s.client.Del(ctx, conversationKey(c.ID)).Err(); delErr != nil {
			log.Error().Err(delErr).Str("conversation_id", c.ID.String()).Msg("failed to remove unindexed conversation")
		}
		return errors.Wrap(err, "index conversation failed")
	}
	return nil
}

func (s *RedisStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	data, err := s.client.Get(ctx, conversationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrapf(err, "load conversation %s", id)
	}

	var c models.Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "decode conversation %s", id)
	}
	return &c, nil
}

func (s *RedisStore) SaveConversation(ctx context.Context, c *models.Conversation) error {
	existing, err := s.GetConversation(ctx, c.ID)
	if err != nil {
		return err
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.now().UTC()

	data, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode conversation")
	}
	// XX: only overwrite a key that still exists
	ok, err := s.client.SetXX(ctx, conversationKey(c.ID), data, s.ttl).Result()
	if err != nil {
		return errors.Wrap(err, "save conversation failed")
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

// ListConversations walks the index from offset until limit live
// conversations are found. Index entries whose key has expired are skipped
// and pruned, so a page is only short when the index runs out.
func (s *RedisStore) ListConversations(ctx context.Context, limit, offset int) ([]models.Conversation, error) {
	limit, offset = store.ClampPage(limit, offset)

	out := make([]models.Conversation, 0, limit)
	var stale []interface{}
	start := int64(offset)
	for len(out) < limit {
		ids, err := s.client.ZRevRange(ctx, indexKey, start, start+int64(limit)-1).Result()
		if err != nil {
			return nil, errors.Wrap(err, "list conversation index")
		}
		for _, raw := range ids {
			if len(out) == limit {
				break
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				log.Warn().Str("member", raw).Msg("skipping malformed conversation index member")
				stale = append(stale, raw)
				continue
			}
			c, err := s.GetConversation(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				stale = append(stale, raw)
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, *c)
		}
		if len(ids) < limit {
			break
		}
		start += int64(len(ids))
	}

	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, indexKey, stale...).Err(); err != nil {
			log.Warn().Err(err).Int("stale", len(stale)).Msg("failed to prune conversation index")
		}
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
