package refreshtokens

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/petauth/internal/common"
	"github.com/dmitrijs2005/petauth/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisPrefix = "petauth:refresh"

	fieldToken     = "token"
	fieldExpiresAt = "expires_at"
)

// RedisStore keeps each record in a hash "<prefix>:<id>" that Redis expires
// on its own at the record's expiry instant.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(userID int64) string {
	return s.prefix + ":" + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) Put(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	key := s.key(userID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldToken, token, fieldExpiresAt, expiresAt.UnixMilli())
		pipe.PExpireAt(ctx, key, expiresAt)
		return nil
	})
	if err != nil {
		return common.Unavailable("put refresh token", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (*models.RefreshRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, common.Unavailable("get refresh token", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	ms, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh record %s: %w", s.key(userID), err)
	}

	return &models.RefreshRecord{
		UserID:    userID,
		Token:     fields[fieldToken],
		ExpiresAt: time.UnixMilli(ms),
	}, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := s.rdb.Del(ctx, s.key(userID)).Err(); err != nil {
		return common.Unavailable("delete refresh token", err)
	}
	return nil
}
