package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kestrelworks/orgvault/internal/logger"
	"github.com/kestrelworks/orgvault/internal/services"
)

const tokenKeyPrefix = "orgvault:refresh:"
const userKeyPrefix = "orgvault:user_tokens:"

type tokenStore struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewTokenStore connects to the redis named by REDIS_ADDR. Sessions live
// under a per-token key with the refresh TTL; a per-user set makes
// revoke-all-for-user possible without scanning.
func NewTokenStore(log *logger.Logger) (services.TokenStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &tokenStore{log: log.With("service", "RedisTokenStore"), rdb: rdb}, nil
}

func (s *tokenStore) Save(ctx context.Context, session services.TokenSession, ttl time.Duration) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, tokenKeyPrefix+session.RefreshToken, raw, ttl)
	pipe.SAdd(ctx, userKeyPrefix+session.UserID.String(), session.RefreshToken)
	pipe.Expire(ctx, userKeyPrefix+session.UserID.String(), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *tokenStore) Get(ctx context.Context, refreshToken string) (*services.TokenSession, error) {
	raw, err := s.rdb.Get(ctx, tokenKeyPrefix+refreshToken).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var session services.TokenSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *tokenStore) Delete(ctx context.Context, refreshToken string) error {
	session, err := s.Get(ctx, refreshToken)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, tokenKeyPrefix+refreshToken)
	if session != nil {
		pipe.SRem(ctx, userKeyPrefix+session.UserID.String(), refreshToken)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *tokenStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	userKey := userKeyPrefix + userID.String()
	tokens, err := s.rdb.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return err
	}
	pipe := s.rdb.TxPipeline()
	for _, token := range tokens {
		pipe.Del(ctx, tokenKeyPrefix+token)
	}
	pipe.Del(ctx, userKey)
	_, err = pipe.Exec(ctx)
	return err
}
