// Package session persists per-chat state in redis: the dialog state (with a
// TTL, it only matters mid-conversation) and the identity record (durable,
// fixed key per chat, kept until an explicit sign-out).
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hedgie-app/hedgie_tgbot/config"
	"github.com/hedgie-app/hedgie_tgbot/internal/model"
	"github.com/hedgie-app/hedgie_tgbot/utils"
	"github.com/redis/go-redis/v9"
)

const (
	dialogKeyPrefix   = "session:"
	identityKeyPrefix = "identity:"
)

type RedisSession struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisSession(redisClient *redis.Client, cfg *config.Config) *RedisSession {
	return &RedisSession{redis: redisClient, cfg: cfg}
}

func (r *RedisSession) GetSession(ctx context.Context, chatID int64) (model.Session, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	res, err := r.redis.Get(ctx, fmt.Sprintf("%s%d", dialogKeyPrefix, chatID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Session{}, ErrNotFound
		}
		slog.Error("failed on redis.Get in GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.Int64("chatID", chatID))
		return model.Session{}, err
	}

	chatSession := model.Session{}
	err = json.Unmarshal([]byte(res), &chatSession)
	if err != nil {
		slog.Error(
			"can't unmarshall session in GetSession",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return model.Session{}, errors.New("can't unmarshall session")
	}

	return chatSession, nil
}

func (r *RedisSession) SetSession(ctx context.Context, chatID int64, chatSession model.Session) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	sessionJson, err := json.Marshal(chatSession)
	if err != nil {
		slog.Error("can't marshall session in SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return errors.New("can't marshall session")
	}

	err = r.redis.Set(ctx, fmt.Sprintf("%s%d", dialogKeyPrefix, chatID), sessionJson, r.cfg.SessionExpiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set in SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.Int64("chatID", chatID))
		return err
	}

	return nil
}

// LoadIdentity reads the persisted identity record. Identity keys carry no
// TTL, the record survives restarts until DeleteIdentity.
func (r *RedisSession) LoadIdentity(ctx context.Context, chatID int64) (model.Identity, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	res, err := r.redis.Get(ctx, fmt.Sprintf("%s%d", identityKeyPrefix, chatID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Identity{}, ErrNotFound
		}
		slog.Error("failed on redis.Get in LoadIdentity", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.Int64("chatID", chatID))
		return model.Identity{}, err
	}

	identity := model.Identity{}
	err = json.Unmarshal([]byte(res), &identity)
	if err != nil {
		slog.Error(
			"can't unmarshall identity in LoadIdentity",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return model.Identity{}, errors.New("can't unmarshall identity")
	}

	return identity, nil
}

func (r *RedisSession) SaveIdentity(ctx context.Context, chatID int64, identity model.Identity) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	identityJson, err := json.Marshal(identity)
	if err != nil {
		slog.Error("can't marshall identity in SaveIdentity", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return errors.New("can't marshall identity")
	}

	err = r.redis.Set(ctx, fmt.Sprintf("%s%d", identityKeyPrefix, chatID), identityJson, 0).Err()
	if err != nil {
		slog.Error("failed on redis.Set in SaveIdentity", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.Int64("chatID", chatID))
		return err
	}

	return nil
}

func (r *RedisSession) DeleteIdentity(ctx context.Context, chatID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	err := r.redis.Del(ctx, fmt.Sprintf("%s%d", identityKeyPrefix, chatID)).Err()
	if err != nil {
		slog.Error("failed on redis.Del in DeleteIdentity", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.Int64("chatID", chatID))
		return err
	}

	return nil
}
