package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"learnhub/internal/domain"
)

var errRefreshTokenExists = errors.New("refresh token id already exists")

const createTokenScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "user_id", ARGV[1], "token_hash", ARGV[2], "user_agent", ARGV[3], "ip", ARGV[4],
  "revoked", "0", "expires_at", ARGV[5], "created_at", ARGV[6], "updated_at", ARGV[6])
redis.call("PEXPIREAT", KEYS[1], ARGV[7])
redis.call("SADD", KEYS[2], ARGV[8])
return 1
`

const revokeTokenScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if redis.call("HGET", KEYS[1], "revoked") == "1" then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1", "updated_at", ARGV[1])
return 1
`

const revokeUserTokensScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
local n = 0
for _, id in ipairs(ids) do
  local key = ARGV[1] .. id
  if redis.call("EXISTS", key) == 1 then
    if redis.call("HGET", key, "revoked") ~= "1" then
      redis.call("HSET", key, "revoked", "1", "updated_at", ARGV[2])
      n = n + 1
    end
  else
    redis.call("SREM", KEYS[1], id)
  end
end
return n
`

const updateHashScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "token_hash", ARGV[1], "updated_at", ARGV[2])
return 1
`

var (
	createTokenLua      = redis.NewScript(createTokenScript)
	revokeTokenLua      = redis.NewScript(revokeTokenScript)
	revokeUserTokensLua = redis.NewScript(revokeUserTokensScript)
	updateHashLua       = redis.NewScript(updateHashScript)
)

// RedisRefreshTokenStore keeps each record in a hash and indexes ids per user
// in a set. Keys expire retention after the token itself expires.
//
// The scripts touch a record and its user set together and derive record
// keys from set members, so the store needs a single Redis node; it takes a
// *redis.Client rather than a cluster client.
type RedisRefreshTokenStore struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
	now       func() time.Time
}

func NewRedisRefreshTokenStore(rdb *redis.Client, prefix string, retention time.Duration) *RedisRefreshTokenStore {
	if prefix == "" {
		prefix = "learnhub:"
	}
	return &RedisRefreshTokenStore{rdb: rdb, prefix: prefix, retention: retention, now: time.Now}
}

func (s *RedisRefreshTokenStore) tokenKeyPrefix() string { return s.prefix + "rt:" }

func (s *RedisRefreshTokenStore) key(id string) string { return s.tokenKeyPrefix() + id }

func (s *RedisRefreshTokenStore) userKey(userID int64) string {
	return s.prefix + "rt_user:" + strconv.FormatInt(userID, 10)
}

func (s *RedisRefreshTokenStore) Create(ctx context.Context, t *domain.RefreshToken) error {
	now := s.now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = t.CreatedAt
	expireAt := t.ExpiresAt.Add(s.retention)

	created, err := createTokenLua.Run(ctx, s.rdb,
		[]string{s.key(t.ID), s.userKey(t.UserID)},
		strconv.FormatInt(t.UserID, 10),
		t.TokenHash,
		t.UserAgent,
		t.IP,
		formatTime(t.ExpiresAt),
		formatTime(t.CreatedAt),
		expireAt.UnixMilli(),
		t.ID,
	).Int64()
	if err != nil {
		return err
	}
	if created == 0 {
		return errRefreshTokenExists
	}
	return nil
}

func (s *RedisRefreshTokenStore) FindByID(ctx context.Context, id string) (*domain.RefreshToken, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeToken(id, fields)
}

func (s *RedisRefreshTokenStore) FindActiveByUser(ctx context.Context, userID int64) ([]domain.RefreshToken, error) {
	ids, err := s.rdb.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	if len(ids) > 0 {
		_, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
			for i, id := range ids {
				cmds[i] = p.HGetAll(ctx, s.key(id))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	out := make([]domain.RefreshToken, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		t, err := decodeToken(ids[i], fields)
		if err != nil {
			return nil, err
		}
		if !t.Revoked {
			out = append(out, *t)
		}
	}
	sortByCreatedDesc(out)
	return out, nil
}

func (s *RedisRefreshTokenStore) RevokeByID(ctx context.Context, id string) (*domain.RefreshToken, error) {
	res, err := revokeTokenLua.Run(ctx, s.rdb, []string{s.key(id)}, formatTime(s.now().UTC())).Int64()
	if err != nil {
		return nil, err
	}
	if res < 0 {
		return nil, nil
	}
	return s.FindByID(ctx, id)
}

func (s *RedisRefreshTokenStore) RevokeIfActive(ctx context.Context, id string) (bool, error) {
	res, err := revokeTokenLua.Run(ctx, s.rdb, []string{s.key(id)}, formatTime(s.now().UTC())).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *RedisRefreshTokenStore) RevokeAllForUser(ctx context.Context, userID int64) error {
	return revokeUserTokensLua.Run(ctx, s.rdb,
		[]string{s.userKey(userID)},
		s.tokenKeyPrefix(),
		formatTime(s.now().UTC()),
	).Err()
}

func (s *RedisRefreshTokenStore) UpdateHash(ctx context.Context, id, hash string) error {
	return updateHashLua.Run(ctx, s.rdb, []string{s.key(id)}, hash, formatTime(s.now().UTC())).Err()
}

func decodeToken(id string, f map[string]string) (*domain.RefreshToken, error) {
	userID, err := strconv.ParseInt(f["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode refresh token %s: user_id: %w", id, err)
	}
	expiresAt, err := parseTime(f["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("decode refresh token %s: expires_at: %w", id, err)
	}
	createdAt, err := parseTime(f["created_at"])
	if err != nil {
		return nil, fmt.Errorf("decode refresh token %s: created_at: %w", id, err)
	}
	updatedAt, err := parseTime(f["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("decode refresh token %s: updated_at: %w", id, err)
	}

	return &domain.RefreshToken{
		ID:        id,
		UserID:    userID,
		TokenHash: f["token_hash"],
		UserAgent: f["user_agent"],
		IP:        f["ip"],
		Revoked:   f["revoked"] == "1",
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func sortByCreatedDesc(tokens []domain.RefreshToken) {
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].CreatedAt.After(tokens[j].CreatedAt) })
}
