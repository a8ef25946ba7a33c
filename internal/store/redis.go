package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keySession      = "sim:session:%s"
	keyRound        = "sim:round:%s"
	keyPlayerRounds = "sim:player:%s:rounds"

	ttlSession = 7 * 24 * time.Hour
	ttlRound   = 30 * 24 * time.Hour

	// Only the most recent rounds are retained per player.
	maxRoundsPerPlayer = 100
)

// Redis persists simulator state in Redis: JSON values with TTLs, plus
// a per-player sorted set indexing rounds by settlement time.
type Redis struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedis(addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{client: client, ctx: ctx}, nil
}

func (s *Redis) SaveSession(rec *SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}
	key := fmt.Sprintf(keySession, rec.SessionID)
	return s.client.Set(s.ctx, key, data, ttlSession).Err()
}

func (s *Redis) GetSession(sessionID string) (*SessionRecord, error) {
	key := fmt.Sprintf(keySession, sessionID)
	data, err := s.client.Get(s.ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session record: %w", err)
	}

	var rec SessionRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
	}
	return &rec, nil
}

func (s *Redis) SaveRound(r *Round) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal round: %w", err)
	}

	roundKey := fmt.Sprintf(keyRound, r.ID)
	if err := s.client.Set(s.ctx, roundKey, data, ttlRound).Err(); err != nil {
		return fmt.Errorf("failed to save round: %w", err)
	}

	indexKey := fmt.Sprintf(keyPlayerRounds, r.PlayerID)
	if err := s.client.ZAdd(s.ctx, indexKey, redis.Z{
		Score:  float64(r.CreatedAt.UnixNano()),
		Member: r.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index round: %w", err)
	}

	s.client.ZRemRangeByRank(s.ctx, indexKey, 0, -int64(maxRoundsPerPlayer)-1)
	s.client.Expire(s.ctx, indexKey, ttlRound)

	return nil
}

func (s *Redis) PlayerRounds(playerID string, limit int64) ([]*Round, error) {
	if limit <= 0 || limit > maxRoundsPerPlayer {
		limit = maxRoundsPerPlayer
	}

	indexKey := fmt.Sprintf(keyPlayerRounds, playerID)
	ids, err := s.client.ZRevRange(s.ctx, indexKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}

	rounds := make([]*Round, 0, len(ids))
	for _, id := range ids {
		data, err := s.client.Get(s.ctx, fmt.Sprintf(keyRound, id)).Result()
		if err != nil {
			continue
		}
		var r Round
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			continue
		}
		rounds = append(rounds, &r)
	}
	return rounds, nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}
