// Package snapshot mirrors active sessions into Redis so a restarted process
// can pick up in-flight games. Snapshots are advisory: while the process
// lives, the orchestrator's in-memory registries stay authoritative.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ttl      = 24 * time.Hour
	keyIndex = "duel:sessions"
)

// Snapshot is the JSON blob stored per session under duel:session:<uuid>.
type Snapshot struct {
	UUID      string    `json:"uuid"`
	WhiteID   string    `json:"white_id"`
	BlackID   string    `json:"black_id"`
	FEN       string    `json:"fen"`
	MovesUCI  []string  `json:"moves_uci"`
	MovesSAN  []string  `json:"moves_san"`
	Turn      string    `json:"turn"`
	DrawOffer string    `json:"draw_offer,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Store struct {
	rdb *redis.Client
}

// New connects to Redis and verifies the connection.
func New(redisURL string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for snapshot store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

// NewWithClient wraps an existing client; the caller owns its lifecycle.
func NewWithClient(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// Save writes the snapshot and registers it in the session index.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keySession(snap.UUID), raw, ttl)
	pipe.SAdd(ctx, keyIndex, snap.UUID)
	pipe.Expire(ctx, keyIndex, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Delete removes the snapshot and its index entry together.
func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, keySession(id))
	pipe.SRem(ctx, keyIndex, id)
	_, err := pipe.Exec(ctx)
	return err
}

// LoadAll returns every stored snapshot, pruning index entries whose blob
// already expired.
func (s *Store) LoadAll(ctx context.Context) ([]*Snapshot, error) {
	ids, err := s.rdb.SMembers(ctx, keyIndex).Result()
	if err != nil {
		return nil, err
	}
	var out []*Snapshot
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, keySession(id)).Bytes()
		if err == redis.Nil {
			_ = s.rdb.SRem(ctx, keyIndex, id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
		}
		out = append(out, &snap)
	}
	return out, nil
}

func keySession(id string) string { return "duel:session:" + strings.TrimSpace(id) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
