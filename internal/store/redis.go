package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
)

const maxTxRetries = 3

type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{rdb: rdb, ttl: ttl, logger: logger}
}

// Dial opens a client for a redis:// or rediss:// URL and pings it.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for online games")
	}
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func ParseRedisURL(raw string) (*redis.Options, error) {
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

func gameKey(id string) string   { return "mancala:game:" + strings.TrimSpace(id) }
func eventsKey(id string) string { return gameKey(id) + ":events" }
func codeKey(code string) string { return "mancala:code:" + normalizeCode(code) }

func (s *RedisStore) Create(ctx context.Context, board mancala.Board, hostID string) (*Record, error) {
	if err := checkCreate(board, hostID); err != nil {
		return nil, err
	}
	now := time.Now()
	rec := &Record{
		ID:        uuid.NewString(),
		Board:     board,
		HostID:    strings.TrimSpace(hostID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for attempt := 0; ; attempt++ {
		code, err := codeGen()
		if err != nil {
			return nil, err
		}
		ok, err := s.rdb.SetNX(ctx, codeKey(code), rec.ID, s.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			rec.Code = code
			break
		}
		if attempt >= maxTxRetries {
			return nil, fmt.Errorf("allocate join code: %w", ErrConflict)
		}
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, gameKey(rec.ID), raw, s.ttl).Err(); err != nil {
		return nil, err
	}
	s.logger.Info("store_game_create",
		zap.String("game_id", rec.ID),
		zap.String("code", rec.Code),
		zap.String("host_id", rec.HostID),
	)
	return rec, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, gameKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(raw)
}

func (s *RedisStore) FindByCode(ctx context.Context, code string) (*Record, error) {
	id, err := s.rdb.Get(ctx, codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *RedisStore) Update(ctx context.Context, id string, board mancala.Board, playerID string, movedPit *int, expect int64) (*Record, error) {
	return s.mutate(ctx, id, func(rec *Record) error {
		return applyUpdate(rec, board, playerID, movedPit, expect)
	})
}

func (s *RedisStore) AssignGuest(ctx context.Context, id, guestID string) (*Record, error) {
	return s.mutate(ctx, id, func(rec *Record) error {
		return applyGuest(rec, guestID)
	})
}

// mutate runs fn under WATCH, bumps Version and publishes the new record.
func (s *RedisStore) mutate(ctx context.Context, id string, fn func(*Record) error) (*Record, error) {
	key := gameKey(id)
	var out *Record
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		rec.Version++
		rec.UpdatedAt = time.Now()
		next, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, s.ttl)
			return nil
		})
		if err == nil {
			out = rec
		}
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		raw, _ := json.Marshal(out)
		if perr := s.rdb.Publish(ctx, eventsKey(id), raw).Err(); perr != nil {
			s.logger.Warn("store_publish_error", zap.String("game_id", id), zap.Error(perr))
		}
		return out, nil
	}
	return nil, ErrConflict
}

func decodeRecord(raw []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode game record: %w", err)
	}
	return &rec, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
	err  error
}

func (r *redisSubscription) Unsubscribe() error {
	r.once.Do(func() {
		r.err = r.ps.Close()
		<-r.done
	})
	return r.err
}

// Subscribe delivers every published record of id to onChange, in order, on one goroutine.
func (s *RedisStore) Subscribe(ctx context.Context, id string, onChange func(*Record)) (Subscription, error) {
	if onChange == nil {
		return nil, ErrInvalidArgs
	}
	ps := s.rdb.Subscribe(ctx, eventsKey(id))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", id, err)
	}
	sub := &redisSubscription{ps: ps, done: make(chan struct{})}
	ch := ps.Channel()
	go func() {
		defer close(sub.done)
		for msg := range ch {
			rec, err := decodeRecord([]byte(msg.Payload))
			if err != nil {
				s.logger.Warn("store_event_decode_error", zap.String("game_id", id), zap.Error(err))
				continue
			}
			onChange(rec)
		}
	}()
	return sub, nil
}
