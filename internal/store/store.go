// Package store implements C1: the Redis-backed primary keyed store with
// optimistic version control, TTL, and the update/push pub-sub channel
// families.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	svcerrors "github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/errors"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/session"
	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"
)

const updatesChannel = "session-updates"

func pushChannel(keyPrefix, sessionID string) string {
	return fmt.Sprintf("%sws:%s", keyPrefix, sessionID)
}

// NoticeKind distinguishes the two notice types published on
// session-updates.
type NoticeKind string

const (
	NoticeUpdated NoticeKind = "updated"
	NoticeDeleted NoticeKind = "deleted"
)

// UpdateNotice is the payload published to session-updates on every
// successful write, and delivered to subscribe_updates callbacks.
type UpdateNotice struct {
	SessionID string           `json:"session_id"`
	Kind      NoticeKind       `json:"kind"`
	State     *session.Session `json:"state,omitempty"`
}

// RedisStore is C1.
type RedisStore struct {
	client     *redis.Client
	cache      *lru.Cache[string, *session.Session]
	keyPrefix  string
	ttl        time.Duration
}

// Config configures a RedisStore.
type Config struct {
	Address      string
	KeyPrefix    string
	TTL          time.Duration
	CacheSize    int
}

// New dials Redis and builds the store. CacheSize of 0 disables the
// local LRU read cache.
func New(cfg Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Address})

	size := cfg.CacheSize
	if size <= 0 {
		size = 2048
	}
	cache, err := lru.New[string, *session.Session](size)
	if err != nil {
		return nil, fmt.Errorf("store: building read cache: %w", err)
	}

	return &RedisStore{
		client:    client,
		cache:     cache,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
	}, nil
}

// Ping validates connectivity, for the readiness probe.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return svcerrors.StoreUnavailable("ping", err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client exposes the underlying Redis client so other components backed
// by the same instance (e.g. internal/audit.RedisQueue) can share the
// connection pool instead of opening a second one.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) key(sessionID string) string {
	return s.keyPrefix + "session:" + sessionID
}

// Get serves a recent consistent value, preferring the local cache, and
// falling back to Redis on a miss (spec.md §4.1: "≤3ms average, ≤5ms p95").
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	if cached, ok := s.cache.Get(sessionID); ok {
		return cached.Clone(), nil
	}

	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, svcerrors.StoreUnavailable("get", err)
	}

	st, err := decode(sessionID, raw)
	if err != nil {
		return nil, err
	}
	s.cache.Add(sessionID, st.Clone())
	return st, nil
}

// Create refuses if a state for session_id already exists.
func (s *RedisStore) Create(ctx context.Context, st *session.Session) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return svcerrors.Internal("encoding session", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(st.SessionID), raw, s.ttl).Result()
	if err != nil {
		return svcerrors.StoreUnavailable("create", err)
	}
	if !ok {
		return svcerrors.ValidationError("session already exists", map[string]interface{}{"session_id": st.SessionID})
	}

	s.cache.Add(st.SessionID, st.Clone())
	s.publishUpdate(ctx, st.SessionID, NoticeUpdated, st)
	return nil
}

// Update admits the write only when the currently-stored version equals
// expectedVersion (spec.md §4.1's optimistic version check), implemented
// as a WATCH/MULTI/EXEC transaction so the compare-and-set is atomic
// against concurrent writers without a distributed lock.
func (s *RedisStore) Update(ctx context.Context, newState *session.Session, expectedVersion int64) error {
	key := s.key(newState.SessionID)

	txErr := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return svcerrors.SessionNotFound(newState.SessionID)
		}
		if err != nil {
			return svcerrors.StoreUnavailable("update", err)
		}

		current, err := decode(newState.SessionID, raw)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return svcerrors.Conflict(expectedVersion, current.Version)
		}

		encoded, err := json.Marshal(newState)
		if err != nil {
			return svcerrors.Internal("encoding session", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		if err != nil {
			return svcerrors.Conflict(expectedVersion, current.Version)
		}
		return nil
	}, key)

	if txErr != nil {
		return txErr
	}

	s.cache.Add(newState.SessionID, newState.Clone())
	s.publishUpdate(ctx, newState.SessionID, NoticeUpdated, newState)
	return nil
}

// Delete removes the key; idempotent (a second call on an absent key is
// still a success).
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return svcerrors.StoreUnavailable("delete", err)
	}
	s.cache.Remove(sessionID)
	s.publishUpdate(ctx, sessionID, NoticeDeleted, nil)
	return nil
}

// publishUpdate publishes best-effort; failures are not surfaced to the
// caller (spec.md §4.1: "Publish failure is logged but does not roll back
// the write"). Callers wanting the log should wrap RedisStore with a
// logging decorator; kept silent here to keep the store's contract pure.
func (s *RedisStore) publishUpdate(ctx context.Context, sessionID string, kind NoticeKind, st *session.Session) {
	notice := UpdateNotice{SessionID: sessionID, Kind: kind, State: st}
	raw, err := json.Marshal(notice)
	if err != nil {
		return
	}
	_ = s.client.Publish(ctx, updatesChannel, raw).Err()
}

// SubscribeUpdates delivers every updated/deleted notice from every
// instance to callback, until ctx is cancelled. Each notice also evicts
// the session from the local read cache, so writes made by other
// instances are seen by the next Get.
func (s *RedisStore) SubscribeUpdates(ctx context.Context, callback func(UpdateNotice)) error {
	sub := s.client.Subscribe(ctx, updatesChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var notice UpdateNotice
			if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
				continue
			}
			s.cache.Remove(notice.SessionID)
			callback(notice)
		}
	}
}

// PublishPush tunnels an arbitrary payload to C4 instances via the
// ws:<session_id> channel family.
func (s *RedisStore) PublishPush(ctx context.Context, sessionID string, payload []byte) error {
	if err := s.client.Publish(ctx, pushChannel(s.keyPrefix, sessionID), payload).Err(); err != nil {
		return svcerrors.StoreUnavailable("publish_push", err)
	}
	return nil
}

// SubscribePush pattern-subscribes to ws:* and delivers (sessionID,
// payload) pairs, extracting session_id from the channel name.
func (s *RedisStore) SubscribePush(ctx context.Context, callback func(sessionID string, payload []byte)) error {
	pattern := pushChannel(s.keyPrefix, "*")
	sub := s.client.PSubscribe(ctx, pattern)
	defer sub.Close()

	prefixLen := len(pushChannel(s.keyPrefix, ""))
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if len(msg.Channel) <= prefixLen {
				continue
			}
			sessionID := msg.Channel[prefixLen:]
			callback(sessionID, []byte(msg.Payload))
		}
	}
}

func decode(sessionID string, raw []byte) (*session.Session, error) {
	var st session.Session
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, svcerrors.StateCorrupt(sessionID, err)
	}
	return &st, nil
}

// RateLimitIncrement atomically increments the shared per-session
// switch-rate counter keyed on sessionID within the current window,
// setting its expiry only when the counter has none (the first increment
// of a window) — the distributed budget spec.md §4.3 requires for the
// switch transition limiter.
func (s *RedisStore) RateLimitIncrement(ctx context.Context, sessionID string, window time.Duration) (int64, error) {
	key := s.keyPrefix + "ratelimit:switch:" + sessionID
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, svcerrors.StoreUnavailable("rate_limit_increment", err)
	}
	if ttl.Val() < 0 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, svcerrors.StoreUnavailable("rate_limit_increment", err)
		}
	}
	return incr.Val(), nil
}
