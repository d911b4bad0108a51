package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"micro-quiz-service/internal/app"
	"micro-quiz-service/internal/domain"
)

const markerTimeout = time.Second

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Live attempts stay in a local map; the timer goroutine and subscribers
//     are process-local.
//   - Redis holds a best-effort snapshot per attempt under quiz:attempt:{id}
//     with a TTL, so other instances and operators can see what is running.
//     It is rewritten on every state change the service publishes.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		logger:   logger.With().Str("component", "redis_session_store").Logger(),
		sessions: make(map[string]*app.Session),
	}
}

// Save tracks the session locally and writes its initial Redis snapshot.
func (s *SessionStore) Save(session *app.Session) {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	s.PublishSnapshot(session.Snapshot())
}

// PublishSnapshot overwrites the attempt's Redis snapshot and renews its TTL.
func (s *SessionStore) PublishSnapshot(snap app.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn().Err(err).Str("attempt_id", snap.AttemptID).Msg("encode attempt snapshot")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), markerTimeout)
	defer cancel()
	if err := s.client.Set(ctx, SnapshotKey(snap.AttemptID), payload, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("attempt_id", snap.AttemptID).Msg("write attempt snapshot")
	}
}

func (s *SessionStore) Get(attemptID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[attemptID]
	return session, ok
}

func (s *SessionStore) Delete(attemptID string) {
	s.mu.Lock()
	delete(s.sessions, attemptID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), markerTimeout)
	defer cancel()
	if err := s.client.Del(ctx, SnapshotKey(attemptID)).Err(); err != nil {
		s.logger.Warn().Err(err).Str("attempt_id", attemptID).Msg("delete attempt snapshot")
	}
}

// LoadSnapshot reads the last snapshot written for an attempt, which may belong
// to another instance. A missing key is domain.ErrAttemptNotFound.
func (s *SessionStore) LoadSnapshot(ctx context.Context, attemptID string) (app.Snapshot, error) {
	var snap app.Snapshot
	payload, err := s.client.Get(ctx, SnapshotKey(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return snap, domain.ErrAttemptNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("load attempt snapshot: %w", err)
	}
	if err := json.Unmarshal(payload, &snap); err != nil {
		return snap, fmt.Errorf("decode attempt snapshot: %w", err)
	}
	return snap, nil
}

// SnapshotKey is the Redis key holding an attempt's snapshot.
func SnapshotKey(attemptID string) string {
	return "quiz:attempt:" + attemptID
}
