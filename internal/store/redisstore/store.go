package redisstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/patient-intake/internal/questionbank"
)

const (
	questionKeyPrefix = "questions:"
	lockKeyPrefix     = "consultation:lock:"
	lockRetryInterval = 50 * time.Millisecond
)

// Store backs the question cache and the per-session turn lock.
type Store struct {
	rdb         redis.UniversalClient
	questionTTL time.Duration
	lockTTL     time.Duration
}

func New(addr, password string, db int, questionTTL, lockTTL time.Duration) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewWithClient(rdb, questionTTL, lockTTL)
}

func NewWithClient(rdb redis.UniversalClient, questionTTL, lockTTL time.Duration) *Store {
	if questionTTL <= 0 {
		questionTTL = time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Store{rdb: rdb, questionTTL: questionTTL, lockTTL: lockTTL}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) GetQuestions(ctx context.Context, symptom string) (*questionbank.QuestionSet, bool, error) {
	b, err := s.rdb.Get(ctx, questionKeyPrefix+symptom).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var set questionbank.QuestionSet
	if err := json.Unmarshal(b, &set); err != nil {
		// unreadable entry counts as a miss and gets overwritten
		return nil, false, nil
	}
	return &set, true, nil
}

func (s *Store) SetQuestions(ctx context.Context, symptom string, set *questionbank.QuestionSet) error {
	b, err := json.Marshal(set)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, questionKeyPrefix+symptom, b, s.questionTTL).Err()
}

// release only if we still own the lock
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock blocks until the session lock is acquired or ctx is done. The lock
// expires after lockTTL so a crashed holder cannot wedge a session.
func (s *Store) Lock(ctx context.Context, sessionID string) (func(), error) {
	key := lockKeyPrefix + sessionID
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()
	for {
		ok, err := s.rdb.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", sessionID, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		// the caller's ctx may already be cancelled
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = unlockScript.Run(cctx, s.rdb, []string{key}, token).Err()
	}, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
