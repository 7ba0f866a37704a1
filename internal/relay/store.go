package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionContext is what the server remembers about one client between
// commands: the target its pronouns bind to and the contacts it last listed.
// Each command frame still carries its own context; the stored copy fills
// the gaps when a frame arrives without one.
type SessionContext struct {
	LastContact string   `json:"last_contact,omitempty"`
	ContactList []string `json:"contact_list,omitempty"`
	UpdatedUnix int64    `json:"updated_unix,omitempty"`
}

type SessionStore interface {
	Put(ctx context.Context, clientID string, sess SessionContext, ttlSeconds int) error
	Get(ctx context.Context, clientID string) (SessionContext, bool, error)
	Delete(ctx context.Context, clientID string) error
	Close() error
}

// NoopSessionStore keeps the server usable without Redis: every command is
// parsed from the context the frame carries.
type NoopSessionStore struct{}

func (NoopSessionStore) Put(ctx context.Context, clientID string, sess SessionContext, ttlSeconds int) error {
	return nil
}

func (NoopSessionStore) Get(ctx context.Context, clientID string) (SessionContext, bool, error) {
	return SessionContext{}, false, nil
}

func (NoopSessionStore) Delete(ctx context.Context, clientID string) error { return nil }

func (NoopSessionStore) Close() error { return nil }

type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(redisURL string) (*RedisSessionStore, error) {
	url := strings.TrimSpace(redisURL)
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisSessionStore{client: client}, nil
}

func sessionKey(clientID string) string {
	return fmt.Sprintf("relay:session:%s", strings.TrimSpace(clientID))
}

func (s *RedisSessionStore) Put(ctx context.Context, clientID string, sess SessionContext, ttlSeconds int) error {
	if s == nil || s.client == nil {
		return nil
	}
	id := strings.TrimSpace(clientID)
	if id == "" {
		return errors.New("client_id is required")
	}
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}
	sess.UpdatedUnix = time.Now().UTC().Unix()
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(id), data, time.Duration(ttlSeconds)*time.Second).Err()
}

func (s *RedisSessionStore) Get(ctx context.Context, clientID string) (SessionContext, bool, error) {
	if s == nil || s.client == nil {
		return SessionContext{}, false, nil
	}
	id := strings.TrimSpace(clientID)
	if id == "" {
		return SessionContext{}, false, errors.New("client_id is required")
	}
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SessionContext{}, false, nil
		}
		return SessionContext{}, false, err
	}
	var sess SessionContext
	if err := json.Unmarshal(data, &sess); err != nil {
		return SessionContext{}, false, err
	}
	return sess, true, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, clientID string) error {
	if s == nil || s.client == nil {
		return nil
	}
	id := strings.TrimSpace(clientID)
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, sessionKey(id)).Err()
}

func (s *RedisSessionStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
