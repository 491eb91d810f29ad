package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/infrastructure/valkey"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
	valkeylib "github.com/valkey-io/valkey-go"
)

// ErrCorruptSession marks a stored record that no longer decodes.
var ErrCorruptSession = errors.New("corrupt session record")

// ValkeySessionStore stores each session as JSON under igrs:session:<user>,
// refreshing the TTL on every write.
type ValkeySessionStore struct {
	client *valkey.Client
}

func NewValkeySessionStore(client *valkey.Client) *ValkeySessionStore {
	return &ValkeySessionStore{client: client}
}

func (s *ValkeySessionStore) key(user string) string {
	return s.client.Key("session", user)
}

func (s *ValkeySessionStore) inner() valkeylib.Client {
	return s.client.Inner()
}

func (s *ValkeySessionStore) Set(ctx context.Context, sess *session.Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	cmd := s.inner().B().Set().
		Key(s.key(sess.User)).
		Value(string(data)).
		Ex(ttl).
		Build()

	if err := s.inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get returns (nil, nil) when the key does not exist.
func (s *ValkeySessionStore) Get(ctx context.Context, user string) (*session.Session, error) {
	cmd := s.inner().B().Get().Key(s.key(user)).Build()

	data, err := s.inner().Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	return &sess, nil
}

func (s *ValkeySessionStore) Del(ctx context.Context, user string) error {
	cmd := s.inner().B().Del().Key(s.key(user)).Build()
	if err := s.inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
