package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares credentials between processes. Entries are JSON values
// under prefix+key, and the set prefix+"index" tracks the keys for List.
// The values contain derivation secrets; run Redis with authentication.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "shogun:cred:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) entryKey(id string) string { return s.prefix + "entry:" + Key(id) }
func (s *RedisStore) indexKey() string          { return s.prefix + "index" }

func (s *RedisStore) Put(ctx context.Context, cred *SigningCredential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("redis credential: encode failed: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.entryKey(cred.ExternalID), data, 0)
		pipe.SAdd(ctx, s.indexKey(), Key(cred.ExternalID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis credential: put failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*SigningCredential, error) {
	data, err := s.client.Get(ctx, s.entryKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis credential: get failed: %w", err)
	}

	var cred SigningCredential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("redis credential: decode failed: %w", err)
	}
	return &cred, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*SigningCredential, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis credential: list failed: %w", err)
	}

	out := make([]*SigningCredential, 0, len(ids))
	for _, id := range ids {
		cred, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, cred)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.entryKey(id))
		pipe.SRem(ctx, s.indexKey(), Key(id))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis credential: delete failed: %w", err)
	}
	return del.Val() > 0, nil
}

func (s *RedisStore) SetUserPub(ctx context.Context, id, pub string) error {
	cred, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	cred.UserPub = pub
	return s.Put(ctx, cred)
}
