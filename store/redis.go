package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"go.nextspeaker.dev/nextspeaker/roster"
)

// Redis keeps candidates and history as lists under "<namespace>:candidates"
// and "<namespace>:history", and the halflife as "<namespace>:halflife".
type Redis struct {
	client    redis.UniversalClient
	namespace string
}

func NewRedis(addr, namespace string) *Redis {
	return NewRedisClient(redis.NewClient(&redis.Options{Addr: addr}), namespace)
}

// NewRedisClient wraps an existing client.
func NewRedisClient(client redis.UniversalClient, namespace string) *Redis {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Redis{client: client, namespace: namespace}
}

func (s *Redis) key(name string) string {
	return fmt.Sprintf("%s:%s", s.namespace, name)
}

func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Redis) Load(ctx context.Context) (roster.Roster, error) {
	keys := []string{s.key("candidates"), s.key("history"), s.key("halflife")}

	n, err := s.client.Exists(ctx, keys...).Result()
	if err != nil {
		return roster.Roster{}, err
	}
	if n == 0 {
		return roster.Roster{}, ErrNotFound
	}

	var candidates, history *redis.StringSliceCmd
	var halflife *redis.StringCmd
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		candidates = pipe.LRange(ctx, keys[0], 0, -1)
		history = pipe.LRange(ctx, keys[1], 0, -1)
		halflife = pipe.Get(ctx, keys[2])
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return roster.Roster{}, err
	}

	r := roster.New()
	r.Candidates = nilIfEmpty(candidates.Val())
	r.History = nilIfEmpty(history.Val())

	hv, err := halflife.Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return roster.Roster{}, err
	default:
		r.Halflife, err = strconv.ParseFloat(hv, 64)
		if err != nil {
			return roster.Roster{}, fmt.Errorf("parsing halflife %q: %w", hv, err)
		}
	}

	return r, nil
}

func (s *Redis) Save(ctx context.Context, r roster.Roster) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key("candidates"), s.key("history"))
		if len(r.Candidates) > 0 {
			pipe.RPush(ctx, s.key("candidates"), toArgs(r.Candidates)...)
		}
		if len(r.History) > 0 {
			pipe.RPush(ctx, s.key("history"), toArgs(r.History)...)
		}
		pipe.Set(ctx, s.key("halflife"), strconv.FormatFloat(r.Halflife, 'g', -1, 64), 0)
		return nil
	})
	return err
}

// AppendHistory records a selection without rewriting the whole roster.
func (s *Redis) AppendHistory(ctx context.Context, name string) error {
	return s.client.RPush(ctx, s.key("history"), name).Err()
}

func (s *Redis) Close() error {
	return s.client.Close()
}

func nilIfEmpty(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	return names
}

func toArgs(names []string) []any {
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}
	return args
}
