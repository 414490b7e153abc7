// Package store persists rosters. The file backend keeps a JSON state
// file in a state directory; redis and mysql keep the same data in a
// shared server so several instances can take turns choosing.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"go.ntppool.org/common/logger"
	"go.nextspeaker.dev/nextspeaker/roster"
)

var (
	// ErrNotFound is returned by Load when nothing has been saved yet.
	ErrNotFound = errors.New("no saved state")

	// ErrSchemaMismatch is returned when the state was written with a
	// schema this version doesn't understand. It is never overwritten.
	ErrSchemaMismatch = errors.New("state schema version mismatch")
)

// Store loads and saves a roster.
type Store interface {
	Load(ctx context.Context) (roster.Roster, error)
	Save(ctx context.Context, r roster.Roster) error
	Close() error
}

// HistoryAppender is implemented by stores that can record a selection
// without rewriting the whole roster.
type HistoryAppender interface {
	AppendHistory(ctx context.Context, name string) error
}

// Record appends name to the stored history.
func Record(ctx context.Context, s Store, name string) error {
	if a, ok := s.(HistoryAppender); ok {
		return a.AppendHistory(ctx, name)
	}
	r, err := LoadOrNew(ctx, s)
	if err != nil {
		return err
	}
	r.Record(name)
	return s.Save(ctx, r)
}

const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMySQL = "mysql"
)

const DefaultNamespace = "nextspeaker"

type Config struct {
	Backend   string
	StateDir  string
	RedisAddr string
	MySQLDSN  string
	Namespace string

	// ConnectTimeout bounds how long Open retries a network backend.
	ConnectTimeout time.Duration
}

// Open returns the store configured by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	log := logger.FromContext(ctx)

	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	switch cfg.Backend {
	case BackendFile, "":
		log.DebugContext(ctx, "using file store", "dir", cfg.StateDir)
		return NewFile(cfg.StateDir)

	case BackendRedis:
		s := NewRedis(cfg.RedisAddr, ns)
		if err := waitReady(ctx, cfg, BackendRedis, s.Ping); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil

	case BackendMySQL:
		s, err := OpenMySQL(cfg.MySQLDSN, ns)
		if err != nil {
			return nil, err
		}
		if err := waitReady(ctx, cfg, BackendMySQL, s.Ping); err != nil {
			s.Close()
			return nil, err
		}
		if err := s.migrate(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("mysql migrate: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// LoadOrNew loads the roster from s, or returns an empty roster if none
// has been saved yet.
func LoadOrNew(ctx context.Context, s Store) (roster.Roster, error) {
	r, err := s.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return roster.New(), nil
	}
	return r, err
}

func waitReady(ctx context.Context, cfg Config, backend string, ping func(context.Context) error) error {
	log := logger.FromContext(ctx)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	expback := backoff.NewExponentialBackOff()
	expback.InitialInterval = 250 * time.Millisecond
	expback.MaxInterval = 5 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := ping(ctx)
		if err != nil {
			log.WarnContext(ctx, "store not reachable", "backend", backend, "err", err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(expback),
		backoff.WithMaxElapsedTime(timeout),
	)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", backend, err)
	}

	log.DebugContext(ctx, "store ready", "backend", backend)
	return nil
}
