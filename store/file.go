package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.ntppool.org/common/logger"
	"go.nextspeaker.dev/nextspeaker/roster"
)

const (
	StateFile     = "state.json"
	SchemaVersion = "v0.1"
)

// storedState is the inner document of the state file. Candidates and
// history are newline delimited text.
type storedState struct {
	HistoryHalflife float64 `json:"history_halflife"`
	Candidates      string  `json:"candidates"`
	History         string  `json:"history"`
}

// File stores the roster as a JSON array of the schema version and the
// encoded storedState.
type File struct {
	dir  string
	lock sync.Mutex
}

func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("state directory not set")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &File{dir: dir}, nil
}

// Path returns the state file location.
func (f *File) Path() string {
	return filepath.Join(f.dir, StateFile)
}

func (f *File) Load(ctx context.Context) (roster.Roster, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	b, err := os.ReadFile(f.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return roster.Roster{}, ErrNotFound
		}
		return roster.Roster{}, err
	}

	r, err := decodeState(b)
	if err != nil {
		return roster.Roster{}, fmt.Errorf("%s: %w", f.Path(), err)
	}

	logger.FromContext(ctx).DebugContext(ctx, "loaded state",
		"path", f.Path(), "candidates", len(r.Candidates), "history", len(r.History))

	return r, nil
}

func (f *File) Save(ctx context.Context, r roster.Roster) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	path := f.Path()

	// don't clobber state from another schema version
	if b, err := os.ReadFile(path); err == nil {
		if _, err := decodeState(b); errors.Is(err, ErrSchemaMismatch) {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	b, err := encodeState(r)
	if err != nil {
		return err
	}
	if err := replaceFile(path, b); err != nil {
		return err
	}

	logger.FromContext(ctx).DebugContext(ctx, "saved state", "path", path, "length", len(b))

	return nil
}

func (f *File) Close() error { return nil }

func encodeState(r roster.Roster) ([]byte, error) {
	inner, err := json.Marshal(storedState{
		HistoryHalflife: r.Halflife,
		Candidates:      roster.FormatLines(r.Candidates),
		History:         roster.FormatLines(r.History),
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal([]string{SchemaVersion, string(inner)})
}

func decodeState(b []byte) (roster.Roster, error) {
	var envelope []string
	if err := json.Unmarshal(b, &envelope); err != nil {
		return roster.Roster{}, fmt.Errorf("decoding state: %w", err)
	}
	if len(envelope) < 2 || envelope[0] != SchemaVersion {
		version := ""
		if len(envelope) > 0 {
			version = envelope[0]
		}
		return roster.Roster{}, fmt.Errorf("%w: got %q, want %q", ErrSchemaMismatch, version, SchemaVersion)
	}

	var ss storedState
	if err := json.Unmarshal([]byte(envelope[1]), &ss); err != nil {
		return roster.Roster{}, fmt.Errorf("decoding state: %w", err)
	}

	return roster.Roster{
		Candidates: roster.ParseLines(ss.Candidates),
		History:    roster.ParseLines(ss.History),
		Halflife:   ss.HistoryHalflife,
	}, nil
}

func replaceFile(path string, b []byte) (err error) {
	tmpPath := path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		f.Close()
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	n, err := f.Write(b)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	if err1 := f.Close(); err == nil {
		err = err1
	}
	if err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
