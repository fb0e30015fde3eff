package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a test, result or user the caller named
// does not exist in the store.
var ErrNotFound = errors.New("not found")

const (
	testsFile   = "tests.json"
	resultsFile = "results.json"
)

// mutation is one queued write. The writer goroutine runs fn while
// holding the write lock and sends the outcome back on done.
type mutation struct {
	fn   func() error
	done chan error
}

// Store persists tests and results as JSON files under a single
// directory. All writes funnel through one goroutine so concurrent
// chat sessions never interleave read-modify-write cycles; callers
// block until their write has been flushed to disk.
type Store struct {
	dir    string
	logger zerolog.Logger

	mu      sync.RWMutex
	writeCh chan mutation
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New opens a store rooted at dir, creating the directory if needed,
// and starts the writer goroutine.
func New(dir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	s := &Store{
		dir:     dir,
		logger:  logger.With().Str("component", "storage").Logger(),
		writeCh: make(chan mutation),
		closeCh: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

// Close stops the writer goroutine after draining queued writes.
func (s *Store) Close() {
	close(s.closeCh)
	s.wg.Wait()
}

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case m := <-s.writeCh:
			s.mu.Lock()
			err := m.fn()
			s.mu.Unlock()
			m.done <- err
		case <-s.closeCh:
			// Drain anything already queued before exiting.
			for {
				select {
				case m := <-s.writeCh:
					s.mu.Lock()
					err := m.fn()
					s.mu.Unlock()
					m.done <- err
				default:
					return
				}
			}
		}
	}
}

// enqueue submits fn to the writer goroutine and blocks until it ran.
func (s *Store) enqueue(ctx context.Context, fn func() error) error {
	m := mutation{fn: fn, done: make(chan error, 1)}
	select {
	case s.writeCh <- m:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-m.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readFile decodes the named JSON file into dst. A missing file or a
// corrupt one both leave dst untouched; corruption is logged and the
// store carries on with an empty view rather than failing every call.
func (s *Store) readFile(name string, dst any) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("file", name).Msg("failed to read data file")
		}
		return
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Warn().Err(err).Str("file", name).Msg("data file is corrupt, treating as empty")
	}
}

// writeFile atomically replaces the named JSON file.
func (s *Store) writeFile(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
