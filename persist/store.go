// Package persist implements a file-backed named key-value store for
// numeric parameter vectors, the configuration collaborator cameras load
// their intrinsics from. Values live in an env-substituted JSON5 file of
// key -> vector entries.
package persist

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/a8m/envsubst"
	"github.com/edaniels/golog"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// ErrMissing is returned by a required GetVector for an absent key.
var ErrMissing = errors.New("no value for key")

// A Store holds named parameter vectors. Vectors registered by consumers
// stay aliased, so their in-place mutations are visible to Save.
type Store struct {
	mu         sync.Mutex
	path       string
	logger     golog.Logger
	vals       map[string][]float64
	registered map[string][]float64
}

// NewStore loads the store file at path, or starts empty when path is "".
// Environment variable references in the file are expanded before parsing.
func NewStore(path string, logger golog.Logger) (*Store, error) {
	s := &Store{
		path:       path,
		logger:     logger,
		vals:       map[string][]float64{},
		registered: map[string][]float64{},
	}
	if path != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	buf, err := envsubst.ReadFile(s.path)
	if err != nil {
		return errors.Wrapf(err, "error reading store file %q", s.path)
	}
	vals := map[string][]float64{}
	if err := json5.Unmarshal(buf, &vals); err != nil {
		return errors.Wrapf(err, "error parsing store file %q", s.path)
	}
	s.mu.Lock()
	s.vals = vals
	s.mu.Unlock()
	return nil
}

// GetVector returns the vector stored under key. An absent key returns an
// ErrMissing-wrapped error when required; otherwise the default is adopted
// into the store and returned. The returned slice is always a copy.
func (s *Store) GetVector(key string, def []float64, required bool) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.vals[key]; ok {
		return append([]float64(nil), v...), nil
	}
	if required {
		return nil, errors.Wrapf(ErrMissing, "%q", key)
	}
	s.logger.Debugw("key not found, using default", "key", key, "default", def)
	s.vals[key] = append([]float64(nil), def...)
	return append([]float64(nil), def...), nil
}

// SetVector stores a copy of vals under key.
func (s *Store) SetVector(key string, vals []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[key] = append([]float64(nil), vals...)
}

// Register records a live reference to vals under key. Save reads the
// slice's current contents, so later in-place updates by the owner are
// persisted without further calls.
func (s *Store) Register(key string, vals []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered[key] = vals
}

// Keys returns all known keys, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.vals)+len(s.registered))
	for k := range s.vals {
		keys = append(keys, k)
	}
	for k := range s.registered {
		if _, ok := s.vals[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Save writes the store back to the file it was loaded from.
func (s *Store) Save() error {
	if s.path == "" {
		return errors.New("store has no backing file")
	}
	return s.SaveTo(s.path)
}

// SaveTo writes all values, with registered vectors taking precedence over
// loaded ones, as JSON to path.
func (s *Store) SaveTo(path string) error {
	s.mu.Lock()
	out := map[string][]float64{}
	for k, v := range s.vals {
		out[k] = append([]float64(nil), v...)
	}
	for k, v := range s.registered {
		out[k] = append([]float64(nil), v...)
	}
	s.mu.Unlock()

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error marshaling store")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrapf(err, "error writing store file %q", path)
	}
	return nil
}

// Watch reloads the store whenever its backing file changes, until ctx is
// done. Registered vectors are not touched; consumers pick up new values
// on their next GetVector.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return errors.New("store has no backing file")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "error creating file watcher")
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			s.logger.Errorw("error closing file watcher", "error", err)
		}
	}()
	if err := watcher.Add(s.path); err != nil {
		return errors.Wrapf(err, "error watching store file %q", s.path)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.load(); err != nil {
				s.logger.Errorw("error reloading store file", "error", err)
				continue
			}
			s.logger.Infow("store file reloaded", "path", s.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Errorw("file watcher error", "error", err)
		}
	}
}
