package camera

import (
	"fmt"
	"sort"
	"sync"
)

// Store is the session-wide camera parameter set. Calibration goroutines
// fan out per camera and merge their results here only after the join
// barrier, so readers always observe a complete set.
type Store struct {
	mu     sync.RWMutex
	params map[string]*Parameters
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{params: make(map[string]*Parameters)}
}

// Merge installs a complete set of per-camera parameters at once.
func (s *Store) Merge(params map[string]*Parameters) error {
	for name, p := range params {
		if p == nil {
			return fmt.Errorf("nil parameters for camera %s", name)
		}
		if err := p.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, p := range params {
		s.params[name] = p
	}
	return nil
}

// Get returns the parameters for one camera.
func (s *Store) Get(name string) (*Parameters, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.params[name]
	return p, ok
}

// All returns the full parameter set keyed by camera name.
func (s *Store) All() map[string]*Parameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*Parameters, len(s.params))
	for name, p := range s.params {
		out[name] = p
	}
	return out
}

// Names returns the camera names in deterministic order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.params))
	for name := range s.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports how many cameras are registered.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.params)
}
