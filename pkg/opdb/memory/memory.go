package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/veesix-networks/cidrd/pkg/opdb"
)

var ErrClosed = errors.New("opdb: store closed")

// Store is a process-local opdb.Store. Nothing survives a restart.
type Store struct {
	mu     sync.RWMutex
	data   map[string]map[string][]byte
	closed bool
}

func New() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

func (s *Store) Put(ctx context.Context, namespace, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		s.data[namespace] = ns
	}
	ns[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	delete(s.data[namespace], key)
	return nil
}

// Load visits keys in sorted order.
func (s *Store) Load(ctx context.Context, namespace string, fn opdb.LoadFunc) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	ns := s.data[namespace]
	keys := make([]string, 0, len(ns))
	for k := range ns {
		keys = append(keys, k)
	}
	values := make(map[string][]byte, len(ns))
	for k, v := range ns {
		values[k] = append([]byte(nil), v...)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	delete(s.data, namespace)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ opdb.Store = (*Store)(nil)
