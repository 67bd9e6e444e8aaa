package monitor

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
)

// MemoryStorage is a key/value store standing in for browser storage.
type MemoryStorage struct {
	mu    sync.Mutex
	items map[string]string
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (s *MemoryStorage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *MemoryStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Clear removes every item.
func (s *MemoryStorage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.items)
	return nil
}

// WriterNavigator prints the absolute login URL instead of navigating.
type WriterNavigator struct {
	Base *url.URL
	Out  io.Writer
}

func (n WriterNavigator) Navigate(_ context.Context, target string) error {
	ref, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parse navigation target: %w", err)
	}
	abs := ref
	if n.Base != nil {
		abs = n.Base.ResolveReference(ref)
	}
	_, err = fmt.Fprintf(n.Out, "session ended; sign in again at %s\n", abs)
	return err
}
