package peer

import (
	"sync"

	"github.com/google/uuid"
)

// OpenMemoryStore returns a Store that keeps documents only in memory.
// Useful for tests and for running Nelson with --temporary.
func OpenMemoryStore() Store {
	return &memoryStore{docs: map[docID]*document{}}
}

var _ Store = &memoryStore{}

type memoryStore struct {
	mu   sync.Mutex
	docs map[docID]*document
}

func (s *memoryStore) All() ([]*document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]*document, 0, len(s.docs))
	for _, d := range s.docs {
		cp := *d
		docs = append(docs, &cp)
	}
	return docs, nil
}

func (s *memoryStore) Put(d *document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = docID(uuid.New().String())
	}
	cp := *d
	s.docs[d.ID] = &cp
	return nil
}

func (s *memoryStore) Delete(id docID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

func (s *memoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = map[docID]*document{}
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}
