package peer

import (
	"bytes"
	"encoding/gob"

	"github.com/dgraph-io/badger"
	"github.com/google/uuid"
)

// OpenBadgerStore returns a Store backed by an embedded Badger database.
// The returned Store must be Close()'d after use.
func OpenBadgerStore(opts badger.Options) (Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerStore{db: db}, nil
}

var _ Store = &badgerStore{}

type badgerStore struct {
	db *badger.DB
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}

func (s *badgerStore) All() ([]*document, error) {
	var docs []*document
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var d document
			if err := item.Value(func(val []byte) error {
				return gob.NewDecoder(bytes.NewReader(val)).Decode(&d)
			}); err != nil {
				return err
			}
			docs = append(docs, &d)
		}
		return nil
	})
	return docs, err
}

func (s *badgerStore) Put(d *document) error {
	if d.ID == "" {
		d.ID = docID(uuid.New().String())
	}
	return s.db.Update(func(txn *badger.Txn) error {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(d); err != nil {
			return err
		}
		return txn.Set([]byte(d.ID), buf.Bytes())
	})
}

func (s *badgerStore) Delete(id docID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func (s *badgerStore) Clear() error {
	return s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
