package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/port"
	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps the snapshot in an embedded BadgerDB.
type BadgerStore struct {
	db  *badger.DB
	key []byte
}

var _ port.SnapshotStore = (*BadgerStore)(nil)

// NewBadgerStore opens (or creates) a BadgerDB under dir.
func NewBadgerStore(dir, key string) (*BadgerStore, error) {
	return OpenBadgerStore(badger.DefaultOptions(dir).WithLogger(nil), key)
}

func OpenBadgerStore(opts badger.Options, key string) (*BadgerStore, error) {
	if key == "" {
		key = DefaultKey
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db, key: []byte(key)}, nil
}

func (s *BadgerStore) Save(ctx context.Context, snap *domain.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key, data)
	})
}

func (s *BadgerStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return decode(data)
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
