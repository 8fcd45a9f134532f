package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/port"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

const (
	recordPrefix = "rec/"
	movedKey     = "meta/moved"
)

// BadgerRepository persists records in badger under rec/<slot>/<name>\x00<sequence>.
// Slot and sequence are fixed width so key order matches slot, name, sequence order.
type BadgerRepository struct {
	db *badger.DB
}

var _ port.RecordRepository = (*BadgerRepository)(nil)

// NewBadgerRepository opens (or creates) a record store in dir.
func NewBadgerRepository(dir string) (*BadgerRepository, error) {
	return OpenBadgerRepository(badger.DefaultOptions(dir).WithLogger(nil))
}

func OpenBadgerRepository(opts badger.Options) (*BadgerRepository, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	return &BadgerRepository{db: db}, nil
}

func slotPrefix(slot int) []byte {
	return []byte(fmt.Sprintf("%s%08d/", recordPrefix, slot))
}

func namePrefix(slot int, name string) []byte {
	return append(slotPrefix(slot), append([]byte(name), 0)...)
}

func recordKeyOf(rec domain.Record) []byte {
	return append(namePrefix(rec.Slot, rec.Name), []byte(fmt.Sprintf("%020d", rec.Sequence))...)
}

func (r *BadgerRepository) Put(_ context.Context, rec domain.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKeyOf(rec), raw)
	})
}

func (r *BadgerRepository) Versions(_ context.Context, slot int, name string) ([]domain.Record, error) {
	var out []domain.Record
	err := r.db.View(func(txn *badger.Txn) error {
		return scan(txn, namePrefix(slot, name), nil, func(_ []byte, rec domain.Record) bool {
			out = append(out, rec)
			return true
		})
	})
	return out, err
}

func (r *BadgerRepository) List(_ context.Context, slots []slotmap.Range) ([]domain.Record, error) {
	var out []domain.Record
	err := r.db.View(func(txn *badger.Txn) error {
		for _, rg := range slotmap.Normalize(slots) {
			if err := scanRange(txn, rg, func(_ []byte, rec domain.Record) {
				out = append(out, rec)
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (r *BadgerRepository) DeleteSlots(_ context.Context, slots []slotmap.Range) (int, error) {
	var keys [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		for _, rg := range slotmap.Normalize(slots) {
			if err := scanRange(txn, rg, func(key []byte, _ domain.Record) {
				keys = append(keys, key)
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return 0, err
	}

	wb := r.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("delete record: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush deletes: %w", err)
	}
	return len(keys), nil
}

func (r *BadgerRepository) SaveMoved(_ context.Context, moved []domain.MovedRange) error {
	raw, err := json.Marshal(moved)
	if err != nil {
		return fmt.Errorf("encode moved slots: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(movedKey), raw)
	})
}

func (r *BadgerRepository) Moved(_ context.Context) ([]domain.MovedRange, error) {
	var moved []domain.MovedRange
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(movedKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			return json.Unmarshal(raw, &moved)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load moved slots: %w", err)
	}
	return moved, nil
}

func (r *BadgerRepository) Close() error {
	return r.db.Close()
}

// scanRange visits every record whose slot lies in rg.
func scanRange(txn *badger.Txn, rg slotmap.Range, fn func(key []byte, rec domain.Record)) error {
	end := slotPrefix(rg.End + 1)
	return scan(txn, []byte(recordPrefix), slotPrefix(rg.Start), func(key []byte, rec domain.Record) bool {
		if bytes.Compare(key, end) >= 0 {
			return false
		}
		fn(key, rec)
		return true
	})
}

// scan iterates keys under prefix starting at seek, or at prefix when seek is nil,
// until fn returns false.
func scan(txn *badger.Txn, prefix, seek []byte, fn func(key []byte, rec domain.Record) bool) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	if seek == nil {
		seek = prefix
	}
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("read record %q: %w", key, err)
		}
		var rec domain.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode record %q: %w", key, err)
		}
		if !fn(key, rec) {
			return nil
		}
	}
	return nil
}
