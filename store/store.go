// Package store persists completed interview records for replay and
// scoring.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/voxprep/voxprep/internal/types"
)

// ErrNotFound is returned when an interview id has no record.
var ErrNotFound = errors.New("interview not found")

const interviewPrefix = "interview/"

// Store is a badger-backed archive of InterviewOutput records.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the archive at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral archive, used in tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveInterview writes one completed record, overwriting any previous
// record with the same id.
func (s *Store) SaveInterview(out types.InterviewOutput) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal interview: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(interviewPrefix+out.ID), data)
	})
	if err != nil {
		return fmt.Errorf("save interview: %w", err)
	}
	return nil
}

// GetInterview loads one record by id.
func (s *Store) GetInterview(id string) (types.InterviewOutput, error) {
	var out types.InterviewOutput
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(interviewPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		return types.InterviewOutput{}, err
	}
	return out, nil
}

// ListInterviews returns all archived records.
func (s *Store) ListInterviews() ([]types.InterviewOutput, error) {
	var outs []types.InterviewOutput
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(interviewPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var out types.InterviewOutput
				if err := json.Unmarshal(val, &out); err != nil {
					return err
				}
				outs = append(outs, out)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}
	return outs, nil
}
