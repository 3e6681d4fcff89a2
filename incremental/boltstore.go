package incremental

import (
	"context"
	"sort"
	"time"

	"github.com/boltdb/bolt"

	"github.com/dqguard/dqguard/internal/errs"
)

// BoltStateStore is the single-file alternative to FSStateStore: one
// bucket per partition, one key per analyzer_key, holding the same JSON
// bytes FSStateStore would have written to disk. Unlike the filesystem
// backend's temp-directory-rename approximation, every SaveState call
// here is a single bolt transaction, so "all analyzers or none" is exact
// rather than approximated.
type BoltStateStore struct {
	db *bolt.DB
}

func NewBoltStateStore(path string) (*BoltStateStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errs.ErrRepository.New(err.Error())
	}
	return &BoltStateStore{db: db}, nil
}

func (s *BoltStateStore) Close() error { return s.db.Close() }

func (s *BoltStateStore) LoadState(ctx context.Context, partition string) (map[string][]byte, error) {
	out := map[string][]byte{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(partition))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			value := make([]byte, len(v))
			copy(value, v)
			out[string(k)] = value
			return nil
		})
	})
	if err != nil {
		return nil, errs.ErrRepository.New(err.Error())
	}
	return out, nil
}

func (s *BoltStateStore) SaveState(ctx context.Context, partition string, states map[string][]byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(partition)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket([]byte(partition))
		if err != nil {
			return err
		}
		for key, data := range states {
			if err := b.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.ErrRepository.New(err.Error())
	}
	return nil
}

func (s *BoltStateStore) ListPartitions(ctx context.Context) ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			out = append(out, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, errs.ErrRepository.New(err.Error())
	}
	sort.Strings(out)
	return out, nil
}

func (s *BoltStateStore) DeletePartition(ctx context.Context, partition string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(partition)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		return nil
	})
	if err != nil {
		return errs.ErrRepository.New(err.Error())
	}
	return nil
}

func (s *BoltStateStore) LoadStatesBatch(ctx context.Context, partitions []string) (map[string]map[string][]byte, error) {
	return LoadStatesBatchDefault(ctx, s, partitions)
}

var _ StateStore = (*BoltStateStore)(nil)
