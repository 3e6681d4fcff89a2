package incremental

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	uuid "github.com/satori/go.uuid"

	"github.com/dqguard/dqguard/internal/errs"
)

// FSStateStore persists each partition's analyzer states as
// <base>/<partition>/<analyzer_key>.json. A partition missing on disk loads as an empty map, not
// an error.
type FSStateStore struct {
	Base string
}

func NewFSStateStore(base string) *FSStateStore {
	return &FSStateStore{Base: base}
}

func (s *FSStateStore) partitionDir(partition string) string {
	return filepath.Join(s.Base, partition)
}

func (s *FSStateStore) LoadState(ctx context.Context, partition string) (map[string][]byte, error) {
	dir := s.partitionDir(partition)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string][]byte{}, nil
	}
	if err != nil {
		return nil, errs.ErrRepository.New(err.Error())
	}

	out := make(map[string][]byte, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		key := strings.TrimSuffix(e.Name(), ".json")
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, errs.ErrRepository.New(err.Error())
		}
		out[key] = data
	}
	return out, nil
}

// SaveState writes every analyzer's bytes into a fresh temporary
// directory, then swaps it in with a single rename, so a cancelled or
// crashed write never leaves a partition holding some analyzers' new
// state and others' stale state: a partition is written
// all-analyzers-or-none.
func (s *FSStateStore) SaveState(ctx context.Context, partition string, states map[string][]byte) error {
	if err := os.MkdirAll(s.Base, 0o755); err != nil {
		return errs.ErrRepository.New(err.Error())
	}

	token, err := uuid.NewV4()
	if err != nil {
		return errs.ErrRepository.New(err.Error())
	}
	tmpDir := filepath.Join(s.Base, ".tmp-"+partition+"-"+token.String())
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return errs.ErrRepository.New(err.Error())
	}
	defer os.RemoveAll(tmpDir)

	for key, data := range states {
		path := filepath.Join(tmpDir, key+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errs.ErrRepository.New(err.Error())
		}
	}

	dir := s.partitionDir(partition)
	if err := os.RemoveAll(dir); err != nil {
		return errs.ErrRepository.New(err.Error())
	}
	if err := os.Rename(tmpDir, dir); err != nil {
		return errs.ErrRepository.New(err.Error())
	}
	return nil
}

func (s *FSStateStore) ListPartitions(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Base)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.ErrRepository.New(err.Error())
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (s *FSStateStore) DeletePartition(ctx context.Context, partition string) error {
	if err := os.RemoveAll(s.partitionDir(partition)); err != nil {
		return errs.ErrRepository.New(err.Error())
	}
	return nil
}

func (s *FSStateStore) LoadStatesBatch(ctx context.Context, partitions []string) (map[string]map[string][]byte, error) {
	return LoadStatesBatchDefault(ctx, s, partitions)
}

var _ StateStore = (*FSStateStore)(nil)
