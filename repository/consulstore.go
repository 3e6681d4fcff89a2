package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/consul/api"

	"github.com/dqguard/dqguard/core"
	"github.com/dqguard/dqguard/internal/errs"
)

// ConsulRepository is the multi-process alternative to InMemoryRepository:
// every entry is one key under a fixed KV prefix, so separate processes
// sharing one consul agent observe the same stored reports. A single
// in-process map stops being the right tradeoff once reports must
// survive past one process.
type ConsulRepository struct {
	kv     *api.KV
	prefix string
}

func NewConsulRepository(cfg *api.Config, prefix string) (*ConsulRepository, error) {
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, errs.ErrRepository.New(err.Error())
	}
	return &ConsulRepository{kv: client.KV(), prefix: strings.TrimSuffix(prefix, "/")}, nil
}

// storedEntry is the JSON shape persisted under each KV key: the tag
// set plus the full report, keyed in KV by timestamp and hash so a
// List call can recover every entry without a secondary index.
type storedEntry struct {
	TimestampMS int64                 `json:"timestamp_ms"`
	Tags        map[string]string     `json:"tags"`
	Report      core.ValidationReport `json:"report"`
}

func (c *ConsulRepository) kvKey(key ResultKey) (string, error) {
	h, err := key.collisionHash()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%d-%x", c.prefix, key.TimestampMS, h), nil
}

func (c *ConsulRepository) Put(ctx context.Context, key ResultKey, report core.ValidationReport) error {
	kvKey, err := c.kvKey(key)
	if err != nil {
		return err
	}

	existing, _, err := c.kv.Get(kvKey, nil)
	if err != nil {
		return errs.ErrRepository.New(err.Error())
	}
	if existing != nil {
		return errs.ErrKeyCollision.New(key.TimestampMS)
	}

	data, err := json.Marshal(storedEntry{TimestampMS: key.TimestampMS, Tags: key.Tags, Report: report})
	if err != nil {
		return errs.ErrRepository.New(err.Error())
	}
	if _, err := c.kv.Put(&api.KVPair{Key: kvKey, Value: data}, nil); err != nil {
		return errs.ErrRepository.New(err.Error())
	}
	return nil
}

func (c *ConsulRepository) Get(ctx context.Context, key ResultKey) (Entry, bool, error) {
	kvKey, err := c.kvKey(key)
	if err != nil {
		return Entry{}, false, err
	}
	pair, _, err := c.kv.Get(kvKey, nil)
	if err != nil {
		return Entry{}, false, errs.ErrRepository.New(err.Error())
	}
	if pair == nil {
		return Entry{}, false, nil
	}
	var stored storedEntry
	if err := json.Unmarshal(pair.Value, &stored); err != nil {
		return Entry{}, false, errs.ErrRepository.New(err.Error())
	}
	return Entry{Key: NewResultKey(stored.TimestampMS, stored.Tags), Report: stored.Report}, true, nil
}

func (c *ConsulRepository) Delete(ctx context.Context, key ResultKey) error {
	kvKey, err := c.kvKey(key)
	if err != nil {
		return err
	}
	if _, err := c.kv.Delete(kvKey, nil); err != nil {
		return errs.ErrRepository.New(err.Error())
	}
	return nil
}

// Query lists every entry under the prefix and filters/sorts/paginates
// in process, since consul's KV API has no server-side filter beyond key
// prefix, so this mirrors InMemoryRepository.Query's logic over a
// remote-fetched entry set instead of an in-memory one.
func (c *ConsulRepository) Query(ctx context.Context, q Query) ([]Entry, error) {
	pairs, _, err := c.kv.List(c.prefix+"/", nil)
	if err != nil {
		return nil, errs.ErrRepository.New(err.Error())
	}

	var matched []Entry
	for _, pair := range pairs {
		var stored storedEntry
		if err := json.Unmarshal(pair.Value, &stored); err != nil {
			return nil, errs.ErrRepository.New(err.Error())
		}
		key := NewResultKey(stored.TimestampMS, stored.Tags)
		if q.matches(key, stored.Report) {
			matched = append(matched, Entry{Key: key, Report: stored.Report})
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if q.sort == SortDescending {
			return matched[i].Key.TimestampMS > matched[j].Key.TimestampMS
		}
		return matched[i].Key.TimestampMS < matched[j].Key.TimestampMS
	})
	return paginate(matched, q.offset, q.limit), nil
}

var _ Repository = (*ConsulRepository)(nil)
