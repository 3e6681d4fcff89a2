// Package repository stores (ResultKey → ValidationReport) pairs and
// offers a query builder over them. InMemoryRepository
// is the canonical reference backend; ConsulRepository is the
// multi-process alternative for deployments with ≥1,000 stored entries.
package repository

import (
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/hashstructure"

	"github.com/dqguard/dqguard/internal/errs"
)

// ResultKey identifies one stored report: a millisecond timestamp plus
// an arbitrary tag set. Two keys with the same timestamp and the same
// tags (any map iteration order) are the same key.
type ResultKey struct {
	TimestampMS int64
	Tags        map[string]string
}

func NewResultKey(timestampMS int64, tags map[string]string) ResultKey {
	t := make(map[string]string, len(tags))
	for k, v := range tags {
		t[k] = v
	}
	return ResultKey{TimestampMS: timestampMS, Tags: t}
}

// normalized renders the key's canonical representation: sorted tag
// keys, so two ResultKeys built from maps with different iteration
// order still normalize identically.
func (k ResultKey) normalized() string {
	names := make([]string, 0, len(k.Tags))
	for name := range k.Tags {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(strconv.FormatInt(k.TimestampMS, 10))
	for _, name := range names {
		b.WriteByte('\x1f')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(k.Tags[name])
	}
	return b.String()
}

// collisionHash hashes the normalized representation so the in-memory
// backend's collision probe is an O(1) map lookup rather than a linear
// scan comparing tag maps.
func (k ResultKey) collisionHash() (uint64, error) {
	h, err := hashstructure.Hash(k.normalized(), nil)
	if err != nil {
		return 0, errs.ErrRepository.New(err.Error())
	}
	return h, nil
}

// hasTags reports whether k carries every (name, value) pair in want.
func (k ResultKey) hasTags(want map[string]string) bool {
	for name, value := range want {
		if k.Tags[name] != value {
			return false
		}
	}
	return true
}
