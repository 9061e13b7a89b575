// internal/pipeline/components.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/valpere/listingharvest/internal/monitoring"
	"github.com/valpere/listingharvest/internal/utils"
	"github.com/valpere/listingharvest/pkg/types"
)

// DefaultScanPageSize is the page size used to read known keys.
const DefaultScanPageSize = 1000

// ErrSnapshot wraps a failure to read the known keys from the sink.
var ErrSnapshot = errors.New("failed to load known records")

// KeyLister is the read side of a sink.
type KeyLister interface {
	ListKeys(ctx context.Context, offset, limit int) ([]string, error)
}

// RecordDeduplicator drops records whose key was already seen in the same
// batch. The first occurrence wins.
type RecordDeduplicator struct {
	seen map[string]struct{}
}

// NewRecordDeduplicator creates an empty deduplicator.
func NewRecordDeduplicator() *RecordDeduplicator {
	return &RecordDeduplicator{seen: make(map[string]struct{})}
}

// Seen reports whether key was already offered, and marks it as seen.
func (rd *RecordDeduplicator) Seen(key string) bool {
	if _, ok := rd.seen[key]; ok {
		return true
	}
	rd.seen[key] = struct{}{}
	return false
}

// Cleaner runs Clean over a batch and drops in-batch duplicates.
type Cleaner struct {
	metrics *monitoring.MetricsManager
	logger  utils.Logger
}

// NewCleaner creates a cleaner; metrics may be nil.
func NewCleaner(metrics *monitoring.MetricsManager, logger utils.Logger) *Cleaner {
	return &Cleaner{metrics: metrics, logger: logger}
}

// CleanAll cleans candidates in order, keeping the first record per key.
func (c *Cleaner) CleanAll(candidates []types.RawCandidate) []types.CleanRecord {
	dedup := NewRecordDeduplicator()
	records := make([]types.CleanRecord, 0, len(candidates))

	for _, cand := range candidates {
		rec, ok := Clean(cand)
		if !ok {
			c.metrics.RecordCleaned(monitoring.OutcomeDropped)
			c.logger.WithField("address", cand.SourceAddress).Debug("candidate dropped by cleaner")
			continue
		}
		if dedup.Seen(rec.Key) {
			c.metrics.RecordCleaned(monitoring.OutcomeDuplicate)
			c.logger.WithField("key", rec.Key).Debug("duplicate key within run dropped")
			continue
		}
		c.metrics.RecordCleaned(monitoring.OutcomeKept)
		records = append(records, rec)
	}
	return records
}

// KnownKeySet is the snapshot of identity keys already held by the sink.
// It is read-only once loaded.
type KnownKeySet struct {
	keys map[string]struct{}
}

// NewKnownKeySet builds a set from keys, canonicalizing each.
func NewKnownKeySet(keys ...string) *KnownKeySet {
	s := &KnownKeySet{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		if k = Canonicalize(k); k != "" {
			s.keys[k] = struct{}{}
		}
	}
	return s
}

// LoadKnownKeys pages through the sink until an empty page. Any read error,
// or a page identical to the one before it, is returned wrapped in
// ErrSnapshot.
func LoadKnownKeys(ctx context.Context, lister KeyLister, pageSize int) (*KnownKeySet, error) {
	if pageSize <= 0 {
		pageSize = DefaultScanPageSize
	}

	s := &KnownKeySet{keys: make(map[string]struct{})}
	var previous []string
	for offset := 0; ; offset += pageSize {
		page, err := lister.ListKeys(ctx, offset, pageSize)
		if err != nil {
			return nil, fmt.Errorf("%w: offset %d: %v", ErrSnapshot, offset, err)
		}
		if len(page) == 0 {
			return s, nil
		}
		// Keys are unique in the sink, so a repeated page means offset is ignored.
		if offset > 0 && slices.Equal(page, previous) {
			return nil, fmt.Errorf("%w: offset %d: page repeats the previous one", ErrSnapshot, offset)
		}
		previous = page
		for _, k := range page {
			if k = Canonicalize(k); k != "" {
				s.keys[k] = struct{}{}
			}
		}
	}
}

// Contains reports whether key is known.
func (s *KnownKeySet) Contains(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of known keys.
func (s *KnownKeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Partition splits records into those not yet known and those already known,
// preserving order in both.
func (s *KnownKeySet) Partition(records []types.CleanRecord) (fresh, known []types.CleanRecord) {
	for _, r := range records {
		if s.Contains(r.Key) {
			known = append(known, r)
		} else {
			fresh = append(fresh, r)
		}
	}
	return fresh, known
}
