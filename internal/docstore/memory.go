package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "storefront/internal/errors"
)

// MemoryStore keeps documents in process. Values are stored in their JSON
// form so reads behave like the MySQL store (numbers come back as float64).
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Create(ctx context.Context, collection, id string, fields Document) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("docstore: encode document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string][]byte)
		s.collections[collection] = docs
	}
	if _, exists := docs[id]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("%s/%s already exists", collection, id))
	}
	docs[id] = raw
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	raw, ok := s.collections[collection][id]
	s.mu.RUnlock()

	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s/%s not found", collection, id))
	}
	return decodeRaw(raw)
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, partial Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.collections[collection][id]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("%s/%s not found", collection, id))
	}

	doc, err := decodeRaw(raw)
	if err != nil {
		return err
	}
	for k, v := range partial {
		doc[k] = v
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: encode document: %w", err)
	}
	s.collections[collection][id] = merged
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Record, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	s.mu.RLock()
	records := make([]Record, 0, len(s.collections[collection]))
	for id, raw := range s.collections[collection] {
		doc, err := decodeRaw(raw)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		if matches(doc, q.Filters) {
			records = append(records, Record{ID: id, Fields: doc})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		for _, o := range q.OrderBy {
			c := compare(records[i].Fields[o.Field], records[j].Fields[o.Field])
			if c == 0 {
				continue
			}
			if o.Direction == Desc {
				return c > 0
			}
			return c < 0
		}
		return records[i].ID < records[j].ID
	})

	if q.Limit > 0 && len(records) > q.Limit {
		records = records[:q.Limit]
	}
	return records, nil
}

func decodeRaw(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("docstore: decode document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

func matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		value, ok := doc[f.Field]
		if !ok {
			return false
		}
		c := compare(value, f.Value)
		var pass bool
		switch f.Op {
		case OpEqual:
			pass = c == 0
		case OpNotEqual:
			pass = c != 0
		case OpLessThan:
			pass = c < 0
		case OpLessOrEqual:
			pass = c <= 0
		case OpGreaterThan:
			pass = c > 0
		case OpGreaterOrEqual:
			pass = c >= 0
		}
		if !pass {
			return false
		}
	}
	return true
}

// compare orders numbers numerically and everything else by string form.
func compare(a, b any) int {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
