// Package docstore is the generic keyed document store used for data this
// service reads but does not own, such as carts. Documents are flat JSON
// objects addressed by (collection, id).
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
)

type Document map[string]any

type Record struct {
	ID     string
	Fields Document
}

type Operator string

const (
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpLessThan       Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpGreaterThan    Operator = ">"
	OpGreaterOrEqual Operator = ">="
)

type Filter struct {
	Field string
	Op    Operator
	Value any
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Ordering struct {
	Field     string
	Direction Direction
}

type Query struct {
	Filters []Filter
	OrderBy []Ordering
	// Limit <= 0 means no limit.
	Limit int
}

type Store interface {
	// Create fails with a ConflictError when the id already exists.
	Create(ctx context.Context, collection, id string, fields Document) error
	// Get fails with a NotFoundError when the id does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Update merges partial into the top-level fields of an existing document.
	Update(ctx context.Context, collection, id string, partial Document) error
	Query(ctx context.Context, collection string, q Query) ([]Record, error)
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)

func validateQuery(q Query) error {
	for _, f := range q.Filters {
		if !fieldPattern.MatchString(f.Field) {
			return fmt.Errorf("docstore: invalid filter field %q", f.Field)
		}
		switch f.Op {
		case OpEqual, OpNotEqual, OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual:
		default:
			return fmt.Errorf("docstore: unsupported operator %q", f.Op)
		}
	}
	for _, o := range q.OrderBy {
		if !fieldPattern.MatchString(o.Field) {
			return fmt.Errorf("docstore: invalid order field %q", o.Field)
		}
		if o.Direction != Asc && o.Direction != Desc && o.Direction != "" {
			return fmt.Errorf("docstore: invalid direction %q", o.Direction)
		}
	}
	return nil
}

// Decode converts a document into v through its JSON form.
func Decode(doc Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: encode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("docstore: decode document: %w", err)
	}
	return nil
}

// Encode converts v into a document through its JSON form.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode value: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("docstore: value is not an object: %w", err)
	}
	return doc, nil
}
