package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "storefront/internal/errors"
	"storefront/internal/infrastructure/mysql"
)

// MySQLStore keeps documents as JSON rows in the Documents table.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (s *MySQLStore) Create(ctx context.Context, collection, id string, fields Document) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	query := `INSERT INTO Documents (collection, id, body) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, collection, id, body); err != nil {
		if mysql.IsDuplicateEntry(err) {
			return apperrors.NewConflictError(fmt.Sprintf("%s/%s already exists", collection, id))
		}
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

func (s *MySQLStore) Get(ctx context.Context, collection, id string) (Document, error) {
	query := `SELECT body FROM Documents WHERE collection = ? AND id = ?`

	var body []byte
	err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s/%s not found", collection, id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}

	return decodeRaw(body)
}

func (s *MySQLStore) Update(ctx context.Context, collection, id string, partial Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var body []byte
	err = tx.QueryRowContext(ctx,
		`SELECT body FROM Documents WHERE collection = ? AND id = ? FOR UPDATE`,
		collection, id,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return apperrors.NewNotFoundError(fmt.Sprintf("%s/%s not found", collection, id))
	}
	if err != nil {
		return fmt.Errorf("locking document: %w", err)
	}

	doc, err := decodeRaw(body)
	if err != nil {
		return err
	}
	for k, v := range partial {
		doc[k] = v
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE Documents SET body = ? WHERE collection = ? AND id = ?`,
		merged, collection, id,
	); err != nil {
		return fmt.Errorf("updating document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing document update: %w", err)
	}
	return nil
}

func (s *MySQLStore) Query(ctx context.Context, collection string, q Query) ([]Record, error) {
	query, args, err := buildQuery(collection, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		doc, err := decodeRaw(body)
		if err != nil {
			return nil, err
		}
		records = append(records, Record{ID: id, Fields: doc})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}

	return records, nil
}

// buildQuery renders q as SQL. Field names are checked against fieldPattern
// before they are interpolated; values always travel as arguments.
func buildQuery(collection string, q Query) (string, []interface{}, error) {
	if err := validateQuery(q); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	args := []interface{}{collection}

	sb.WriteString(`SELECT id, body FROM Documents WHERE collection = ?`)

	for _, f := range q.Filters {
		op := string(f.Op)
		if f.Op == OpEqual {
			op = "="
		}
		if _, numeric := toFloat(f.Value); numeric {
			fmt.Fprintf(&sb, ` AND CAST(JSON_EXTRACT(body, '$.%s') AS DECIMAL(20,6)) %s ?`, f.Field, op)
		} else {
			fmt.Fprintf(&sb, ` AND JSON_UNQUOTE(JSON_EXTRACT(body, '$.%s')) %s ?`, f.Field, op)
		}
		args = append(args, f.Value)
	}

	if len(q.OrderBy) > 0 {
		parts := make([]string, 0, len(q.OrderBy))
		for _, o := range q.OrderBy {
			dir := "ASC"
			if o.Direction == Desc {
				dir = "DESC"
			}
			parts = append(parts, fmt.Sprintf(`JSON_UNQUOTE(JSON_EXTRACT(body, '$.%s')) %s`, o.Field, dir))
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", ") + ", id ASC")
	} else {
		sb.WriteString(" ORDER BY id ASC")
	}

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	return sb.String(), args, nil
}
