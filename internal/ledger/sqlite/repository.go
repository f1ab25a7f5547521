// Package sqlite is the local SQLite payment ledger. WAL mode lets the
// status endpoint read while reconciliation appends.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"storefront/internal/ledger"

	// Pure-Go driver, no CGO needed.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS payment_ledger (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id        TEXT    NOT NULL,
    reference       TEXT    NOT NULL DEFAULT '',
    kind            TEXT    NOT NULL,
    status          TEXT    NOT NULL DEFAULT '',
    raw_code        TEXT    NOT NULL DEFAULT '',
    amount          TEXT    NOT NULL DEFAULT '0',
    currency        TEXT    NOT NULL DEFAULT '',
    transaction_id  TEXT    NOT NULL DEFAULT '',
    source          TEXT    NOT NULL DEFAULT '',
    trace_id        TEXT    NOT NULL DEFAULT '',
    detail          TEXT,
    recorded_at     TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payment_ledger_order ON payment_ledger(order_id, recorded_at);
`

type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at path and applies the schema.
//
//	repo, err := sqlite.Open("./data/payment-ledger.db")
func Open(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create ledger dir %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// Single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Save appends entry. It is safe to call concurrently.
func (r *Repository) Save(ctx context.Context, entry *ledger.Entry) error {
	const q = `
		INSERT INTO payment_ledger
			(order_id, reference, kind, status, raw_code, amount, currency,
			 transaction_id, source, trace_id, detail, recorded_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.OrderID,
		entry.Reference,
		string(entry.Kind),
		entry.Status,
		entry.RawCode,
		entry.Amount.String(),
		entry.Currency,
		entry.TransactionID,
		entry.Source,
		entry.TraceID,
		nullableString(entry.Detail),
		formatTime(entry.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save ledger entry for %q: %w", entry.OrderID, err)
	}
	return nil
}

// ListByOrder returns every entry for orderID, oldest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID string) ([]ledger.Entry, error) {
	const q = `
		SELECT order_id, reference, kind, status, raw_code, amount, currency,
		       transaction_id, source, trace_id, COALESCE(detail, ''), recorded_at
		FROM   payment_ledger
		WHERE  order_id = ?
		ORDER  BY recorded_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list ledger for %q: %w", orderID, err)
	}
	defer rows.Close()

	entries := []ledger.Entry{}
	for rows.Next() {
		var (
			e          ledger.Entry
			kind       string
			amount     string
			recordedAt string
		)
		if err := rows.Scan(
			&e.OrderID, &e.Reference, &kind, &e.Status, &e.RawCode, &amount, &e.Currency,
			&e.TransactionID, &e.Source, &e.TraceID, &e.Detail, &recordedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan ledger row: %w", err)
		}

		e.Kind = ledger.Kind(kind)
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("sqlite: parse amount %q: %w", amount, err)
		}
		if e.RecordedAt, err = parseRFC3339(recordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate ledger rows: %w", err)
	}

	return entries, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
