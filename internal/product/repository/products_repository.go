package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/errors"
)

type MySQLRepository struct {
	db *sql.DB
}

func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

const productColumns = `id, name, price, salePrice, stock, isActive, isDeleted, createdAt, updatedAt`

// FindByIDs returns the non-deleted products among ids, ordered by id.
// Missing ids are simply absent from the result.
func (r *MySQLRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM Product
		WHERE id IN (%s)
		  AND isDeleted = 0
		ORDER BY id`,
		productColumns,
		strings.Join(placeholders, ", "),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating product rows: %w", err)
	}

	return products, nil
}

// FindByIDForUpdate locks the product row for the rest of tx.
func (r *MySQLRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*domain.Product, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM Product
		WHERE id = ?
		  AND isDeleted = 0
		FOR UPDATE`, productColumns)

	p, err := scanProduct(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("product %s not found", id))
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DecrementStock removes quantity units. Products without stock tracking
// (NULL stock) are left untouched. It fails with a ConflictError when the
// tracked stock is lower than quantity.
func (r *MySQLRepository) DecrementStock(ctx context.Context, tx *sql.Tx, id string, quantity int) error {
	query := `
		UPDATE Product
		SET stock = stock - ?
		WHERE id = ?
		  AND isDeleted = 0
		  AND stock IS NOT NULL
		  AND stock >= ?`

	result, err := tx.ExecContext(ctx, query, quantity, id, quantity)
	if err != nil {
		return fmt.Errorf("decrementing product stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		p, err := r.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if !p.TracksStock() {
			return nil
		}
		return errors.NewConflictError(fmt.Sprintf("insufficient stock for product %s", id))
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p     domain.Product
		stock sql.NullInt64
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &p.SalePrice, &stock,
		&p.IsActive, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning product row: %w", err)
	}
	if stock.Valid {
		s := int(stock.Int64)
		p.Stock = &s
	}
	return &p, nil
}
