package repository

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/domain"
)

type MySQLOrderItemRepository struct {
	db *sql.DB
}

func NewMySQLOrderItemRepository(db *sql.DB) *MySQLOrderItemRepository {
	return &MySQLOrderItemRepository{db: db}
}

// Insert stores one line item; position keeps the cart order stable.
func (r *MySQLOrderItemRepository) Insert(ctx context.Context, tx *sql.Tx, orderID string, position int, item domain.LineItem) error {
	query := `
		INSERT INTO OrderItems (orderId, position, productId, name, size, color, quantity, unitPrice)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := tx.ExecContext(ctx, query,
		orderID, position, item.ProductID, item.Name, item.Size, item.Color, item.Quantity, item.UnitPrice,
	)
	if err != nil {
		return fmt.Errorf("inserting order item: %w", err)
	}

	return nil
}

func (r *MySQLOrderItemRepository) FindByOrderID(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	query := `
		SELECT productId, name, size, color, quantity, unitPrice
		FROM OrderItems
		WHERE orderId = ?
		ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("querying order items: %w", err)
	}
	defer rows.Close()

	items := []domain.LineItem{}
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Size, &item.Color, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scanning order item row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order item rows: %w", err)
	}

	return items, nil
}
