package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/errors"
)

type MySQLOrderRepository struct {
	db    *sql.DB
	items *MySQLOrderItemRepository
}

func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db, items: NewMySQLOrderItemRepository(db)}
}

const orderColumns = `
	id, ownerId, firstName, lastName, address, city, state, zipCode, country,
	email, phone, currency, subtotal, shipping, tax, total,
	status, paymentStatus, gatewayReference, sessionUrl, transactionId,
	paymentAttempt, createdAt, updatedAt`

// Create inserts the order and its line items in one transaction.
func (r *MySQLOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO Orders (` + orderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, query,
		order.ID, order.OwnerID,
		order.Shipping.FirstName, order.Shipping.LastName, order.Shipping.Address,
		order.Shipping.City, order.Shipping.State, order.Shipping.ZipCode, order.Shipping.Country,
		order.Contact.Email, order.Contact.Phone, order.Currency,
		order.Breakdown.Subtotal, order.Breakdown.Shipping, order.Breakdown.Tax, order.Breakdown.Total,
		string(order.Status), string(order.PaymentStatus),
		order.GatewayReference, order.SessionURL, order.TransactionID,
		order.PaymentAttempt, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	for i, item := range order.Items {
		if err := r.items.Insert(ctx, tx, order.ID, i, item); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing order: %w", err)
	}

	return nil
}

func (r *MySQLOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM Orders WHERE id = ?`

	var (
		order         domain.Order
		status        string
		paymentStatus string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID, &order.OwnerID,
		&order.Shipping.FirstName, &order.Shipping.LastName, &order.Shipping.Address,
		&order.Shipping.City, &order.Shipping.State, &order.Shipping.ZipCode, &order.Shipping.Country,
		&order.Contact.Email, &order.Contact.Phone, &order.Currency,
		&order.Breakdown.Subtotal, &order.Breakdown.Shipping, &order.Breakdown.Tax, &order.Breakdown.Total,
		&status, &paymentStatus,
		&order.GatewayReference, &order.SessionURL, &order.TransactionID,
		&order.PaymentAttempt, &order.CreatedAt, &order.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order by id: %w", err)
	}

	order.Status = domain.OrderStatus(status)
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)

	order.Items, err = r.items.FindByOrderID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &order, nil
}

// ApplyPaymentTransition performs the conditional status write. It reports
// false, without error, when the order no longer carries the expected
// reference or has already left every status in t.From.
func (r *MySQLOrderRepository) ApplyPaymentTransition(ctx context.Context, t domain.PaymentTransition) (bool, error) {
	if len(t.From) == 0 {
		return false, fmt.Errorf("transition to %s has no source status", t.ToPayment)
	}

	placeholders, fromArgs := statusArgs(t.From)
	query := fmt.Sprintf(`
		UPDATE Orders
		SET paymentStatus = ?, status = ?, transactionId = COALESCE(?, transactionId), updatedAt = ?
		WHERE id = ?
		  AND gatewayReference = ?
		  AND status = ?
		  AND paymentStatus IN (%s)`, placeholders)

	args := []interface{}{
		string(t.ToPayment), string(t.ToOrder), t.TransactionID, t.At,
		t.OrderID, t.ExpectedReference, string(domain.OrderStatusPending),
	}
	args = append(args, fromArgs...)

	return r.execConditional(ctx, query, args, "applying payment transition")
}

// AttachPaymentSession stores a new gateway reference and hosted URL. The
// write is conditional on the previous reference (NULL-safe) so two
// concurrent retries cannot both supersede the same attempt.
func (r *MySQLOrderRepository) AttachPaymentSession(ctx context.Context, a domain.SessionAttachment) (bool, error) {
	if len(a.From) == 0 {
		return false, fmt.Errorf("session attachment for %s has no source status", a.OrderID)
	}

	placeholders, fromArgs := statusArgs(a.From)
	query := fmt.Sprintf(`
		UPDATE Orders
		SET gatewayReference = ?, sessionUrl = ?, paymentStatus = ?,
		    transactionId = NULL, paymentAttempt = paymentAttempt + 1, updatedAt = ?
		WHERE id = ?
		  AND gatewayReference <=> ?
		  AND status = ?
		  AND paymentStatus IN (%s)`, placeholders)

	args := []interface{}{
		a.Reference, a.SessionURL, string(domain.PaymentStatusPending), a.At,
		a.OrderID, a.ExpectedReference, string(domain.OrderStatusPending),
	}
	args = append(args, fromArgs...)

	return r.execConditional(ctx, query, args, "attaching payment session")
}

// ListIDsForReverification returns pending orders whose payment is in one
// of statuses, carries a gateway reference and was last touched before
// updatedBefore. Oldest first.
func (r *MySQLOrderRepository) ListIDsForReverification(ctx context.Context, statuses []domain.PaymentStatus, updatedBefore time.Time, limit int) ([]string, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders, args := statusArgs(statuses)
	query := fmt.Sprintf(`
		SELECT id
		FROM Orders
		WHERE paymentStatus IN (%s)
		  AND status = ?
		  AND gatewayReference IS NOT NULL
		  AND updatedAt < ?
		ORDER BY updatedAt
		LIMIT ?`, placeholders)
	args = append(args, string(domain.OrderStatusPending), updatedBefore, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying orders for reverification: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning order id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order rows: %w", err)
	}

	return ids, nil
}

func (r *MySQLOrderRepository) execConditional(ctx context.Context, query string, args []interface{}, op string) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

func statusArgs(statuses []domain.PaymentStatus) (string, []interface{}) {
	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		placeholders[i] = "?"
		args[i] = string(s)
	}
	return strings.Join(placeholders, ", "), args
}
