package cart

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/docstore"
	apperrors "storefront/internal/errors"
)

const collection = "carts"

type Item struct {
	ProductID string `json:"productId"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Quantity  int    `json:"quantity"`
}

type Cart struct {
	Key       string    `json:"-"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

type Repository struct {
	store docstore.Store
	now   func() time.Time
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store, now: time.Now}
}

// Get returns the cart stored under key, or an empty cart when none exists.
func (r *Repository) Get(ctx context.Context, key string) (*Cart, error) {
	doc, err := r.store.Get(ctx, collection, key)
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return &Cart{Key: key, Items: []Item{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading cart %s: %w", key, err)
	}

	var c Cart
	if err := docstore.Decode(doc, &c); err != nil {
		return nil, fmt.Errorf("decoding cart %s: %w", key, err)
	}
	c.Key = key
	if c.Items == nil {
		c.Items = []Item{}
	}
	return &c, nil
}

// Save replaces the cart items, creating the document on first write.
func (r *Repository) Save(ctx context.Context, c *Cart) error {
	c.UpdatedAt = r.now().UTC()
	if c.Items == nil {
		c.Items = []Item{}
	}

	doc, err := docstore.Encode(c)
	if err != nil {
		return err
	}

	err = r.store.Update(ctx, collection, c.Key, doc)
	if _, ok := apperrors.IsNotFoundError(err); ok {
		err = r.store.Create(ctx, collection, c.Key, doc)
		if _, conflict := apperrors.IsConflictError(err); conflict {
			err = r.store.Update(ctx, collection, c.Key, doc)
		}
	}
	if err != nil {
		return fmt.Errorf("saving cart %s: %w", c.Key, err)
	}
	return nil
}

// Clear empties the cart. A cart that was never stored is already clear.
func (r *Repository) Clear(ctx context.Context, key string) error {
	err := r.store.Update(ctx, collection, key, docstore.Document{
		"items":     []any{},
		"updatedAt": r.now().UTC(),
	})
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return nil
	}
	if err != nil {
		return fmt.Errorf("clearing cart %s: %w", key, err)
	}
	return nil
}
