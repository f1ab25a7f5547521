package cart

import (
	"fmt"
	"strings"

	apperrors "storefront/internal/errors"
)

const (
	MaxItems    = 100
	MaxQuantity = 10000
)

// ValidateItems checks item shape only. Whether products exist and are in
// stock is decided at checkout.
func ValidateItems(items []Item) []apperrors.ValidationDetail {
	var details []apperrors.ValidationDetail

	if len(items) > MaxItems {
		details = append(details, apperrors.ValidationDetail{
			Field:   "items",
			Message: fmt.Sprintf("items exceeds maximum of %d", MaxItems),
		})
	}

	seen := make(map[string]bool)
	for idx, item := range items {
		field := fmt.Sprintf("items[%d]", idx)
		if strings.TrimSpace(item.ProductID) == "" {
			details = append(details, apperrors.ValidationDetail{Field: field + ".productId", Message: "productId is required"})
		}

		variant := item.ProductID + "|" + item.Size + "|" + item.Color
		if seen[variant] {
			details = append(details, apperrors.ValidationDetail{Field: field + ".productId", Message: "product variant must not be duplicated"})
		}
		seen[variant] = true

		if item.Quantity < 1 || item.Quantity > MaxQuantity {
			details = append(details, apperrors.ValidationDetail{
				Field:   field + ".quantity",
				Message: fmt.Sprintf("quantity must be between 1 and %d", MaxQuantity),
			})
		}
	}

	return details
}
