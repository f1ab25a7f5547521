package usecase

import (
	"fmt"
	"net/mail"
	"strings"

	"storefront/internal/cart"
	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
)

func validateCartItems(items []cart.Item) []apperrors.ValidationDetail {
	if len(items) == 0 {
		return []apperrors.ValidationDetail{{Field: "items", Message: "cart is empty"}}
	}
	return cart.ValidateItems(items)
}

func validateShipping(s domain.ShippingAddress, c domain.ContactInfo) []apperrors.ValidationDetail {
	var details []apperrors.ValidationDetail

	minLen := func(field, value string, n int) {
		if len([]rune(strings.TrimSpace(value))) < n {
			details = append(details, apperrors.ValidationDetail{
				Field:   field,
				Message: fmt.Sprintf("%s must be at least %d characters", field, n),
			})
		}
	}

	minLen("firstName", s.FirstName, 2)
	minLen("lastName", s.LastName, 2)
	minLen("address", s.Address, 10)
	minLen("city", s.City, 2)
	minLen("state", s.State, 2)
	minLen("zipCode", s.ZipCode, 5)
	minLen("country", s.Country, 2)
	minLen("phone", c.Phone, 10)

	if addr, err := mail.ParseAddress(c.Email); err != nil || addr.Address != strings.TrimSpace(c.Email) {
		details = append(details, apperrors.ValidationDetail{Field: "email", Message: "email must be a valid address"})
	}

	return details
}
