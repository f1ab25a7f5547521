package domain

import (
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
)

// DefaultOrderIDPrefix is used when no prefix is configured.
const DefaultOrderIDPrefix = "GZ"

var orderIDEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewOrderID returns "<prefix>-<26 base32 chars>" built from a random UUID.
func NewOrderID(prefix string) string {
	if prefix == "" {
		prefix = DefaultOrderIDPrefix
	}
	id := uuid.New()
	return prefix + "-" + orderIDEncoding.EncodeToString(id[:])
}

// ValidOrderID reports whether id has the shape produced by NewOrderID for
// some prefix.
func ValidOrderID(id string) bool {
	prefix, body, ok := strings.Cut(id, "-")
	if !ok || prefix == "" || len(body) != 26 {
		return false
	}
	_, err := orderIDEncoding.DecodeString(body)
	return err == nil
}
