package wallet

import "github.com/google/uuid"

// NewID returns a fresh stable identifier for recipes, collections, and
// shopping-list items.
func NewID() string {
	return uuid.NewString()
}
