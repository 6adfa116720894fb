package wallet

import "time"

// ShoppingListItem is one entry on the shopping list. Items are immutable
// after creation; the list's insertion order (most recent first) is the
// externally observable order.
type ShoppingListItem struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category,omitempty"`
	FromRecipe string    `json:"fromRecipe,omitempty"`
	AddedAt    time.Time `json:"addedAt"`
}
