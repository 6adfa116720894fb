package wallet

import "time"

// MealPrepsName identifies the protected collection. It cannot be deleted and
// is re-created whenever recipes exist without it.
const MealPrepsName = "Meal Preps"

// LegacyFavoritesName identifies the retired collection that older installs
// may still carry. It is removed during startup repair.
const LegacyFavoritesName = "Favorites"

// Collection groups recipes by ID. Membership is a set: RecipeIDs carries no
// meaningful order and never holds duplicates.
type Collection struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RecipeIDs []string  `json:"recipeIds"`
	CreatedAt time.Time `json:"createdAt"`
}

// Contains reports whether the collection holds the given recipe ID.
func (c Collection) Contains(recipeID string) bool {
	for _, id := range c.RecipeIDs {
		if id == recipeID {
			return true
		}
	}
	return false
}

// Toggle adds the recipe ID if absent and removes it if present. Toggling
// twice restores the original membership.
func (c *Collection) Toggle(recipeID string) {
	if c.Contains(recipeID) {
		c.Remove(recipeID)
		return
	}
	c.RecipeIDs = append(c.RecipeIDs, recipeID)
}

// Add inserts the recipe ID if it is not already a member.
func (c *Collection) Add(recipeID string) {
	if !c.Contains(recipeID) {
		c.RecipeIDs = append(c.RecipeIDs, recipeID)
	}
}

// Remove deletes the recipe ID from the membership set. Removing an absent ID
// is a no-op.
func (c *Collection) Remove(recipeID string) {
	kept := c.RecipeIDs[:0]
	for _, id := range c.RecipeIDs {
		if id != recipeID {
			kept = append(kept, id)
		}
	}
	c.RecipeIDs = kept
}

// IsProtected reports whether the collection may never be deleted.
func (c Collection) IsProtected() bool {
	return c.Name == MealPrepsName
}
