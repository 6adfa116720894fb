// Package wallet defines the core data model for the recipe wallet: recipes,
// collections, the shopping list, and the snapshot that groups the three for
// load, save, and merge. All other packages depend on wallet; wallet depends
// on nothing outside the standard library.
package wallet

import (
	"sort"
	"strings"
	"time"
)

// Ingredient categories used for shopping-list grouping.
const (
	CategoryPantry  = "pantry"
	CategoryProduce = "produce"
	CategoryProtein = "protein"
	CategoryDairy   = "dairy"
	CategoryOther   = "other"
)

var validCategories = map[string]bool{
	CategoryPantry:  true,
	CategoryProduce: true,
	CategoryProtein: true,
	CategoryDairy:   true,
	CategoryOther:   true,
}

// NormalizeCategory maps an arbitrary category string onto the fixed set,
// falling back to "other" for anything unrecognized.
func NormalizeCategory(s string) string {
	c := strings.ToLower(strings.TrimSpace(s))
	if validCategories[c] {
		return c
	}
	return CategoryOther
}

// Ingredient is a single recipe ingredient.
type Ingredient struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Nutrition holds per-serving nutrition facts when the extraction service
// provides them.
type Nutrition struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fat      int `json:"fat"`
}

// Provenance records where an imported recipe came from.
type Provenance struct {
	ExtractedFrom string `json:"extractedFrom,omitempty"`
	CreatorHandle string `json:"creatorHandle,omitempty"`
	CreatorName   string `json:"creatorName,omitempty"`
	OriginalURL   string `json:"originalUrl,omitempty"`
}

// Recipe is a stored recipe. ID is stable and immutable once created; Name is
// the only field the user can edit after creation.
type Recipe struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	ImageURL    string       `json:"imageUrl"`
	PrepTime    int          `json:"prepTime,omitempty"` // minutes
	CookTime    int          `json:"cookTime,omitempty"` // minutes
	Difficulty  string       `json:"difficulty,omitempty"`
	Nutrition   *Nutrition   `json:"nutrition,omitempty"`
	Ingredients []Ingredient `json:"ingredients"`
	IsFromReel  bool         `json:"isFromReel"`
	Provenance  *Provenance  `json:"provenance,omitempty"`
	Steps       []string     `json:"steps"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// MatchesQuery reports whether the recipe matches a case-insensitive
// substring search against its name or any ingredient name.
func (r Recipe) MatchesQuery(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(r.Name), q) {
		return true
	}
	for _, ing := range r.Ingredients {
		if strings.Contains(strings.ToLower(ing.Name), q) {
			return true
		}
	}
	return false
}

// SortRecipesNewestFirst orders recipes by CreatedAt descending. The ordering
// is part of the store's read contract, not a display nicety.
func SortRecipesNewestFirst(recipes []Recipe) {
	sort.SliceStable(recipes, func(i, j int) bool {
		return recipes[i].CreatedAt.After(recipes[j].CreatedAt)
	})
}
