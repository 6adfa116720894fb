package wallet

import "strings"

// Snapshot is the triple of recipes, collections, and shopping list treated
// as one atomic unit for load, save, and merge.
type Snapshot struct {
	Recipes      []Recipe           `json:"recipes"`
	Collections  []Collection       `json:"collections"`
	ShoppingList []ShoppingListItem `json:"shoppingList"`
}

// IsEmpty reports whether all three lists are empty.
func (s Snapshot) IsEmpty() bool {
	return len(s.Recipes) == 0 && len(s.Collections) == 0 && len(s.ShoppingList) == 0
}

// Clone returns a deep copy of the snapshot so callers can hand it to other
// goroutines without sharing backing arrays.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{}
	if len(s.Recipes) > 0 {
		out.Recipes = make([]Recipe, len(s.Recipes))
		copy(out.Recipes, s.Recipes)
		for i := range out.Recipes {
			out.Recipes[i].Ingredients = append([]Ingredient(nil), s.Recipes[i].Ingredients...)
			out.Recipes[i].Steps = append([]string(nil), s.Recipes[i].Steps...)
			if s.Recipes[i].Nutrition != nil {
				n := *s.Recipes[i].Nutrition
				out.Recipes[i].Nutrition = &n
			}
			if s.Recipes[i].Provenance != nil {
				p := *s.Recipes[i].Provenance
				out.Recipes[i].Provenance = &p
			}
		}
	}
	if len(s.Collections) > 0 {
		out.Collections = make([]Collection, len(s.Collections))
		copy(out.Collections, s.Collections)
		for i := range out.Collections {
			out.Collections[i].RecipeIDs = append([]string(nil), s.Collections[i].RecipeIDs...)
		}
	}
	if len(s.ShoppingList) > 0 {
		out.ShoppingList = make([]ShoppingListItem, len(s.ShoppingList))
		copy(out.ShoppingList, s.ShoppingList)
	}
	return out
}

// Normalize enforces the snapshot invariants in place:
//
//   - collection membership sets are de-duplicated
//   - recipe IDs referenced by a collection but absent from Recipes are
//     dropped (no dangling references persist)
//   - recipe steps that are empty after trimming are removed
func (s *Snapshot) Normalize() {
	known := make(map[string]bool, len(s.Recipes))
	for _, r := range s.Recipes {
		known[r.ID] = true
	}

	for i := range s.Collections {
		seen := make(map[string]bool, len(s.Collections[i].RecipeIDs))
		kept := s.Collections[i].RecipeIDs[:0]
		for _, id := range s.Collections[i].RecipeIDs {
			if known[id] && !seen[id] {
				seen[id] = true
				kept = append(kept, id)
			}
		}
		s.Collections[i].RecipeIDs = kept
	}

	for i := range s.Recipes {
		kept := s.Recipes[i].Steps[:0]
		for _, step := range s.Recipes[i].Steps {
			if trimmed := strings.TrimSpace(step); trimmed != "" {
				kept = append(kept, trimmed)
			}
		}
		s.Recipes[i].Steps = kept
	}
}
