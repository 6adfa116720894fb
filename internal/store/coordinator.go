// Package store implements the coordinator that owns the live wallet
// snapshot. All mutation funnels through the Coordinator: every change
// updates the in-memory snapshot, persists the affected lists locally within
// the same call, and enqueues a fire-and-forget cloud save of the full
// snapshot. Cloud and local copies are overwritten wholesale, never patched.
package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rishavrajjain/recipewallet/internal/cloud"
	"github.com/rishavrajjain/recipewallet/internal/importer"
	"github.com/rishavrajjain/recipewallet/internal/localstore"
	"github.com/rishavrajjain/recipewallet/internal/logger"
	"github.com/rishavrajjain/recipewallet/internal/prefs"
	"github.com/rishavrajjain/recipewallet/internal/wallet"
)

// SyncStatus reports the outcome of the most recent persistence attempts.
type SyncStatus struct {
	CloudLoaded    bool
	CloudLoadErr   string
	LastLocalSave  time.Time
	LastLocalError string
}

// Coordinator is the single owner of the mutable snapshot. Network results
// re-enter through methods that take the coordinator's lock, so no two
// mutations ever interleave.
type Coordinator struct {
	local     *localstore.Store
	cloud     *cloud.Client
	tasks     *importer.TaskManager
	prefsPath string
	log       *logger.Logger

	mu       sync.Mutex
	snapshot wallet.Snapshot
	query    string
	filtered []wallet.Recipe
	status   SyncStatus
	flags    prefs.Prefs
}

// New creates a coordinator, adopts the local snapshot as the initial state,
// and repairs it. The cloud merge does not start until Start is called.
func New(ctx context.Context, local *localstore.Store, cloudClient *cloud.Client, importClient importer.LinkImporter, prefsPath string, log *logger.Logger) (*Coordinator, error) {
	c := &Coordinator{
		local:     local,
		cloud:     cloudClient,
		prefsPath: prefsPath,
		log:       log,
	}
	c.tasks = importer.NewTaskManager(importClient, log, c.applyImportResult)

	snap, err := local.LoadSnapshot(ctx)
	if err != nil {
		// A broken local database is not fatal: start from an empty
		// snapshot, the cloud copy can still restore the data.
		log.Warn("store: local load failed, starting empty: %v", err)
		snap = wallet.Snapshot{}
	}
	c.snapshot = snap
	c.repairLocked(ctx)
	c.recomputeFilteredLocked()

	c.flags, _ = prefs.Load(prefsPath)
	if !c.flags.FirstRunDone {
		c.flags.FirstRunDone = true
		if err := prefs.Save(prefsPath, c.flags); err != nil {
			log.Warn("store: save prefs: %v", err)
		}
		if err := local.MarkFirstRunDone(ctx); err != nil {
			log.Warn("store: mark first run: %v", err)
		}
	}

	return c, nil
}

// Start kicks off the cloud merge in the background. Callers who need the
// merge to complete before reading use SyncNow instead.
func (c *Coordinator) Start(ctx context.Context) {
	go func() { _ = c.SyncNow(ctx) }()
}

// SyncNow performs one synchronous cloud round trip: load the remote
// document, merge it, persist the result locally, and enqueue the merged
// snapshot for upload. Each of the three lists is merged independently: a
// non-empty cloud list replaces the local list wholesale, an empty cloud
// list keeps local. This coarse last-writer-wins-if-present rule is a
// deliberate design choice.
func (c *Coordinator) SyncNow(ctx context.Context) error {
	remote, err := c.cloud.Load(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.status.CloudLoadErr = err.Error()
		c.log.Warn("store: cloud load failed, local stays authoritative: %v", err)
		return err
	}
	c.status.CloudLoaded = true
	c.status.CloudLoadErr = ""

	if len(remote.Recipes) > 0 {
		c.snapshot.Recipes = remote.Recipes
	}
	if len(remote.Collections) > 0 {
		c.snapshot.Collections = remote.Collections
	}
	if len(remote.ShoppingList) > 0 {
		c.snapshot.ShoppingList = remote.ShoppingList
	}

	c.repairLocked(ctx)
	c.recomputeFilteredLocked()
	c.persistAllLocked(ctx)
	return nil
}

// repairLocked enforces startup invariants on the snapshot: dangling recipe
// references are dropped, the protected Meal Preps collection exists
// whenever recipes do, and the legacy Favorites collection is removed.
// Callers must hold mu (or have exclusive access during construction).
func (c *Coordinator) repairLocked(ctx context.Context) {
	c.snapshot.Normalize()

	kept := c.snapshot.Collections[:0]
	for _, col := range c.snapshot.Collections {
		if col.Name == wallet.LegacyFavoritesName {
			continue
		}
		kept = append(kept, col)
	}
	c.snapshot.Collections = kept

	if len(c.snapshot.Recipes) > 0 && !c.hasMealPrepsLocked() {
		c.snapshot.Collections = append(c.snapshot.Collections, wallet.Collection{
			ID:        wallet.NewID(),
			Name:      wallet.MealPrepsName,
			CreatedAt: time.Now().UTC(),
		})
	}
}

func (c *Coordinator) hasMealPrepsLocked() bool {
	for _, col := range c.snapshot.Collections {
		if col.Name == wallet.MealPrepsName {
			return true
		}
	}
	return false
}

// ── Reads ────────────────────────────────────────────────────────

// Snapshot returns a deep copy of the current snapshot.
func (c *Coordinator) Snapshot() wallet.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.Clone()
}

// FilteredRecipes returns the current derived view: recipes matching the
// search text (all recipes when it is empty), newest first.
func (c *Coordinator) FilteredRecipes() []wallet.Recipe {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]wallet.Recipe, len(c.filtered))
	copy(out, c.filtered)
	return out
}

// Status returns the most recent persistence outcomes.
func (c *Coordinator) Status() SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// FirstImportDone reports whether the one-shot first-import flag is set.
func (c *Coordinator) FirstImportDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags.FirstImportDone
}

// SetSearchText updates the query and recomputes the filtered view.
func (c *Coordinator) SetSearchText(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = query
	c.recomputeFilteredLocked()
}

func (c *Coordinator) recomputeFilteredLocked() {
	filtered := make([]wallet.Recipe, 0, len(c.snapshot.Recipes))
	for _, r := range c.snapshot.Recipes {
		if r.MatchesQuery(c.query) {
			filtered = append(filtered, r)
		}
	}
	wallet.SortRecipesNewestFirst(filtered)
	c.filtered = filtered
}

// ── Recipe mutations ─────────────────────────────────────────────

// AddRecipe inserts a recipe at the front of the list.
func (c *Coordinator) AddRecipe(ctx context.Context, r wallet.Recipe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertRecipeLocked(ctx, r)
}

// insertRecipeLocked applies the front insertion, repairs invariants, and
// persists. Callers must hold mu.
func (c *Coordinator) insertRecipeLocked(ctx context.Context, r wallet.Recipe) {
	c.snapshot.Recipes = append([]wallet.Recipe{r}, c.snapshot.Recipes...)
	c.repairLocked(ctx)
	c.recomputeFilteredLocked()
	c.persistLocked(ctx, c.local.SaveRecipes(ctx, c.snapshot.Recipes))
	c.persistLocked(ctx, c.local.SaveCollections(ctx, c.snapshot.Collections))
	c.enqueueCloudSaveLocked()
}

// RenameRecipe changes a recipe's name, the only mutable recipe field.
func (c *Coordinator) RenameRecipe(ctx context.Context, recipeID, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.snapshot.Recipes {
		if c.snapshot.Recipes[i].ID == recipeID {
			c.snapshot.Recipes[i].Name = name
			c.recomputeFilteredLocked()
			c.persistLocked(ctx, c.local.SaveRecipes(ctx, c.snapshot.Recipes))
			c.enqueueCloudSaveLocked()
			return true
		}
	}
	return false
}

// DeleteRecipe removes the recipe and strips its ID from every collection's
// membership set, so no dangling reference survives the call.
func (c *Coordinator) DeleteRecipe(ctx context.Context, recipeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	kept := c.snapshot.Recipes[:0]
	for _, r := range c.snapshot.Recipes {
		if r.ID == recipeID {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return false
	}
	c.snapshot.Recipes = kept

	for i := range c.snapshot.Collections {
		c.snapshot.Collections[i].Remove(recipeID)
	}

	c.recomputeFilteredLocked()
	c.persistLocked(ctx, c.local.SaveRecipes(ctx, c.snapshot.Recipes))
	c.persistLocked(ctx, c.local.SaveCollections(ctx, c.snapshot.Collections))
	c.enqueueCloudSaveLocked()
	return true
}

// ── Collection mutations ─────────────────────────────────────────

// CreateCollection adds a new, empty collection and returns its ID.
func (c *Coordinator) CreateCollection(ctx context.Context, name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	col := wallet.Collection{
		ID:        wallet.NewID(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	c.snapshot.Collections = append(c.snapshot.Collections, col)
	c.persistLocked(ctx, c.local.SaveCollections(ctx, c.snapshot.Collections))
	c.enqueueCloudSaveLocked()
	return col.ID, true
}

// DeleteCollection removes a collection. The protected Meal Preps collection
// is never deleted; attempting to returns false.
func (c *Coordinator) DeleteCollection(ctx context.Context, collectionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	kept := c.snapshot.Collections[:0]
	for _, col := range c.snapshot.Collections {
		if col.ID == collectionID {
			if col.IsProtected() {
				kept = append(kept, col)
				continue
			}
			found = true
			continue
		}
		kept = append(kept, col)
	}
	c.snapshot.Collections = kept
	if !found {
		return false
	}

	c.persistLocked(ctx, c.local.SaveCollections(ctx, c.snapshot.Collections))
	c.enqueueCloudSaveLocked()
	return true
}

// ToggleRecipeInCollection flips the recipe's membership in the collection.
// Toggling twice restores the original set.
func (c *Coordinator) ToggleRecipeInCollection(ctx context.Context, collectionID, recipeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.snapshot.Collections {
		if c.snapshot.Collections[i].ID != collectionID {
			continue
		}
		c.snapshot.Collections[i].Toggle(recipeID)
		c.repairLocked(ctx)
		c.persistLocked(ctx, c.local.SaveCollections(ctx, c.snapshot.Collections))
		c.enqueueCloudSaveLocked()
		return true
	}
	return false
}

// ── Shopping list mutations ──────────────────────────────────────

// AddShoppingItem prepends an item to the shopping list; most recent first
// is the externally observable order.
func (c *Coordinator) AddShoppingItem(ctx context.Context, name, category string) wallet.ShoppingListItem {
	item := wallet.ShoppingListItem{
		ID:       wallet.NewID(),
		Name:     strings.TrimSpace(name),
		Category: wallet.NormalizeCategory(category),
		AddedAt:  time.Now().UTC(),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.ShoppingList = append([]wallet.ShoppingListItem{item}, c.snapshot.ShoppingList...)
	c.persistLocked(ctx, c.local.SaveShoppingList(ctx, c.snapshot.ShoppingList))
	c.enqueueCloudSaveLocked()
	return item
}

// AddRecipeToShoppingList adds every ingredient of the recipe to the
// shopping list, tagged with the recipe as provenance. Returns the number of
// items added.
func (c *Coordinator) AddRecipeToShoppingList(ctx context.Context, recipeID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var recipe *wallet.Recipe
	for i := range c.snapshot.Recipes {
		if c.snapshot.Recipes[i].ID == recipeID {
			recipe = &c.snapshot.Recipes[i]
			break
		}
	}
	if recipe == nil {
		return 0
	}

	now := time.Now().UTC()
	items := make([]wallet.ShoppingListItem, 0, len(recipe.Ingredients))
	for _, ing := range recipe.Ingredients {
		items = append(items, wallet.ShoppingListItem{
			ID:         wallet.NewID(),
			Name:       ing.Name,
			Category:   ing.Category,
			FromRecipe: recipe.Name,
			AddedAt:    now,
		})
	}
	c.snapshot.ShoppingList = append(items, c.snapshot.ShoppingList...)
	c.persistLocked(ctx, c.local.SaveShoppingList(ctx, c.snapshot.ShoppingList))
	c.enqueueCloudSaveLocked()
	return len(items)
}

// RemoveShoppingItem deletes a single shopping-list item by ID.
func (c *Coordinator) RemoveShoppingItem(ctx context.Context, itemID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	kept := c.snapshot.ShoppingList[:0]
	for _, item := range c.snapshot.ShoppingList {
		if item.ID == itemID {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return false
	}
	c.snapshot.ShoppingList = kept
	c.persistLocked(ctx, c.local.SaveShoppingList(ctx, c.snapshot.ShoppingList))
	c.enqueueCloudSaveLocked()
	return true
}

// ClearShoppingList removes every item.
func (c *Coordinator) ClearShoppingList(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.ShoppingList = nil
	c.persistLocked(ctx, c.local.SaveShoppingList(ctx, c.snapshot.ShoppingList))
	c.enqueueCloudSaveLocked()
}

// ── Import integration ───────────────────────────────────────────

// StartImport begins a single-flight import. While one import is running a
// second call is rejected with importer.ErrImportInFlight.
func (c *Coordinator) StartImport(ctx context.Context, link, customName string) error {
	return c.tasks.StartImport(ctx, link, customName)
}

// CancelImport cancels the in-flight import, if any.
func (c *Coordinator) CancelImport() {
	c.tasks.CancelImport()
}

// ImportState exposes the task manager's lifecycle state.
func (c *Coordinator) ImportState() importer.State {
	return c.tasks.State()
}

// ImportError returns the user-facing message of the most recent failed
// import, or empty.
func (c *Coordinator) ImportError() string {
	return c.tasks.LastError()
}

// applyImportResult runs on the import goroutine and hops back into the
// coordinator by taking the lock. A successful import is applied as one
// atomic mutation; a failure leaves the recipe list untouched.
func (c *Coordinator) applyImportResult(res importer.Result) {
	if res.Err != nil {
		return
	}

	ctx := context.Background()
	c.mu.Lock()
	c.insertRecipeLocked(ctx, res.Recipe)

	if !c.flags.FirstImportDone {
		c.flags.FirstImportDone = true
		if err := prefs.Save(c.prefsPath, c.flags); err != nil {
			c.log.Warn("store: save first-import flag: %v", err)
		}
	}
	c.mu.Unlock()
}

// ── Sign-out ─────────────────────────────────────────────────────

// SignOut clears the cloud client's cache. Local data stays; it is the
// source of truth for the remainder of the session.
func (c *Coordinator) SignOut() {
	c.cloud.SignOut()
}

// ── Persistence plumbing ─────────────────────────────────────────

// persistLocked records the outcome of a local save. Local persistence
// failures are logged and swallowed; they never block the caller.
func (c *Coordinator) persistLocked(_ context.Context, err error) {
	if err != nil {
		c.status.LastLocalError = err.Error()
		c.log.Error("store: local persist failed: %v", err)
		return
	}
	c.status.LastLocalSave = time.Now()
	c.status.LastLocalError = ""
}

// persistAllLocked writes the whole snapshot locally in one transaction and
// enqueues the matching cloud save. Used after the startup merge, where all
// three lists may have changed at once.
func (c *Coordinator) persistAllLocked(ctx context.Context) {
	c.persistLocked(ctx, c.local.SaveSnapshot(ctx, c.snapshot))
	c.enqueueCloudSaveLocked()
}

// enqueueCloudSaveLocked hands the full snapshot to the cloud client. Saves
// are fire-and-forget; ordering does not matter because each save carries
// the complete snapshot and the last one to land is authoritative.
func (c *Coordinator) enqueueCloudSaveLocked() {
	c.cloud.EnqueueSave(c.snapshot)
}
