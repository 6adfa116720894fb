package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rishavrajjain/recipewallet/internal/cloud"
	"github.com/rishavrajjain/recipewallet/internal/importer"
	"github.com/rishavrajjain/recipewallet/internal/localstore"
	"github.com/rishavrajjain/recipewallet/internal/logger"
	"github.com/rishavrajjain/recipewallet/internal/wallet"
)

func testLogger() *logger.Logger {
	return logger.New(logger.LevelOff, nil)
}

// stubImporter blocks until released so import lifecycle tests are
// deterministic.
type stubImporter struct {
	release chan struct{}
	recipe  wallet.Recipe
	err     error
}

func newStubImporter(recipe wallet.Recipe, err error) *stubImporter {
	return &stubImporter{release: make(chan struct{}), recipe: recipe, err: err}
}

func (s *stubImporter) ImportFromLink(ctx context.Context, _ string) (wallet.Recipe, error) {
	select {
	case <-s.release:
	case <-ctx.Done():
		return wallet.Recipe{}, ctx.Err()
	}
	return s.recipe, s.err
}

type fixture struct {
	coord *Coordinator
	local *localstore.Store
	stub  *stubImporter
}

// newFixture wires a coordinator over a temporary SQLite store, a cloud
// client with no signed-in identity, and a stub import service. seed, if
// non-empty, is written to the local store before the coordinator adopts it.
func newFixture(t *testing.T, seed wallet.Snapshot) fixture {
	t.Helper()
	ctx := context.Background()

	local, err := localstore.Open(ctx, filepath.Join(t.TempDir(), "wallet.db"))
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { local.Close() })

	if !seed.IsEmpty() {
		if err := local.SaveSnapshot(ctx, seed); err != nil {
			t.Fatalf("seed local store: %v", err)
		}
	}

	remote, err := cloud.NewClient("https://sync.invalid", cloud.IdentityFunc(func() string { return "" }), testLogger())
	if err != nil {
		t.Fatalf("cloud client: %v", err)
	}
	t.Cleanup(remote.Close)

	stub := newStubImporter(wallet.Recipe{}, nil)
	coord, err := New(ctx, local, remote, stub, filepath.Join(t.TempDir(), "prefs.toml"), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return fixture{coord: coord, local: local, stub: stub}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStartMerge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("non-empty cloud list replaces local", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{
				"recipes": [{"id": "cloud-r", "name": "Cloud Curry"}],
				"collections": [],
				"shoppingList": []
			}`))
		}))
		defer srv.Close()

		local, err := localstore.Open(ctx, filepath.Join(t.TempDir(), "wallet.db"))
		if err != nil {
			t.Fatalf("open local store: %v", err)
		}
		defer local.Close()
		seed := wallet.Snapshot{
			Recipes:      []wallet.Recipe{{ID: "local-r", Name: "Local Stew"}},
			ShoppingList: []wallet.ShoppingListItem{{ID: "s1", Name: "rice"}},
		}
		if err := local.SaveSnapshot(ctx, seed); err != nil {
			t.Fatalf("seed: %v", err)
		}

		remote, err := cloud.NewClient(srv.URL, cloud.IdentityFunc(func() string { return "u1" }), testLogger())
		if err != nil {
			t.Fatalf("cloud client: %v", err)
		}
		defer remote.Close()

		coord, err := New(ctx, local, remote, newStubImporter(wallet.Recipe{}, nil), filepath.Join(t.TempDir(), "prefs.toml"), testLogger())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		coord.Start(ctx)

		waitFor(t, func() bool { return coord.Status().CloudLoaded })
		snap := coord.Snapshot()
		if len(snap.Recipes) != 1 || snap.Recipes[0].ID != "cloud-r" {
			t.Errorf("recipes = %+v, want cloud list to replace local", snap.Recipes)
		}
		// Empty cloud lists leave the local data in place.
		if len(snap.ShoppingList) != 1 || snap.ShoppingList[0].Name != "rice" {
			t.Errorf("shopping list = %+v, want local list kept", snap.ShoppingList)
		}

		// The merged result is persisted locally.
		persisted, err := local.LoadSnapshot(ctx)
		if err != nil {
			t.Fatalf("LoadSnapshot: %v", err)
		}
		if len(persisted.Recipes) != 1 || persisted.Recipes[0].ID != "cloud-r" {
			t.Errorf("persisted recipes = %+v, want merged snapshot on disk", persisted.Recipes)
		}
	})

	t.Run("cloud failure leaves local authoritative", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		local, err := localstore.Open(ctx, filepath.Join(t.TempDir(), "wallet.db"))
		if err != nil {
			t.Fatalf("open local store: %v", err)
		}
		defer local.Close()
		if err := local.SaveRecipes(ctx, []wallet.Recipe{{ID: "local-r", Name: "Local Stew"}}); err != nil {
			t.Fatalf("seed: %v", err)
		}

		remote, err := cloud.NewClient(srv.URL, cloud.IdentityFunc(func() string { return "u1" }), testLogger())
		if err != nil {
			t.Fatalf("cloud client: %v", err)
		}
		defer remote.Close()

		coord, err := New(ctx, local, remote, newStubImporter(wallet.Recipe{}, nil), filepath.Join(t.TempDir(), "prefs.toml"), testLogger())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		coord.Start(ctx)

		waitFor(t, func() bool { return coord.Status().CloudLoadErr != "" })
		snap := coord.Snapshot()
		if len(snap.Recipes) != 1 || snap.Recipes[0].ID != "local-r" {
			t.Errorf("recipes = %+v, want local data untouched", snap.Recipes)
		}
	})
}

func TestSyncNow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("merges synchronously", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"recipes": [{"id": "cloud-r", "name": "Cloud Curry"}]}`))
		}))
		defer srv.Close()

		local, err := localstore.Open(ctx, filepath.Join(t.TempDir(), "wallet.db"))
		if err != nil {
			t.Fatalf("open local store: %v", err)
		}
		defer local.Close()
		if err := local.SaveRecipes(ctx, []wallet.Recipe{{ID: "local-r", Name: "Local Stew"}}); err != nil {
			t.Fatalf("seed: %v", err)
		}

		remote, err := cloud.NewClient(srv.URL, cloud.IdentityFunc(func() string { return "u1" }), testLogger())
		if err != nil {
			t.Fatalf("cloud client: %v", err)
		}
		defer remote.Close()

		coord, err := New(ctx, local, remote, newStubImporter(wallet.Recipe{}, nil), filepath.Join(t.TempDir(), "prefs.toml"), testLogger())
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		// No polling: the merge must be visible the moment SyncNow returns.
		if err := coord.SyncNow(ctx); err != nil {
			t.Fatalf("SyncNow: %v", err)
		}
		if !coord.Status().CloudLoaded {
			t.Error("status should report the cloud merge immediately")
		}
		snap := coord.Snapshot()
		if len(snap.Recipes) != 1 || snap.Recipes[0].ID != "cloud-r" {
			t.Errorf("recipes = %+v, want cloud list merged in", snap.Recipes)
		}
	})

	t.Run("returns the load error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		local, err := localstore.Open(ctx, filepath.Join(t.TempDir(), "wallet.db"))
		if err != nil {
			t.Fatalf("open local store: %v", err)
		}
		defer local.Close()

		remote, err := cloud.NewClient(srv.URL, cloud.IdentityFunc(func() string { return "u1" }), testLogger())
		if err != nil {
			t.Fatalf("cloud client: %v", err)
		}
		defer remote.Close()

		coord, err := New(ctx, local, remote, newStubImporter(wallet.Recipe{}, nil), filepath.Join(t.TempDir(), "prefs.toml"), testLogger())
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		if err := coord.SyncNow(ctx); err == nil {
			t.Fatal("SyncNow should surface the cloud load failure")
		}
		if coord.Status().CloudLoadErr == "" {
			t.Error("status should record the load error")
		}
	})
}

func TestDeleteRecipeStripsMembership(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, wallet.Snapshot{
		Recipes: []wallet.Recipe{{ID: "r1", Name: "Soup"}, {ID: "r2", Name: "Stew"}},
		Collections: []wallet.Collection{
			{ID: "c1", Name: "Dinner", RecipeIDs: []string{"r1", "r2"}},
			{ID: "c2", Name: wallet.MealPrepsName, RecipeIDs: []string{"r1"}},
		},
	})

	if !f.coord.DeleteRecipe(ctx, "r1") {
		t.Fatal("DeleteRecipe returned false for existing recipe")
	}

	snap := f.coord.Snapshot()
	if len(snap.Recipes) != 1 || snap.Recipes[0].ID != "r2" {
		t.Errorf("recipes = %+v, want only r2", snap.Recipes)
	}
	for _, col := range snap.Collections {
		if col.Contains("r1") {
			t.Errorf("collection %q still references deleted recipe", col.Name)
		}
	}

	if f.coord.DeleteRecipe(ctx, "r1") {
		t.Error("deleting an absent recipe should return false")
	}
}

func TestFilteredRecipes(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, wallet.Snapshot{
		Recipes: []wallet.Recipe{
			{ID: "old", Name: "Old Bread", CreatedAt: base},
			{ID: "new", Name: "New Noodles", CreatedAt: base.Add(time.Hour)},
		},
	})

	got := f.coord.FilteredRecipes()
	if len(got) != 2 || got[0].ID != "new" || got[1].ID != "old" {
		t.Errorf("unfiltered view = %+v, want newest first", got)
	}

	f.coord.SetSearchText("noodles")
	got = f.coord.FilteredRecipes()
	if len(got) != 1 || got[0].ID != "new" {
		t.Errorf("filtered view = %+v, want the noodle recipe only", got)
	}

	f.coord.SetSearchText("")
	if got = f.coord.FilteredRecipes(); len(got) != 2 {
		t.Errorf("clearing the query should restore the full view, got %+v", got)
	}
}

func TestMealPrepsLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Seeding recipes without the collection triggers the startup repair.
	f := newFixture(t, wallet.Snapshot{
		Recipes: []wallet.Recipe{{ID: "r1", Name: "Soup"}},
	})

	snap := f.coord.Snapshot()
	var mealPreps *wallet.Collection
	for i := range snap.Collections {
		if snap.Collections[i].Name == wallet.MealPrepsName {
			mealPreps = &snap.Collections[i]
		}
	}
	if mealPreps == nil {
		t.Fatalf("collections = %+v, want Meal Preps seeded", snap.Collections)
	}

	if f.coord.DeleteCollection(ctx, mealPreps.ID) {
		t.Error("the Meal Preps collection must not be deletable")
	}

	// Deleting its only recipe empties the collection but keeps it.
	if !f.coord.ToggleRecipeInCollection(ctx, mealPreps.ID, "r1") {
		t.Fatal("toggle into Meal Preps failed")
	}
	if !f.coord.DeleteRecipe(ctx, "r1") {
		t.Fatal("DeleteRecipe failed")
	}
	snap = f.coord.Snapshot()
	found := false
	for _, col := range snap.Collections {
		if col.Name == wallet.MealPrepsName {
			found = true
			if len(col.RecipeIDs) != 0 {
				t.Errorf("Meal Preps membership = %v, want empty", col.RecipeIDs)
			}
		}
	}
	if !found {
		t.Error("Meal Preps should survive deleting its only recipe")
	}
}

func TestLegacyFavoritesRemoved(t *testing.T) {
	t.Parallel()
	f := newFixture(t, wallet.Snapshot{
		Recipes: []wallet.Recipe{{ID: "r1", Name: "Soup"}},
		Collections: []wallet.Collection{
			{ID: "c1", Name: wallet.LegacyFavoritesName, RecipeIDs: []string{"r1"}},
		},
	})

	for _, col := range f.coord.Snapshot().Collections {
		if col.Name == wallet.LegacyFavoritesName {
			t.Errorf("legacy %q collection survived startup repair", col.Name)
		}
	}
}

func TestImportInsertsAtFront(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, wallet.Snapshot{
		Recipes: []wallet.Recipe{{ID: "existing", Name: "Old Favorite", CreatedAt: time.Now().Add(-time.Hour)}},
	})
	f.stub.recipe = wallet.Recipe{ID: "imported", Name: "Pasta al Limone", CreatedAt: time.Now()}

	if f.coord.FirstImportDone() {
		t.Fatal("first-import flag should start unset")
	}
	if err := f.coord.StartImport(ctx, "https://example.com/recipe", "Weeknight Pasta"); err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	close(f.stub.release)
	waitFor(t, func() bool { return f.coord.ImportState() == importer.StateIdle })

	snap := f.coord.Snapshot()
	if len(snap.Recipes) != 2 {
		t.Fatalf("recipes = %+v, want imported recipe added", snap.Recipes)
	}
	if snap.Recipes[0].Name != "Weeknight Pasta" {
		t.Errorf("recipes[0].Name = %q, want custom name at the front", snap.Recipes[0].Name)
	}
	if !f.coord.FirstImportDone() {
		t.Error("first-import flag should be set after the first success")
	}
	if f.coord.ImportError() != "" {
		t.Errorf("ImportError = %q, want empty", f.coord.ImportError())
	}

	// The imported recipe is persisted locally.
	persisted, err := f.local.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(persisted.Recipes) != 2 || persisted.Recipes[0].Name != "Weeknight Pasta" {
		t.Errorf("persisted recipes = %+v, want import on disk", persisted.Recipes)
	}
}

func TestImportFailureLeavesListUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, wallet.Snapshot{
		Recipes: []wallet.Recipe{{ID: "r1", Name: "Soup"}},
	})
	f.stub.err = &importer.ServerError{Message: "no recipe on page"}

	if err := f.coord.StartImport(ctx, "https://example.com/empty", ""); err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	close(f.stub.release)
	waitFor(t, func() bool { return f.coord.ImportState() == importer.StateIdle })

	if got := f.coord.ImportError(); got != "no recipe on page" {
		t.Errorf("ImportError = %q, want server message verbatim", got)
	}
	if snap := f.coord.Snapshot(); len(snap.Recipes) != 1 {
		t.Errorf("recipes = %+v, want unchanged after failure", snap.Recipes)
	}
	if f.coord.FirstImportDone() {
		t.Error("a failed import must not set the first-import flag")
	}
}

func TestShoppingListMutations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, wallet.Snapshot{
		Recipes: []wallet.Recipe{{
			ID:   "r1",
			Name: "Shakshuka",
			Ingredients: []wallet.Ingredient{
				{Name: "eggs", Category: wallet.CategoryProtein},
				{Name: "tomatoes", Category: wallet.CategoryProduce},
			},
		}},
	})

	item := f.coord.AddShoppingItem(ctx, "  bread  ", "weird")
	if item.Name != "bread" {
		t.Errorf("item name = %q, want trimmed", item.Name)
	}
	if item.Category != wallet.CategoryOther {
		t.Errorf("category = %q, want unknown input normalized to other", item.Category)
	}

	if got := f.coord.AddRecipeToShoppingList(ctx, "r1"); got != 2 {
		t.Fatalf("AddRecipeToShoppingList = %d, want 2", got)
	}
	snap := f.coord.Snapshot()
	if len(snap.ShoppingList) != 3 {
		t.Fatalf("shopping list = %+v, want recipe items prepended", snap.ShoppingList)
	}
	if snap.ShoppingList[0].FromRecipe != "Shakshuka" {
		t.Errorf("FromRecipe = %q, want source recipe recorded", snap.ShoppingList[0].FromRecipe)
	}

	if !f.coord.RemoveShoppingItem(ctx, item.ID) {
		t.Error("RemoveShoppingItem returned false for existing item")
	}
	f.coord.ClearShoppingList(ctx)
	if snap := f.coord.Snapshot(); len(snap.ShoppingList) != 0 {
		t.Errorf("shopping list = %+v, want cleared", snap.ShoppingList)
	}
}

func TestRenameRecipe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, wallet.Snapshot{
		Recipes: []wallet.Recipe{{ID: "r1", Name: "Soup"}},
	})

	if f.coord.RenameRecipe(ctx, "r1", "   ") {
		t.Error("blank name must be rejected")
	}
	if !f.coord.RenameRecipe(ctx, "r1", "  Miso Soup  ") {
		t.Fatal("RenameRecipe returned false")
	}
	if got := f.coord.Snapshot().Recipes[0].Name; got != "Miso Soup" {
		t.Errorf("name = %q, want trimmed rename applied", got)
	}
	if f.coord.RenameRecipe(ctx, "missing", "x") {
		t.Error("renaming an absent recipe should return false")
	}
}

func TestCreateAndToggleCollection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, wallet.Snapshot{
		Recipes: []wallet.Recipe{{ID: "r1", Name: "Soup"}},
	})

	id, ok := f.coord.CreateCollection(ctx, "Dinner")
	if !ok {
		t.Fatal("CreateCollection failed")
	}
	if _, ok := f.coord.CreateCollection(ctx, "   "); ok {
		t.Error("blank collection name must be rejected")
	}

	if !f.coord.ToggleRecipeInCollection(ctx, id, "r1") {
		t.Fatal("toggle on failed")
	}
	if !f.coord.ToggleRecipeInCollection(ctx, id, "r1") {
		t.Fatal("toggle off failed")
	}
	for _, col := range f.coord.Snapshot().Collections {
		if col.ID == id && col.Contains("r1") {
			t.Error("double toggle should restore the original membership")
		}
	}

	if !f.coord.DeleteCollection(ctx, id) {
		t.Error("deleting an unprotected collection should succeed")
	}
}
