package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var shoppingCmd = &cobra.Command{
	Use:   "shopping",
	Short: "Manage the shopping list",
}

var shoppingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List shopping items, most recent first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		items := sess.coord.Snapshot().ShoppingList
		if len(items) == 0 {
			cmd.Println("shopping list is empty")
			return nil
		}
		for _, item := range items {
			line := fmt.Sprintf("%s  %s", item.ID, item.Name)
			if item.Category != "" {
				line += "  [" + item.Category + "]"
			}
			if item.FromRecipe != "" {
				line += "  (from " + item.FromRecipe + ")"
			}
			cmd.Println(line)
		}
		return nil
	},
}

var shoppingAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add one item to the shopping list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		category, _ := cmd.Flags().GetString("category")
		item := sess.coord.AddShoppingItem(cmd.Context(), args[0], category)
		cmd.Println(item.ID)
		return nil
	},
}

var shoppingAddRecipeCmd = &cobra.Command{
	Use:   "add-recipe <recipe-id>",
	Short: "Add all ingredients of a recipe to the shopping list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		n := sess.coord.AddRecipeToShoppingList(cmd.Context(), args[0])
		if n == 0 {
			return fmt.Errorf("recipe %s not found or has no ingredients", args[0])
		}
		cmd.Printf("added %d items\n", n)
		return nil
	},
}

var shoppingRemoveCmd = &cobra.Command{
	Use:   "remove <item-id>",
	Short: "Remove one item from the shopping list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		if !sess.coord.RemoveShoppingItem(cmd.Context(), args[0]) {
			return fmt.Errorf("item %s not found", args[0])
		}
		cmd.Println("removed")
		return nil
	},
}

var shoppingClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every item from the shopping list",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		sess.coord.ClearShoppingList(cmd.Context())
		cmd.Println("cleared")
		return nil
	},
}

func init() {
	shoppingAddCmd.Flags().String("category", "", "item category (pantry, produce, protein, dairy, other)")
	shoppingCmd.AddCommand(shoppingListCmd, shoppingAddCmd, shoppingAddRecipeCmd, shoppingRemoveCmd, shoppingClearCmd)
	rootCmd.AddCommand(shoppingCmd)
}
