package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Manage recipe collections",
}

var collectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections and their sizes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		cols := sess.coord.Snapshot().Collections
		if len(cols) == 0 {
			cmd.Println("no collections")
			return nil
		}
		for _, c := range cols {
			marker := ""
			if c.IsProtected() {
				marker = "  (protected)"
			}
			cmd.Printf("%s  %s  %d recipes%s\n", c.ID, c.Name, len(c.RecipeIDs), marker)
		}
		return nil
	},
}

var collectionsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		id, ok := sess.coord.CreateCollection(cmd.Context(), args[0])
		if !ok {
			return fmt.Errorf("collection name must not be empty")
		}
		cmd.Println(id)
		return nil
	},
}

var collectionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a collection (the Meal Preps collection cannot be deleted)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		if !sess.coord.DeleteCollection(cmd.Context(), args[0]) {
			return fmt.Errorf("collection %s not found or protected", args[0])
		}
		cmd.Println("deleted")
		return nil
	},
}

var collectionsToggleCmd = &cobra.Command{
	Use:   "toggle <collection-id> <recipe-id>",
	Short: "Toggle a recipe's membership in a collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		if !sess.coord.ToggleRecipeInCollection(cmd.Context(), args[0], args[1]) {
			return fmt.Errorf("collection %s not found", args[0])
		}
		cmd.Println("toggled")
		return nil
	},
}

func init() {
	collectionsCmd.AddCommand(collectionsListCmd, collectionsCreateCmd, collectionsDeleteCmd, collectionsToggleCmd)
	rootCmd.AddCommand(collectionsCmd)
}
