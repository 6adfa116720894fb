package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rishavrajjain/recipewallet/internal/wallet"
)

var recipesCmd = &cobra.Command{
	Use:   "recipes",
	Short: "Browse and manage stored recipes",
}

var recipesListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List recipes, newest first, optionally filtered",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		if len(args) == 1 {
			sess.coord.SetSearchText(args[0])
		}
		recipes := sess.coord.FilteredRecipes()
		if len(recipes) == 0 {
			cmd.Println("no recipes")
			return nil
		}
		for _, r := range recipes {
			cmd.Println(formatRecipeLine(r))
		}
		return nil
	},
}

var recipesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one recipe in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		for _, r := range sess.coord.Snapshot().Recipes {
			if r.ID != args[0] {
				continue
			}
			printRecipe(cmd, r)
			return nil
		}
		return fmt.Errorf("recipe %s not found", args[0])
	},
}

var recipesRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a recipe",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		if !sess.coord.RenameRecipe(cmd.Context(), args[0], args[1]) {
			return fmt.Errorf("recipe %s not found", args[0])
		}
		cmd.Println("renamed")
		return nil
	},
}

var recipesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a recipe and remove it from every collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		if !sess.coord.DeleteRecipe(cmd.Context(), args[0]) {
			return fmt.Errorf("recipe %s not found", args[0])
		}
		cmd.Println("deleted")
		return nil
	},
}

func init() {
	recipesCmd.AddCommand(recipesListCmd, recipesShowCmd, recipesRenameCmd, recipesDeleteCmd)
	rootCmd.AddCommand(recipesCmd)
}

func formatRecipeLine(r wallet.Recipe) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s", r.ID, r.Name)
	if r.CookTime > 0 {
		fmt.Fprintf(&b, "  (%dm)", r.PrepTime+r.CookTime)
	}
	fmt.Fprintf(&b, "  %s", r.CreatedAt.Format("2006-01-02"))
	return b.String()
}

func printRecipe(cmd *cobra.Command, r wallet.Recipe) {
	cmd.Printf("%s\n", r.Name)
	if r.Description != "" {
		cmd.Printf("%s\n", r.Description)
	}
	if r.Provenance != nil && r.Provenance.OriginalURL != "" {
		cmd.Printf("source: %s\n", r.Provenance.OriginalURL)
	}
	cmd.Println("ingredients:")
	for _, ing := range r.Ingredients {
		cmd.Printf("  - %s (%s)\n", ing.Name, ing.Category)
	}
	cmd.Println("steps:")
	for i, step := range r.Steps {
		cmd.Printf("  %d. %s\n", i+1, step)
	}
}
