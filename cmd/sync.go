package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Inspect and drive cloud synchronization",
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of local and cloud persistence",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		st := sess.coord.Status()
		snap := sess.coord.Snapshot()
		cmd.Printf("recipes: %d  collections: %d  shopping items: %d\n",
			len(snap.Recipes), len(snap.Collections), len(snap.ShoppingList))
		if st.CloudLoaded {
			cmd.Println("cloud: merged")
		} else if st.CloudLoadErr != "" {
			cmd.Printf("cloud: unreachable (%s)\n", st.CloudLoadErr)
		} else {
			cmd.Println("cloud: pending")
		}
		if !st.LastLocalSave.IsZero() {
			cmd.Printf("last local save: %s\n", st.LastLocalSave.Format(time.RFC3339))
		}
		if st.LastLocalError != "" {
			cmd.Printf("last local error: %s\n", st.LastLocalError)
		}
		return nil
	},
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Run a cloud load and save immediately",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		if err := sess.coord.SyncNow(cmd.Context()); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		snap := sess.coord.Snapshot()
		cmd.Printf("synced: %d recipes, %d collections, %d shopping items\n",
			len(snap.Recipes), len(snap.Collections), len(snap.ShoppingList))
		return nil
	},
}

var signoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Clear the cloud client's cached snapshot and profile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer sess.close()

		sess.coord.SignOut()
		cmd.Println("signed out; local wallet is untouched")
		return nil
	},
}

func init() {
	syncCmd.AddCommand(syncStatusCmd, syncNowCmd)
	rootCmd.AddCommand(syncCmd, signoutCmd)
}
