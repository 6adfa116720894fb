package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rishavrajjain/recipewallet/internal/importer"
	"github.com/rishavrajjain/recipewallet/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <url>",
	Short: "Import a recipe from a link",
	Long: `Imports a recipe by sending the link to the extraction service and storing
the result at the front of the wallet.

With --watch, monitors a directory for dropped link files (.url, .link,
.txt) and imports each one as it appears.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().String("name", "", "override the extracted recipe title")
	importCmd.Flags().String("watch", "", "watch a directory for dropped link files")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.close()

	watchDir, _ := cmd.Flags().GetString("watch")
	if watchDir != "" {
		return watchAndImport(ctx, cmd, sess, watchDir)
	}

	if len(args) != 1 {
		return fmt.Errorf("a link is required unless --watch is set")
	}
	customName, _ := cmd.Flags().GetString("name")
	return importOne(ctx, cmd, sess, args[0], customName)
}

// importOne runs a single import to completion, cancelling the underlying
// network call if the context is interrupted.
func importOne(ctx context.Context, cmd *cobra.Command, sess *session, link, customName string) error {
	if err := sess.coord.StartImport(ctx, link, customName); err != nil {
		return err
	}
	cmd.Printf("importing %s ...\n", link)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			sess.coord.CancelImport()
			cmd.Println("import cancelled")
			return nil
		case <-ticker.C:
			if sess.coord.ImportState() != importer.StateIdle {
				continue
			}
			if msg := sess.coord.ImportError(); msg != "" {
				return fmt.Errorf("import failed: %s", msg)
			}
			printNewestRecipe(cmd, sess.coord)
			return nil
		}
	}
}

func printNewestRecipe(cmd *cobra.Command, coord *store.Coordinator) {
	recipes := coord.FilteredRecipes()
	if len(recipes) == 0 {
		return
	}
	r := recipes[0]
	cmd.Printf("imported %q (%d ingredients, %d steps)\n", r.Name, len(r.Ingredients), len(r.Steps))
}

// watchAndImport consumes the link-drop watcher until interrupted. Drops
// that arrive while an import is in flight are rejected by the single-flight
// manager and reported, not queued.
func watchAndImport(ctx context.Context, cmd *cobra.Command, sess *session, dir string) error {
	w, err := importer.NewWatcher(dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	defer w.Stop()

	cmd.Printf("watching %s for link files (ctrl-c to stop)\n", dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case drop, ok := <-w.Drops:
			if !ok {
				return nil
			}
			if err := importOne(ctx, cmd, sess, drop.Link, ""); err != nil {
				cmd.PrintErrf("%s: %v\n", drop.File, err)
			}
		}
	}
}
