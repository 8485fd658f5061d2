package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jmcleod/authlab/config"
	"github.com/jmcleod/authlab/labstore"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Lab database tools",
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Recreate and seed the lab database",
	Long: `Drops every product and note in DB_PATH and reseeds the fixed lab data.
Guestbook messages and sessions live in STATE_DB and are not touched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, err := labstore.Open(ctx, cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Reset(ctx); err != nil {
			return fmt.Errorf("seeding %s: %w", cfg.DBPath, err)
		}
		sum, err := store.Summary(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Initialized %s\n", cfg.DBPath)
		fmt.Fprintf(out, "  products: %d\n", sum.Products)
		owners := make([]string, 0, len(sum.NotesByOwner))
		for owner := range sum.NotesByOwner {
			owners = append(owners, owner)
		}
		sort.Strings(owners)
		for _, owner := range owners {
			fmt.Fprintf(out, "  notes[%s]: %d\n", owner, sum.NotesByOwner[owner])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbInitCmd)
}
