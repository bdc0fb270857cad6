package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/syllabus/internal/domain"
	chunkrepo "github.com/kailas-cloud/syllabus/internal/repository/chunk"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <chunk-id>...",
	Short: "Delete chunks by id",
	Long: `Delete chunks from the database. The index drops them on its own;
topic nodes are left in the catalog.

Examples:
  syllabusctl delete q-001 q-002`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	if err := checkChunkIDs(args); err != nil {
		return err
	}

	rt, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()
	if rt.store.ReadOnly() {
		return fmt.Errorf("delete needs service credentials: %w", domain.ErrReadOnly)
	}

	repo := chunkrepo.New(rt.store, rt.keys, rt.cfg.Embedding.Dimensions)
	var errs []error
	for _, id := range args {
		if err := repo.Delete(cmd.Context(), id); err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
	}
	return errors.Join(errs...)
}

func checkChunkIDs(ids []string) error {
	for _, id := range ids {
		if id == "" || strings.ContainsAny(id, " \t\n") {
			return fmt.Errorf("invalid chunk id %q", id)
		}
	}
	return nil
}
