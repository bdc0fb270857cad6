package main

import (
	"fmt"

	"github.com/spf13/cobra"

	chunkrepo "github.com/kailas-cloud/syllabus/internal/repository/chunk"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the chunk search index",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the chunk index if it does not exist",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		repo := chunkrepo.New(rt.store, rt.keys, rt.cfg.Embedding.Dimensions)
		created, err := repo.EnsureIndex(cmd.Context())
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "created index %s (dim=%d)\n", rt.keys.ChunkIndex(), rt.cfg.Embedding.Dimensions)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "index %s already exists\n", rt.keys.ChunkIndex())
		}
		return nil
	},
}

var indexDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the chunk index, keeping chunk data",
	Long: `Drop the chunk index. Chunk hashes are kept, so "index create"
rebuilds the index from the stored chunks.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		repo := chunkrepo.New(rt.store, rt.keys, rt.cfg.Embedding.Dimensions)
		if err := repo.DropIndex(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "dropped index %s\n", rt.keys.ChunkIndex())
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexCreateCmd, indexDropCmd)
	rootCmd.AddCommand(indexCmd)
}
