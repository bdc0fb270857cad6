package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/syllabus/internal/domain"
	"github.com/kailas-cloud/syllabus/internal/domain/topicpath"
	catalogrepo "github.com/kailas-cloud/syllabus/internal/repository/catalog"
)

var pathCmd = &cobra.Command{
	Use:   "path <topic-path>",
	Short: "Canonicalize a topic path and look it up in the catalog",
	Long: `Canonicalize a topic path and report each level of its lineage
with its catalog title.

Examples:
  syllabusctl path 9709.P1.Quadratics`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := topicpath.Canonicalize(args[0])
		if err != nil {
			var te *topicpath.Error
			if errors.As(err, &te) {
				return fmt.Errorf("%s: %w", te.Code, err)
			}
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "canonical: %s\n", p)
		if p.IsUnmapped() {
			fmt.Fprintln(out, "reserved path for unclassified content")
			return nil
		}

		rt, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		repo := catalogrepo.New(rt.store, rt.keys)
		missing := false
		for _, level := range p.Lineage() {
			node, err := repo.Get(cmd.Context(), level)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				missing = true
				fmt.Fprintf(out, "  %-40s (unknown)\n", level)
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "  %-40s %s\n", level, node.Title)
			}
		}
		if missing {
			return fmt.Errorf("topic path %s is not in the catalog", p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pathCmd)
}
