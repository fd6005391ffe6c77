package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func newClassifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classify CLAUSE...",
		Short: "Show the categories assigned to purpose clauses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := a.loadComponents()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), comp.Classifier.Classify(args))
		},
	}
}

type categoryOutput struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Keywords string `json:"keywords,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

func newCategoriesCmd(a *app) *cobra.Command {
	var syncStore bool

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the category table, optionally syncing it into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := a.loadComponents()
			if err != nil {
				return err
			}

			if syncStore {
				ctx := cmd.Context()
				st, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer st.Close()
				if err := st.SyncCategories(ctx, comp.Classifier.Categories()); err != nil {
					return err
				}
			}

			out := make([]categoryOutput, 0, len(comp.Categories.Categories))
			for _, c := range comp.Categories.Categories {
				out = append(out, categoryOutput{
					ID:       c.ID,
					Name:     c.Name,
					Keywords: strings.Join(c.Keywords, ", "),
					Fallback: c.ID == comp.Categories.Fallback,
				})
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().BoolVar(&syncStore, "sync", false, "write the categories into the configured store")
	return cmd
}
