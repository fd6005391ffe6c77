package main

import (
	"github.com/spf13/cobra"

	"github.com/norbert12x/parasol/pkg/parasol/docimport"
	"github.com/norbert12x/parasol/pkg/parasol/geocode"
	"github.com/norbert12x/parasol/pkg/parasol/krs"
)

func newImportDocsCmd(a *app) *cobra.Command {
	var noGeocode bool

	cmd := &cobra.Command{
		Use:   "import-docs DIR",
		Short: "Import a directory of raw registry documents (*.json)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			src, err := docimport.NewDirSource(args[0])
			if err != nil {
				return err
			}

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			comp, err := a.loadComponents()
			if err != nil {
				return err
			}
			im, err := a.newImporter(ctx, st, comp, nil, !noGeocode)
			if err != nil {
				return err
			}

			runner := &docimport.Importer{Source: src, Importer: im, Logger: a.logger}
			res, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().BoolVar(&noGeocode, "no-geocode", false, "skip geocoding")
	return cmd
}

type extractOutput struct {
	KRS        string   `json:"krs"`
	Name       string   `json:"name"`
	Address    string   `json:"address,omitempty"`
	Purposes   []string `json:"purposes"`
	Categories []string `json:"categories"`
}

func newExtractCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract FILE...",
		Short: "Extract and classify raw registry documents without storing them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := a.loadComponents()
			if err != nil {
				return err
			}

			out := make([]extractOutput, 0, len(args))
			for _, path := range args {
				rec, err := krs.ExtractFile(path)
				if err != nil {
					return err
				}
				o := extractOutput{KRS: rec.KRS, Name: rec.Name, Purposes: rec.Purposes}
				if len(rec.Addresses) > 0 {
					o.Address = geocode.FormatAddress(rec.Addresses[0])
				}
				for _, c := range comp.Classifier.Classify(rec.Purposes) {
					o.Categories = append(o.Categories, c.Name)
				}
				out = append(out, o)
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}
