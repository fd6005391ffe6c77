package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/norbert12x/parasol/pkg/parasol/internalerr"
	"github.com/norbert12x/parasol/pkg/parasol/job"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		region    string
		feedFile  string
		noGeocode bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one import job in the foreground until the source is exhausted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

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
			src, err := a.openSource(feedFile)
			if err != nil {
				return err
			}

			jobs := job.New(job.Options{
				Source:   src,
				Importer: im,
				PageSize: a.settings.PageSize,
				Interval: a.settings.BatchInterval,
				Logger:   a.logger,
			})
			if err := jobs.Start(ctx, region); err != nil {
				return err
			}

			// Interrupts ask the job to stop; the item in flight completes.
			if err := jobs.Wait(ctx); err != nil {
				a.logger.Info("interrupted, stopping import job")
				if err := jobs.Stop(); err != nil && !errors.Is(err, internalerr.ErrNotRunning) {
					a.logger.Warn("stop import job", zap.Error(err))
				}
				if err := jobs.Wait(context.Background()); err != nil {
					return err
				}
			}

			status := jobs.Status()
			if err := writeJSON(cmd.OutOrStdout(), status); err != nil {
				return err
			}
			if status.LastError != "" {
				return errors.New(status.LastError)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "only import organizations from this region (wojewodztwo)")
	cmd.Flags().StringVar(&feedFile, "feed-file", "", "read items from a JSONL dump instead of PARASOL_FEED_URL")
	cmd.Flags().BoolVar(&noGeocode, "no-geocode", false, "skip geocoding")
	return cmd
}
