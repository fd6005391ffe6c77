package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/norbert12x/parasol/internal/httpapi"
	"github.com/norbert12x/parasol/internal/metrics"
	"github.com/norbert12x/parasol/pkg/parasol/internalerr"
	"github.com/norbert12x/parasol/pkg/parasol/job"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		feedFile  string
		noGeocode bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the import job control API",
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

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m := metrics.New(reg)

			im, err := a.newImporter(ctx, st, comp, m, !noGeocode)
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
				Recorder: m,
			})

			srv := &http.Server{
				Addr:              a.settings.ListenAddr,
				Handler:           httpapi.NewRouter(httpapi.New(jobs, st, a.logger), reg),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info("shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()

				if err := jobs.Stop(); err != nil && !errors.Is(err, internalerr.ErrNotRunning) {
					a.logger.Warn("stop import job", zap.Error(err))
				}
				if err := jobs.Wait(shutdownCtx); err != nil {
					a.logger.Warn("import job did not finish before shutdown", zap.Error(err))
				}
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&feedFile, "feed-file", "", "serve items from a JSONL dump instead of PARASOL_FEED_URL")
	cmd.Flags().BoolVar(&noGeocode, "no-geocode", false, "skip geocoding")
	return cmd
}
