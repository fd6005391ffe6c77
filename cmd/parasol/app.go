package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/norbert12x/parasol/internal/logging"
	"github.com/norbert12x/parasol/internal/metrics"
	"github.com/norbert12x/parasol/pkg/parasol"
	"github.com/norbert12x/parasol/pkg/parasol/config"
	"github.com/norbert12x/parasol/pkg/parasol/geocode"
	"github.com/norbert12x/parasol/pkg/parasol/store"
	"github.com/norbert12x/parasol/pkg/parasol/store/postgres"
	"github.com/norbert12x/parasol/pkg/parasol/store/sqlite"
)

// app carries process-wide settings and collaborators shared by commands.
type app struct {
	envFiles []string
	logLevel string

	settings   *config.Settings
	logger     *zap.Logger
	httpClient *http.Client
}

func (a *app) init() error {
	settings, err := config.LoadSettings(a.envFiles...)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		settings.LogLevel = a.logLevel
	}

	logger, err := logging.New(settings.LogLevel)
	if err != nil {
		return err
	}

	a.settings = settings
	a.logger = logger
	a.httpClient = &http.Client{Timeout: settings.HTTPTimeout}
	return nil
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	switch a.settings.DBDriver {
	case "postgres":
		return postgres.Open(ctx, a.settings.DBDSN)
	default:
		return sqlite.OpenSQLite(ctx, a.settings.DBDSN)
	}
}

func (a *app) loadComponents() (*config.Components, error) {
	loader := config.Loader{CategoriesPath: a.settings.CategoriesPath}
	return loader.Load()
}

// newImporter wires classifier, geocoder and store and syncs the category
// reference set. m may be nil.
func (a *app) newImporter(ctx context.Context, st store.Store, comp *config.Components, m *metrics.Metrics, geocoding bool) (*parasol.Importer, error) {
	opts := parasol.Options{
		Store:      st,
		Classifier: comp.Classifier,
		Logger:     a.logger,
	}
	if geocoding && a.settings.GeocoderURL != "" {
		client := &geocode.Client{
			BaseURL:    a.settings.GeocoderURL,
			UserAgent:  a.settings.GeocoderUserAgent,
			Email:      a.settings.GeocoderEmail,
			HTTPClient: a.httpClient,
			Logger:     a.logger,
		}
		throttleOpts := geocode.ThrottleOptions{Delay: a.settings.GeocodeDelay, Logger: a.logger}
		if m != nil {
			throttleOpts.Recorder = m
		}
		opts.Resolver = geocode.NewThrottled(client, throttleOpts)
	}

	im := parasol.New(opts)
	if err := im.SyncCategories(ctx); err != nil {
		return nil, fmt.Errorf("prepare store: %w", err)
	}
	return im, nil
}
