package parasol

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/norbert12x/parasol/pkg/parasol/classify"
	"github.com/norbert12x/parasol/pkg/parasol/internalerr"
	"github.com/norbert12x/parasol/pkg/parasol/store"
)

// Record is one organization as delivered by a source, before
// classification and geocoding. Purposes are never persisted.
type Record struct {
	KRS       string
	Name      string
	Addresses []store.Address
	Purposes  []string
}

// Validate reports whether the record can be imported.
func (r Record) Validate() error {
	if strings.TrimSpace(r.KRS) == "" {
		return fmt.Errorf("record: empty krs: %w", internalerr.ErrInvalidInput)
	}
	for _, p := range r.Purposes {
		if strings.TrimSpace(p) != "" {
			return nil
		}
	}
	return fmt.Errorf("record %s: %w", r.KRS, internalerr.ErrNoPurpose)
}

// Resolver turns an address into coordinates. Failures are reported as
// ok == false, never as errors.
type Resolver interface {
	Resolve(ctx context.Context, addr store.Address) (store.Coordinate, bool)
}

// Importer classifies, geocodes and persists records one at a time.
type Importer struct {
	store      store.Store
	classifier *classify.Classifier
	resolver   Resolver
	logger     *zap.Logger
}

// Options configures an Importer
type Options struct {
	Store      store.Store
	Classifier *classify.Classifier
	// Resolver may be nil, in which case no coordinates are produced.
	Resolver Resolver
	Logger   *zap.Logger
}

// New creates an Importer with the given dependencies
func New(opts Options) *Importer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		store:      opts.Store,
		classifier: opts.Classifier,
		resolver:   opts.Resolver,
		logger:     logger,
	}
}

// Result describes what was stored for one record.
type Result struct {
	KRS         string
	Categories  []store.Category
	Coordinates []store.Coordinate
}

// Import runs one record through classification, geocoding and the upsert.
// Invalid records are rejected before any I/O; persistence errors are
// returned wrapped and leave the previous state of the organization intact.
func (im *Importer) Import(ctx context.Context, r Record) (Result, error) {
	if err := r.Validate(); err != nil {
		return Result{}, err
	}

	cats := im.classifier.Classify(r.Purposes)

	var coords []store.Coordinate
	for _, addr := range r.Addresses {
		if addr.IsZero() || im.resolver == nil {
			continue
		}
		c, ok := im.resolver.Resolve(ctx, addr)
		if !ok {
			continue
		}
		c.KRS = r.KRS
		coords = append(coords, c)
	}

	org := store.Organization{
		KRS:         r.KRS,
		Name:        r.Name,
		Addresses:   r.Addresses,
		Coordinates: coords,
		Categories:  classify.IDs(cats),
	}
	if err := im.store.UpsertOrganization(ctx, org); err != nil {
		return Result{}, fmt.Errorf("import %s: %w", r.KRS, err)
	}

	im.logger.Debug("organization imported",
		zap.String("krs", r.KRS),
		zap.Ints("categories", org.Categories),
		zap.Int("coordinates", len(coords)))

	return Result{KRS: r.KRS, Categories: cats, Coordinates: coords}, nil
}

// Categories returns the classifier's reference set, which must be synced
// into the store before the first import.
func (im *Importer) Categories() []store.Category {
	return im.classifier.Categories()
}

// SyncCategories writes the classifier's reference set into the store.
func (im *Importer) SyncCategories(ctx context.Context) error {
	if err := im.store.SyncCategories(ctx, im.classifier.Categories()); err != nil {
		return fmt.Errorf("sync categories: %w", err)
	}
	return nil
}
