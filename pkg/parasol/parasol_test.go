package parasol

import (
	"context"
	"errors"
	"testing"

	"github.com/norbert12x/parasol/pkg/parasol/classify"
	"github.com/norbert12x/parasol/pkg/parasol/internalerr"
	"github.com/norbert12x/parasol/pkg/parasol/store"
	"github.com/norbert12x/parasol/pkg/parasol/store/memstore"
)

type fakeResolver struct {
	coords map[string]store.Coordinate // keyed by locality
	calls  int
}

func (f *fakeResolver) Resolve(ctx context.Context, addr store.Address) (store.Coordinate, bool) {
	f.calls++
	c, ok := f.coords[addr.Locality]
	return c, ok
}

func newTestImporter(t *testing.T, r Resolver) (*Importer, *memstore.Store) {
	t.Helper()
	c, err := classify.New([]classify.Category{
		{ID: 1, Name: "Edukacja", Keywords: []string{"edukac"}},
		{ID: 2, Name: "Ekologia", Keywords: []string{"ekolog"}},
		{ID: 99, Name: "Inne"},
	}, 99)
	if err != nil {
		t.Fatalf("classify.New: %v", err)
	}
	st := memstore.New()
	im := New(Options{Store: st, Classifier: c, Resolver: r})
	if err := im.SyncCategories(context.Background()); err != nil {
		t.Fatalf("SyncCategories: %v", err)
	}
	return im, st
}

func fundacjaX() Record {
	return Record{
		KRS:       "0000123456",
		Name:      "Fundacja X",
		Addresses: []store.Address{{Street: "Długa", Building: "1", Locality: "Gdańsk", Region: "pomorskie"}},
		Purposes:  []string{"Prowadzimy działalność w zakresie edukacja oraz ekologia"},
	}
}

func TestImportClassifiesGeocodesAndStores(t *testing.T) {
	r := &fakeResolver{coords: map[string]store.Coordinate{"Gdańsk": {Lat: 54.35, Lon: 18.65}}}
	im, st := newTestImporter(t, r)
	ctx := context.Background()

	res, err := im.Import(ctx, fundacjaX())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if ids := classify.IDs(res.Categories); len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("unexpected categories %v", ids)
	}
	if len(res.Coordinates) != 1 || res.Coordinates[0].KRS != "0000123456" {
		t.Errorf("unexpected coordinates %v", res.Coordinates)
	}

	org, found, err := st.GetOrganization(ctx, "0000123456")
	if err != nil || !found {
		t.Fatalf("GetOrganization: found=%v err=%v", found, err)
	}
	if org.Name != "Fundacja X" || len(org.Addresses) != 1 || len(org.Coordinates) != 1 {
		t.Errorf("unexpected stored organization %+v", org)
	}
}

func TestImportIsIdempotent(t *testing.T) {
	r := &fakeResolver{coords: map[string]store.Coordinate{"Gdańsk": {Lat: 54.35, Lon: 18.65}}}
	im, st := newTestImporter(t, r)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := im.Import(ctx, fundacjaX()); err != nil {
			t.Fatalf("Import #%d: %v", i, err)
		}
	}
	stats, _ := st.Stats(ctx)
	want := store.Stats{Organizations: 1, Addresses: 1, Coordinates: 1, Assignments: 2}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestImportGeocodeFailureStillStores(t *testing.T) {
	im, st := newTestImporter(t, &fakeResolver{})
	ctx := context.Background()

	res, err := im.Import(ctx, fundacjaX())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(res.Coordinates) != 0 {
		t.Errorf("expected no coordinates, got %v", res.Coordinates)
	}
	org, found, _ := st.GetOrganization(ctx, "0000123456")
	if !found || len(org.Addresses) != 1 || len(org.Coordinates) != 0 {
		t.Errorf("unexpected stored organization %+v", org)
	}
}

func TestImportReplacesCoordinatesWhenGeocodeFailsLater(t *testing.T) {
	r := &fakeResolver{coords: map[string]store.Coordinate{"Gdańsk": {Lat: 54.35, Lon: 18.65}}}
	im, st := newTestImporter(t, r)
	ctx := context.Background()

	if _, err := im.Import(ctx, fundacjaX()); err != nil {
		t.Fatalf("Import: %v", err)
	}
	delete(r.coords, "Gdańsk")
	if _, err := im.Import(ctx, fundacjaX()); err != nil {
		t.Fatalf("re-Import: %v", err)
	}
	org, _, _ := st.GetOrganization(ctx, "0000123456")
	if len(org.Coordinates) != 0 {
		t.Errorf("expected coordinates cleared on re-import, got %v", org.Coordinates)
	}
}

func TestImportFallbackCategory(t *testing.T) {
	im, _ := newTestImporter(t, nil)
	rec := fundacjaX()
	rec.Purposes = []string{"działalność charytatywna"}

	res, err := im.Import(context.Background(), rec)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(res.Categories) != 1 || res.Categories[0].ID != 99 {
		t.Errorf("expected fallback, got %v", res.Categories)
	}
}

func TestImportRejectsInvalidRecords(t *testing.T) {
	r := &fakeResolver{}
	im, st := newTestImporter(t, r)
	ctx := context.Background()

	rec := fundacjaX()
	rec.Purposes = []string{"  "}
	if _, err := im.Import(ctx, rec); !errors.Is(err, internalerr.ErrNoPurpose) {
		t.Errorf("expected ErrNoPurpose, got %v", err)
	}

	rec = fundacjaX()
	rec.KRS = ""
	if _, err := im.Import(ctx, rec); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	if r.calls != 0 {
		t.Errorf("geocoder called %d times for invalid records", r.calls)
	}
	if stats, _ := st.Stats(ctx); stats.Organizations != 0 {
		t.Errorf("invalid records persisted: %+v", stats)
	}
}

func TestImportWrapsPersistenceErrors(t *testing.T) {
	im, st := newTestImporter(t, nil)
	boom := errors.New("disk full")
	st.FailUpsertWhen(func(store.Organization) error { return boom })

	_, err := im.Import(context.Background(), fundacjaX())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped persistence error, got %v", err)
	}
}
