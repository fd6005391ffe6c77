package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/norbert12x/parasol/pkg/parasol/internalerr"
	"github.com/norbert12x/parasol/pkg/parasol/store"
)

var testCategories = []store.Category{
	{ID: 1, Name: "Edukacja"},
	{ID: 2, Name: "Ekologia"},
	{ID: 3, Name: "Kultura"},
	{ID: 99, Name: "Inne"},
}

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	st, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.SyncCategories(ctx, testCategories); err != nil {
		t.Fatalf("SyncCategories: %v", err)
	}
	return st
}

func sampleOrg() store.Organization {
	return store.Organization{
		KRS:  "0000123456",
		Name: "Fundacja X",
		Addresses: []store.Address{{
			Street:     "Floriańska",
			Building:   "3",
			Unit:       "5",
			Locality:   "Kraków",
			PostalCode: "31-019",
			PostOffice: "Kraków",
			District:   "Kraków",
			County:     "Kraków",
			Region:     "małopolskie",
			Country:    "Polska",
		}},
		Coordinates: []store.Coordinate{{Lat: 50.0637, Lon: 19.9398}},
		Categories:  []int{1, 2},
	}
}

// TestSQLiteIntegrationBasic tests basic upsert and read back
func TestSQLiteIntegrationBasic(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	org := sampleOrg()
	if err := st.UpsertOrganization(ctx, org); err != nil {
		t.Fatalf("UpsertOrganization: %v", err)
	}

	got, found, err := st.GetOrganization(ctx, org.KRS)
	if err != nil {
		t.Fatalf("GetOrganization: %v", err)
	}
	if !found {
		t.Fatal("Organization should be found")
	}
	if got.Name != org.Name {
		t.Errorf("Name mismatch: got %q, want %q", got.Name, org.Name)
	}
	if len(got.Addresses) != 1 || got.Addresses[0].Street != "Floriańska" || got.Addresses[0].KRS != org.KRS {
		t.Errorf("Unexpected addresses: %+v", got.Addresses)
	}
	if len(got.Coordinates) != 1 || got.Coordinates[0].KRS != org.KRS {
		t.Errorf("Unexpected coordinates: %+v", got.Coordinates)
	}
	if !reflect.DeepEqual(got.Categories, []int{1, 2}) {
		t.Errorf("Categories = %v, want [1 2]", got.Categories)
	}
}

// TestSQLiteIntegrationIdempotent tests that importing the same record twice does not duplicate rows
func TestSQLiteIntegrationIdempotent(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	for i := 0; i < 2; i++ {
		if err := st.UpsertOrganization(ctx, sampleOrg()); err != nil {
			t.Fatalf("UpsertOrganization #%d: %v", i+1, err)
		}
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := store.Stats{Organizations: 1, Addresses: 1, Coordinates: 1, Assignments: 2}
	if stats != want {
		t.Errorf("Stats = %+v, want %+v", stats, want)
	}
}

// TestSQLiteIntegrationReplace tests that re-import supersedes stale children
func TestSQLiteIntegrationReplace(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	if err := st.UpsertOrganization(ctx, sampleOrg()); err != nil {
		t.Fatalf("First UpsertOrganization: %v", err)
	}

	updated := store.Organization{
		KRS:        "0000123456",
		Name:       "Fundacja X (nowa nazwa)",
		Categories: []int{3},
	}
	if err := st.UpsertOrganization(ctx, updated); err != nil {
		t.Fatalf("Second UpsertOrganization: %v", err)
	}

	got, found, err := st.GetOrganization(ctx, updated.KRS)
	if err != nil || !found {
		t.Fatalf("GetOrganization: found=%v err=%v", found, err)
	}
	if got.Name != updated.Name {
		t.Errorf("Name should be updated, got %q", got.Name)
	}
	if len(got.Addresses) != 0 {
		t.Errorf("Addresses should be cleared, got %+v", got.Addresses)
	}
	if len(got.Coordinates) != 0 {
		t.Errorf("Coordinates should be cleared, got %+v", got.Coordinates)
	}
	if !reflect.DeepEqual(got.Categories, []int{3}) {
		t.Errorf("Categories = %v, want [3]", got.Categories)
	}
}

// TestSQLiteIntegrationRollback tests that a failing child insert leaves the prior state intact
func TestSQLiteIntegrationRollback(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	if err := st.UpsertOrganization(ctx, sampleOrg()); err != nil {
		t.Fatalf("UpsertOrganization: %v", err)
	}

	broken := sampleOrg()
	broken.Name = "Should not stick"
	broken.Addresses = nil
	broken.Categories = []int{1, 12345} // violates the categories foreign key
	if err := st.UpsertOrganization(ctx, broken); err == nil {
		t.Fatal("expected foreign key failure")
	}

	got, _, err := st.GetOrganization(ctx, broken.KRS)
	if err != nil {
		t.Fatalf("GetOrganization: %v", err)
	}
	if got.Name != "Fundacja X" {
		t.Errorf("Name changed despite rollback: %q", got.Name)
	}
	if len(got.Addresses) != 1 {
		t.Errorf("Addresses changed despite rollback: %+v", got.Addresses)
	}
	if !reflect.DeepEqual(got.Categories, []int{1, 2}) {
		t.Errorf("Categories changed despite rollback: %v", got.Categories)
	}
}

func TestSQLiteIntegrationValidation(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	tests := []struct {
		name string
		org  store.Organization
	}{
		{"empty krs", store.Organization{Name: "x"}},
		{"latitude out of range", store.Organization{KRS: "1", Coordinates: []store.Coordinate{{Lat: -91, Lon: 0}}}},
		{"longitude out of range", store.Organization{KRS: "1", Coordinates: []store.Coordinate{{Lat: 0, Lon: 181}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := st.UpsertOrganization(ctx, tt.org)
			if !errors.Is(err, internalerr.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSQLiteIntegrationDeleteCascades(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	if err := st.UpsertOrganization(ctx, sampleOrg()); err != nil {
		t.Fatalf("UpsertOrganization: %v", err)
	}
	if err := st.DeleteOrganization(ctx, "0000123456"); err != nil {
		t.Fatalf("DeleteOrganization: %v", err)
	}
	if err := st.DeleteOrganization(ctx, "0000123456"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats != (store.Stats{}) {
		t.Errorf("child rows survived delete: %+v", stats)
	}
}

func TestSQLiteIntegrationCategories(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	if err := st.SyncCategories(ctx, []store.Category{{ID: 1, Name: "Edukacja i nauka"}}); err != nil {
		t.Fatalf("SyncCategories: %v", err)
	}
	cats, err := st.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != len(testCategories) {
		t.Fatalf("expected %d categories, got %d", len(testCategories), len(cats))
	}
	if cats[0].Name != "Edukacja i nauka" {
		t.Errorf("category name not updated: %+v", cats[0])
	}
}

func TestSQLiteIntegrationManyOrganizations(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	for i := 0; i < 50; i++ {
		org := store.Organization{
			KRS:        fmt.Sprintf("%010d", i),
			Name:       fmt.Sprintf("Stowarzyszenie %d", i),
			Categories: []int{99},
		}
		if err := st.UpsertOrganization(ctx, org); err != nil {
			t.Fatalf("UpsertOrganization %d: %v", i, err)
		}
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Organizations != 50 || stats.Assignments != 50 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
