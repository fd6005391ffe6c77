// Package postgres implements store.Store on PostgreSQL through lib/pq.
// The upsert algorithm mirrors the SQLite backend: one transaction per
// organization, upsert of the parent row, then delete-and-insert of every
// child table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/norbert12x/parasol/pkg/parasol/internalerr"
	"github.com/norbert12x/parasol/pkg/parasol/store"
)

// Store persists organizations in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL and bootstraps the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	s := New(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS organizations (
	krs TEXT PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS addresses (
	id BIGSERIAL PRIMARY KEY,
	krs TEXT NOT NULL REFERENCES organizations(krs) ON DELETE CASCADE,
	street TEXT,
	building TEXT,
	unit TEXT,
	locality TEXT,
	postal_code TEXT,
	post_office TEXT,
	district TEXT,
	county TEXT,
	region TEXT,
	country TEXT
);
CREATE INDEX IF NOT EXISTS addresses_krs ON addresses(krs);
CREATE TABLE IF NOT EXISTS coordinates (
	id BIGSERIAL PRIMARY KEY,
	krs TEXT NOT NULL REFERENCES organizations(krs) ON DELETE CASCADE,
	lat DOUBLE PRECISION NOT NULL CHECK (lat BETWEEN -90 AND 90),
	lon DOUBLE PRECISION NOT NULL CHECK (lon BETWEEN -180 AND 180)
);
CREATE INDEX IF NOT EXISTS coordinates_krs ON coordinates(krs);
CREATE TABLE IF NOT EXISTS organization_categories (
	krs TEXT NOT NULL REFERENCES organizations(krs) ON DELETE CASCADE,
	category_id INTEGER NOT NULL REFERENCES categories(id),
	PRIMARY KEY (krs, category_id)
);
`

// EnsureSchema creates missing tables. It does not migrate existing ones.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SyncCategories upserts the category reference set.
func (s *Store) SyncCategories(ctx context.Context, cats []store.Category) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range cats {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO categories (id, name) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, c.ID, c.Name); err != nil {
			return fmt.Errorf("sync category %d: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Categories returns the reference set ordered by id.
func (s *Store) Categories(ctx context.Context) ([]store.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Category
	for rows.Next() {
		var c store.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertOrganization replaces the organization and its child rows atomically.
func (s *Store) UpsertOrganization(ctx context.Context, o store.Organization) error {
	if strings.TrimSpace(o.KRS) == "" {
		return fmt.Errorf("upsert organization: empty krs: %w", internalerr.ErrInvalidInput)
	}
	for _, c := range o.Coordinates {
		if !c.Valid() {
			return fmt.Errorf("upsert organization %s: coordinate out of range: %w", o.KRS, internalerr.ErrInvalidInput)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO organizations (krs, name) VALUES ($1, $2)
ON CONFLICT (krs) DO UPDATE SET name = EXCLUDED.name`, o.KRS, o.Name); err != nil {
		return fmt.Errorf("upsert organization %s: %w", o.KRS, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM addresses WHERE krs = $1`, o.KRS); err != nil {
		return fmt.Errorf("delete addresses %s: %w", o.KRS, err)
	}
	for _, a := range o.Addresses {
		if a.IsZero() {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO addresses (krs, street, building, unit, locality, postal_code, post_office, district, county, region, country)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			o.KRS, a.Street, a.Building, a.Unit, a.Locality, a.PostalCode, a.PostOffice,
			a.District, a.County, a.Region, a.Country); err != nil {
			return fmt.Errorf("insert address %s: %w", o.KRS, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM coordinates WHERE krs = $1`, o.KRS); err != nil {
		return fmt.Errorf("delete coordinates %s: %w", o.KRS, err)
	}
	for _, c := range o.Coordinates {
		if _, err := tx.ExecContext(ctx, `INSERT INTO coordinates (krs, lat, lon) VALUES ($1, $2, $3)`, o.KRS, c.Lat, c.Lon); err != nil {
			return fmt.Errorf("insert coordinate %s: %w", o.KRS, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM organization_categories WHERE krs = $1`, o.KRS); err != nil {
		return fmt.Errorf("delete categories %s: %w", o.KRS, err)
	}
	for _, id := range uniqueInts(o.Categories) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO organization_categories (krs, category_id) VALUES ($1, $2)`, o.KRS, id); err != nil {
			return fmt.Errorf("insert category %s/%d: %w", o.KRS, id, err)
		}
	}

	return tx.Commit()
}

// GetOrganization loads an organization with its child rows.
func (s *Store) GetOrganization(ctx context.Context, krs string) (store.Organization, bool, error) {
	o := store.Organization{KRS: krs}
	err := s.db.QueryRowContext(ctx, `SELECT name FROM organizations WHERE krs = $1`, krs).Scan(&o.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Organization{}, false, nil
	}
	if err != nil {
		return store.Organization{}, false, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT street, building, unit, locality, postal_code, post_office, district, county, region, country
FROM addresses WHERE krs = $1 ORDER BY id`, krs)
	if err != nil {
		return store.Organization{}, false, err
	}
	for rows.Next() {
		var f [10]sql.NullString
		if err := rows.Scan(&f[0], &f[1], &f[2], &f[3], &f[4], &f[5], &f[6], &f[7], &f[8], &f[9]); err != nil {
			rows.Close()
			return store.Organization{}, false, err
		}
		o.Addresses = append(o.Addresses, store.Address{
			KRS: krs, Street: f[0].String, Building: f[1].String, Unit: f[2].String,
			Locality: f[3].String, PostalCode: f[4].String, PostOffice: f[5].String,
			District: f[6].String, County: f[7].String, Region: f[8].String, Country: f[9].String,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return store.Organization{}, false, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT lat, lon FROM coordinates WHERE krs = $1 ORDER BY id`, krs)
	if err != nil {
		return store.Organization{}, false, err
	}
	for rows.Next() {
		c := store.Coordinate{KRS: krs}
		if err := rows.Scan(&c.Lat, &c.Lon); err != nil {
			rows.Close()
			return store.Organization{}, false, err
		}
		o.Coordinates = append(o.Coordinates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return store.Organization{}, false, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT category_id FROM organization_categories WHERE krs = $1 ORDER BY category_id`, krs)
	if err != nil {
		return store.Organization{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return store.Organization{}, false, err
		}
		o.Categories = append(o.Categories, id)
	}
	if err := rows.Err(); err != nil {
		return store.Organization{}, false, err
	}
	return o, true, nil
}

// DeleteOrganization removes an organization; child rows cascade.
func (s *Store) DeleteOrganization(ctx context.Context, krs string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM organizations WHERE krs = $1`, krs)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return internalerr.ErrNotFound
	}
	return nil
}

// Stats returns row counts per table.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats
	err := s.db.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM organizations),
	(SELECT COUNT(*) FROM addresses),
	(SELECT COUNT(*) FROM coordinates),
	(SELECT COUNT(*) FROM organization_categories)`).
		Scan(&st.Organizations, &st.Addresses, &st.Coordinates, &st.Assignments)
	return st, err
}

func uniqueInts(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

var _ store.Store = (*Store)(nil)
