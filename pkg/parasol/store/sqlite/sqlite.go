package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/norbert12x/parasol/pkg/parasol/internalerr"
	"github.com/norbert12x/parasol/pkg/parasol/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode and foreign keys enabled.
// Pragmas are passed through the DSN so every pooled connection gets them.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers anyway; one connection keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Initialize schema
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS organizations (
	krs TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS addresses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	krs TEXT NOT NULL,
	street TEXT,
	building TEXT,
	unit TEXT,
	locality TEXT,
	postal_code TEXT,
	post_office TEXT,
	district TEXT,
	county TEXT,
	region TEXT,
	country TEXT,
	FOREIGN KEY(krs) REFERENCES organizations(krs) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS addresses_krs ON addresses(krs);

CREATE TABLE IF NOT EXISTS coordinates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	krs TEXT NOT NULL,
	lat REAL NOT NULL,
	lon REAL NOT NULL,
	FOREIGN KEY(krs) REFERENCES organizations(krs) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS coordinates_krs ON coordinates(krs);

CREATE TABLE IF NOT EXISTS organization_categories (
	krs TEXT NOT NULL,
	category_id INTEGER NOT NULL,
	PRIMARY KEY(krs, category_id),
	FOREIGN KEY(krs) REFERENCES organizations(krs) ON DELETE CASCADE,
	FOREIGN KEY(category_id) REFERENCES categories(id)
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// SyncCategories upserts the category reference set. Categories missing from
// cats are kept because assignments may still reference them.
func (s *sqliteStore) SyncCategories(ctx context.Context, cats []store.Category) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO categories (id, name) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name;
`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range cats {
		if _, err := stmt.ExecContext(ctx, c.ID, c.Name); err != nil {
			return fmt.Errorf("sync category %d: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Categories returns the reference set ordered by id
func (s *sqliteStore) Categories(ctx context.Context) ([]store.Category, error) {
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

// UpsertOrganization inserts or updates an organization and replaces all of
// its child rows in one transaction.
func (s *sqliteStore) UpsertOrganization(ctx context.Context, o store.Organization) error {
	if err := validate(o); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO organizations (krs, name)
VALUES (?, ?)
ON CONFLICT(krs) DO UPDATE SET
	name=excluded.name;
`
	if _, err := tx.ExecContext(ctx, stmt, o.KRS, o.Name); err != nil {
		return fmt.Errorf("upsert organization %s: %w", o.KRS, err)
	}

	if err := replaceAddresses(ctx, tx, o.KRS, o.Addresses); err != nil {
		return fmt.Errorf("replace addresses %s: %w", o.KRS, err)
	}
	if err := replaceCoordinates(ctx, tx, o.KRS, o.Coordinates); err != nil {
		return fmt.Errorf("replace coordinates %s: %w", o.KRS, err)
	}
	if err := replaceCategories(ctx, tx, o.KRS, uniqueInts(o.Categories)); err != nil {
		return fmt.Errorf("replace categories %s: %w", o.KRS, err)
	}

	return tx.Commit()
}

func validate(o store.Organization) error {
	if strings.TrimSpace(o.KRS) == "" {
		return fmt.Errorf("upsert organization: empty krs: %w", internalerr.ErrInvalidInput)
	}
	for _, c := range o.Coordinates {
		if !c.Valid() {
			return fmt.Errorf("upsert organization %s: coordinate out of range: %w", o.KRS, internalerr.ErrInvalidInput)
		}
	}
	return nil
}

func replaceAddresses(ctx context.Context, tx *sql.Tx, krs string, addrs []store.Address) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM addresses WHERE krs=?`, krs); err != nil {
		return err
	}
	if len(addrs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO addresses (krs, street, building, unit, locality, postal_code, post_office, district, county, region, country)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, a := range addrs {
		if a.IsZero() {
			continue
		}
		if _, err := stmt.ExecContext(ctx, krs, a.Street, a.Building, a.Unit, a.Locality,
			a.PostalCode, a.PostOffice, a.District, a.County, a.Region, a.Country); err != nil {
			return err
		}
	}
	return nil
}

func replaceCoordinates(ctx context.Context, tx *sql.Tx, krs string, coords []store.Coordinate) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM coordinates WHERE krs=?`, krs); err != nil {
		return err
	}
	if len(coords) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO coordinates (krs, lat, lon) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range coords {
		if _, err := stmt.ExecContext(ctx, krs, c.Lat, c.Lon); err != nil {
			return err
		}
	}
	return nil
}

func replaceCategories(ctx context.Context, tx *sql.Tx, krs string, ids []int) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM organization_categories WHERE krs=?`, krs); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO organization_categories (krs, category_id) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, krs, id); err != nil {
			return err
		}
	}
	return nil
}

// GetOrganization retrieves an organization with its child rows
func (s *sqliteStore) GetOrganization(ctx context.Context, krs string) (store.Organization, bool, error) {
	o := store.Organization{KRS: krs}
	err := s.db.QueryRowContext(ctx, `SELECT name FROM organizations WHERE krs = ?`, krs).Scan(&o.Name)
	if err == sql.ErrNoRows {
		return store.Organization{}, false, nil
	}
	if err != nil {
		return store.Organization{}, false, err
	}

	if o.Addresses, err = s.loadAddresses(ctx, krs); err != nil {
		return store.Organization{}, false, err
	}
	if o.Coordinates, err = s.loadCoordinates(ctx, krs); err != nil {
		return store.Organization{}, false, err
	}
	if o.Categories, err = s.loadCategories(ctx, krs); err != nil {
		return store.Organization{}, false, err
	}
	return o, true, nil
}

func (s *sqliteStore) loadAddresses(ctx context.Context, krs string) ([]store.Address, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT street, building, unit, locality, postal_code, post_office, district, county, region, country
FROM addresses WHERE krs = ? ORDER BY id`, krs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Address
	for rows.Next() {
		var f [10]sql.NullString
		if err := rows.Scan(&f[0], &f[1], &f[2], &f[3], &f[4], &f[5], &f[6], &f[7], &f[8], &f[9]); err != nil {
			return nil, err
		}
		out = append(out, store.Address{
			KRS:        krs,
			Street:     f[0].String,
			Building:   f[1].String,
			Unit:       f[2].String,
			Locality:   f[3].String,
			PostalCode: f[4].String,
			PostOffice: f[5].String,
			District:   f[6].String,
			County:     f[7].String,
			Region:     f[8].String,
			Country:    f[9].String,
		})
	}
	return out, rows.Err()
}

func (s *sqliteStore) loadCoordinates(ctx context.Context, krs string) ([]store.Coordinate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT lat, lon FROM coordinates WHERE krs = ? ORDER BY id`, krs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Coordinate
	for rows.Next() {
		c := store.Coordinate{KRS: krs}
		if err := rows.Scan(&c.Lat, &c.Lon); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteStore) loadCategories(ctx context.Context, krs string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category_id FROM organization_categories WHERE krs = ? ORDER BY category_id`, krs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DeleteOrganization removes an organization; child rows cascade
func (s *sqliteStore) DeleteOrganization(ctx context.Context, krs string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM organizations WHERE krs = ?`, krs)
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

// Stats returns row counts per table
func (s *sqliteStore) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats
	err := s.db.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM organizations),
	(SELECT COUNT(*) FROM addresses),
	(SELECT COUNT(*) FROM coordinates),
	(SELECT COUNT(*) FROM organization_categories);
`).Scan(&st.Organizations, &st.Addresses, &st.Coordinates, &st.Assignments)
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
