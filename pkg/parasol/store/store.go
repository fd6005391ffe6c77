package store

import (
	"context"
	"math"
)

// Store is the main interface for persisting registry organizations
type Store interface {
	Close() error

	// Category reference set
	SyncCategories(ctx context.Context, cats []Category) error
	Categories(ctx context.Context) ([]Category, error)

	// Organizations
	UpsertOrganization(ctx context.Context, o Organization) error
	GetOrganization(ctx context.Context, krs string) (Organization, bool, error)
	DeleteOrganization(ctx context.Context, krs string) error

	Stats(ctx context.Context) (Stats, error)
}

// Organization represents a stored registry entity with its child rows.
// Child rows are owned by KRS and replaced as a whole on every upsert.
type Organization struct {
	KRS         string
	Name        string
	Addresses   []Address
	Coordinates []Coordinate
	Categories  []int // category ids
}

// Address is a postal address of an organization's seat.
type Address struct {
	KRS        string
	Street     string
	Building   string
	Unit       string
	Locality   string
	PostalCode string
	PostOffice string
	District   string // gmina
	County     string // powiat
	Region     string // województwo
	Country    string
}

// IsZero reports whether no address field is set.
func (a Address) IsZero() bool {
	return a.Street == "" && a.Building == "" && a.Unit == "" &&
		a.Locality == "" && a.PostalCode == "" && a.PostOffice == "" &&
		a.District == "" && a.County == "" && a.Region == "" && a.Country == ""
}

// Coordinate is a resolved geographic position in degrees.
type Coordinate struct {
	KRS string
	Lat float64
	Lon float64
}

// Valid reports whether both components are finite and within range.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Category is an entry of the static category reference set.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Stats holds row counts per table.
type Stats struct {
	Organizations int64 `json:"organizations"`
	Addresses     int64 `json:"addresses"`
	Coordinates   int64 `json:"coordinates"`
	Assignments   int64 `json:"assignments"`
}
