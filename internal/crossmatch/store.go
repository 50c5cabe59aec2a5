// Package crossmatch resolves an alert's sky position against a local copy
// of the reference catalog. It is the only external lookup the classifier
// performs: alerts normally arrive with a crossmatch annotation already
// attached, and this package fills the gap for those that do not.
//
// Lookup failures are never fatal. A timeout, an open circuit, or a miss
// all degrade to the Unknown sentinel, which every filter treats as "no
// counterpart".
package crossmatch

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/astrosift/astrosift/pkg/postgres"
)

// Store looks up the catalog class of the nearest object within the cone
// around a sky position. It returns "" when no object lies inside the cone.
type Store interface {
	NearestClass(ctx context.Context, ra, dec, radiusArcsec float64) (string, error)
}

// CatalogStore is the PostgreSQL-backed Store. The catalog_objects table is
// loaded offline from the reference catalog dumps.
type CatalogStore struct {
	db *postgres.Client
}

// NewCatalogStore creates a CatalogStore over the given database client.
func NewCatalogStore(db *postgres.Client) *CatalogStore {
	return &CatalogStore{db: db}
}

// NearestClass performs a cone search using a bounding-box prefilter and a
// small-angle distance sort. Good to well below an arcsecond at the cone
// sizes used here, which is all the classifier needs.
func (s *CatalogStore) NearestClass(ctx context.Context, ra, dec, radiusArcsec float64) (string, error) {
	radiusDeg := radiusArcsec / 3600.0
	// Widen the RA window by 1/cos(dec) so the box stays a box on the sky.
	cosDec := math.Cos(dec * math.Pi / 180)
	raWindow := radiusDeg
	if cosDec > 1e-6 {
		raWindow = radiusDeg / cosDec
	}

	var class string
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT class FROM catalog_objects
		 WHERE ra BETWEEN $1 AND $2
		   AND dec BETWEEN $3 AND $4
		 ORDER BY (ra - $5) * (ra - $5) * $7 + (dec - $6) * (dec - $6)
		 LIMIT 1`,
		ra-raWindow, ra+raWindow, dec-radiusDeg, dec+radiusDeg, ra, dec, cosDec*cosDec,
	).Scan(&class)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying catalog cone (%f, %f): %w", ra, dec, err)
	}
	return class, nil
}
