// Package geojson shapes Building rows into the GeoJSON Feature /
// FeatureCollection wire format the 3D globe client expects.
package geojson

import (
	"time"

	"github.com/ifcatlas/api/internal/store"
)

// Geometry is a GeoJSON Point geometry, longitude first.
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// Properties carries all Building metadata alongside the geometry.
type Properties struct {
	Name             *string  `json:"name"`
	Address          *string  `json:"address"`
	City             *string  `json:"city"`
	Country          *string  `json:"country"`
	Height           *float64 `json:"height"`
	FloorCount       *int     `json:"floorCount"`
	IfcFileID        string   `json:"ifcFileId"`
	CreatedAt        string   `json:"createdAt"`
	UpdatedAt        string   `json:"updatedAt"`
	ModelURL         *string  `json:"modelUrl"`
	ModelFormat      *string  `json:"modelFormat"`
	ModelSizeMB      *float64 `json:"modelSizeMb"`
	ModelGeneratedAt *string  `json:"modelGeneratedAt"`
}

// Feature is a single GeoJSON Feature wrapping one Building.
type Feature struct {
	Type       string     `json:"type"`
	ID         string     `json:"id"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Metadata accompanies a FeatureCollection with pagination/query context.
type Metadata struct {
	Count      int     `json:"count"`
	BBox       *string `json:"bbox,omitempty"`
	NextCursor *string `json:"nextCursor,omitempty"`
}

// FeatureCollection is the top-level response shape for GET /buildings.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
	Metadata Metadata  `json:"metadata"`
}

// FromBuilding shapes a single store.Building into a GeoJSON Feature.
func FromBuilding(b store.Building) Feature {
	return Feature{
		Type: "Feature",
		ID:   b.ID,
		Geometry: Geometry{
			Type:        "Point",
			Coordinates: []float64{b.Longitude, b.Latitude},
		},
		Properties: Properties{
			Name:             b.Name,
			Address:          b.Address,
			City:             b.City,
			Country:          b.Country,
			Height:           b.Height,
			FloorCount:       b.FloorCount,
			IfcFileID:        b.IfcFileID,
			CreatedAt:        b.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:        b.UpdatedAt.UTC().Format(time.RFC3339),
			ModelURL:         b.ModelURL,
			ModelFormat:      b.ModelFormat,
			ModelSizeMB:      b.ModelSizeMB,
			ModelGeneratedAt: formatOptionalTime(b.ModelGeneratedAt),
		},
	}
}

// FromBuildings shapes a page of Buildings into a FeatureCollection. bbox is
// the raw query-string bbox value to echo back in metadata, or "" if none
// was supplied. nextCursor is the last feature's id when the page is full,
// or "" otherwise.
func FromBuildings(buildings []store.Building, bbox, nextCursor string) FeatureCollection {
	features := make([]Feature, len(buildings))
	for i, b := range buildings {
		features[i] = FromBuilding(b)
	}

	meta := Metadata{Count: len(features)}
	if bbox != "" {
		meta.BBox = &bbox
	}
	if nextCursor != "" {
		meta.NextCursor = &nextCursor
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
		Metadata: meta,
	}
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
