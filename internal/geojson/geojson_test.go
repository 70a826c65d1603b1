package geojson

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ifcatlas/api/internal/store"
)

func TestFromBuildingCoordinatesAreLonLatOrder(t *testing.T) {
	name := "Colosseum"
	b := store.Building{
		ID:        "b1",
		IfcFileID: "f1",
		Name:      &name,
		Longitude: 12.4924,
		Latitude:  41.8902,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	feature := FromBuilding(b)

	assert.Equal(t, "Feature", feature.Type)
	assert.Equal(t, "b1", feature.ID)
	assert.Equal(t, "Point", feature.Geometry.Type)
	assert.Equal(t, []float64{12.4924, 41.8902}, feature.Geometry.Coordinates)
	assert.Equal(t, "Colosseum", *feature.Properties.Name)
	assert.Equal(t, "2026-01-02T03:04:05Z", feature.Properties.CreatedAt)
}

func TestFromBuildingsSetsNextCursorOnlyWhenPageIsFull(t *testing.T) {
	buildings := []store.Building{
		{ID: "b1", Longitude: 1, Latitude: 2},
		{ID: "b2", Longitude: 3, Latitude: 4},
	}

	full := FromBuildings(buildings, "", "b2")
	assert.NotNil(t, full.Metadata.NextCursor)
	assert.Equal(t, "b2", *full.Metadata.NextCursor)
	assert.Equal(t, 2, full.Metadata.Count)

	partial := FromBuildings(buildings, "", "")
	assert.Nil(t, partial.Metadata.NextCursor)
}

func TestFromBuildingsEchoesBBox(t *testing.T) {
	collection := FromBuildings(nil, "12.4,41.8,12.6,42.0", "")
	assert.Equal(t, "12.4,41.8,12.6,42.0", *collection.Metadata.BBox)
}
