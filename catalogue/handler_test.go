package catalogue

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifcatlas/api/internal/broker"
)

func TestParseBBoxHappyPath(t *testing.T) {
	bbox, err := parseBBox("12.4,41.8,12.6,42.0")
	require.NoError(t, err)
	assert.Equal(t, 12.4, bbox.MinLon)
	assert.Equal(t, 41.8, bbox.MinLat)
	assert.Equal(t, 12.6, bbox.MaxLon)
	assert.Equal(t, 42.0, bbox.MaxLat)
}

func TestParseBBoxRejectsOutOfRangeLongitude(t *testing.T) {
	_, err := parseBBox("-200,41.8,12.6,42.0")
	assert.Error(t, err)
}

func TestParseBBoxRejectsOutOfRangeLatitude(t *testing.T) {
	_, err := parseBBox("12.4,-95,12.6,42.0")
	assert.Error(t, err)
}

func TestParseBBoxRejectsInvertedLongitude(t *testing.T) {
	_, err := parseBBox("12.6,41.8,12.4,42.0")
	assert.Error(t, err)
}

func TestParseBBoxRejectsInvertedLatitude(t *testing.T) {
	_, err := parseBBox("12.4,42.0,12.6,41.8")
	assert.Error(t, err)
}

func TestParseBBoxRejectsMalformed(t *testing.T) {
	_, err := parseBBox("not-a-bbox")
	assert.Error(t, err)
}

func TestWeakETagIsStableForIdenticalBody(t *testing.T) {
	body := []byte(`{"type":"FeatureCollection","features":[]}`)
	assert.Equal(t, weakETag(body), weakETag(body))
}

func TestWeakETagDiffersForDifferentBody(t *testing.T) {
	assert.NotEqual(t, weakETag([]byte("a")), weakETag([]byte("b")))
}

func TestQueryCacheKeyVariesByBBoxCursorAndLimit(t *testing.T) {
	a := queryCacheKey("12.4,41.8,12.6,42.0", "", 100)
	b := queryCacheKey("12.4,41.8,12.6,42.0", "cursor-1", 100)
	c := queryCacheKey("12.4,41.8,12.6,42.0", "", 50)
	d := queryCacheKey("0,0,1,1", "", 100)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestCacheLookupAndStoreRoundTrip(t *testing.T) {
	srv, err := miniredis.Run()
	require.NoError(t, err)
	defer srv.Close()

	brk := broker.New(broker.Config{Addr: srv.Addr()})
	defer brk.Close()

	h := &Handler{Broker: brk, CacheEnabled: true}
	r := httptest.NewRequest(http.MethodGet, "/api/v1/buildings", nil)

	_, hit := h.cacheLookup(r, "buildings:test")
	assert.False(t, hit)

	h.cacheStore(r, "buildings:test", []byte(`{"type":"FeatureCollection"}`))

	body, hit := h.cacheLookup(r, "buildings:test")
	require.True(t, hit)
	assert.Equal(t, `{"type":"FeatureCollection"}`, string(body))
}

func TestCacheLookupDisabledIsAlwaysMiss(t *testing.T) {
	h := &Handler{CacheEnabled: false}
	r := httptest.NewRequest(http.MethodGet, "/api/v1/buildings", nil)

	_, hit := h.cacheLookup(r, "buildings:test")
	assert.False(t, hit)
}
