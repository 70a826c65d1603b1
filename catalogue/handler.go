// Package catalogue implements the spatial query API: bounding-box
// building search with cursor pagination and ETag cache validation, plus
// cascade deletion jointly owned with the upload orchestrator.
package catalogue

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ifcatlas/api/internal/apperr"
	"github.com/ifcatlas/api/internal/broker"
	"github.com/ifcatlas/api/internal/geojson"
	"github.com/ifcatlas/api/internal/metrics"
	"github.com/ifcatlas/api/internal/objectstore"
	"github.com/ifcatlas/api/internal/store"
)

const (
	defaultLimit = 100
	maxLimit     = 1000

	// queryCacheTTL bounds staleness of the advisory query cache; shorter
	// than the ETag's max-age so a client bypassing its own cache still
	// sees reasonably fresh data.
	queryCacheTTL = 30 * time.Second
)

var bboxPattern = regexp.MustCompile(`^-?\d+(\.\d+)?,-?\d+(\.\d+)?,-?\d+(\.\d+)?,-?\d+(\.\d+)?$`)

// Handler holds the catalogue HTTP handler dependencies.
type Handler struct {
	Buildings    *store.BuildingStore
	IfcFiles     *store.IfcFileStore
	Objects      *objectstore.Client
	Broker       *broker.Client
	CacheEnabled bool
}

// NewHandler creates a new catalogue handler.
func NewHandler(buildings *store.BuildingStore, ifcFiles *store.IfcFileStore, objects *objectstore.Client, brk *broker.Client, cacheEnabled bool) *Handler {
	return &Handler{Buildings: buildings, IfcFiles: ifcFiles, Objects: objects, Broker: brk, CacheEnabled: cacheEnabled}
}

// RegisterRoutes registers the spatial catalogue routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/buildings", h.ListBuildings)
	mux.HandleFunc("GET /api/v1/buildings/{id}", h.GetBuilding)
	mux.HandleFunc("DELETE /api/v1/buildings/{id}", h.DeleteBuilding)
}

// ListBuildings answers GET /buildings: optional bbox filter, cursor
// pagination, and weak-ETag cache validation.
func (h *Handler) ListBuildings(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { metrics.CatalogueQueryDuration.Observe(time.Since(start).Seconds()) }()

	q := r.URL.Query()

	limit := defaultLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			apperr.Write(w, r, apperr.NewValidation("limit", "must be an integer between 1 and 1000"))
			return
		}
		limit = n
	}

	var bbox *store.BBox
	rawBBox := q.Get("bbox")
	if rawBBox != "" {
		parsed, err := parseBBox(rawBBox)
		if err != nil {
			apperr.Write(w, r, err)
			return
		}
		bbox = parsed
	}

	cursor := q.Get("cursor")

	cacheKey := queryCacheKey(rawBBox, cursor, limit)

	body, cached := h.cacheLookup(r, cacheKey)
	if !cached {
		buildings, err := h.Buildings.Query(r.Context(), bbox, cursor, limit)
		if err != nil {
			apperr.Write(w, r, err)
			return
		}
		metrics.CatalogueQueryResults.Observe(float64(len(buildings)))

		nextCursor := ""
		if len(buildings) == limit {
			nextCursor = buildings[len(buildings)-1].ID
		}

		collection := geojson.FromBuildings(buildings, rawBBox, nextCursor)

		body, err = json.Marshal(collection)
		if err != nil {
			apperr.Write(w, r, err)
			return
		}

		h.cacheStore(r, cacheKey, body)
	}

	etag := weakETag(body)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "public, max-age=300, must-revalidate")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300, must-revalidate")
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// GetBuilding answers GET /buildings/{id}.
func (h *Handler) GetBuilding(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	b, err := h.Buildings.Get(r.Context(), id)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	if b == nil {
		apperr.Write(w, r, apperr.NewNotFound("building not found"))
		return
	}

	feature := geojson.FromBuilding(*b)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(feature)
}

// DeleteBuilding answers DELETE /buildings/{id}: cascade-deletes the
// building row, the linked IfcFile record, and best-effort the stored
// object. CSRF protection is applied by the edge gateway middleware.
func (h *Handler) DeleteBuilding(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	ifcFileID, err := h.Buildings.Delete(r.Context(), id)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	if ifcFileID == "" {
		apperr.Write(w, r, apperr.NewNotFound("building not found"))
		return
	}

	ifcFile, err := h.IfcFiles.Get(r.Context(), ifcFileID)
	if err == nil && ifcFile != nil {
		if delErr := h.Objects.Delete(r.Context(), ifcFile.S3Key); delErr != nil {
			log.Printf("cascade delete: best-effort object delete failed for %s: %v", ifcFile.S3Key, delErr)
		}
	}
	if delErr := h.IfcFiles.Delete(r.Context(), ifcFileID); delErr != nil {
		log.Printf("cascade delete: failed to delete ifc_file %s: %v", ifcFileID, delErr)
	}

	if h.CacheEnabled && h.Broker != nil {
		if err := h.Broker.CacheInvalidate(r.Context(), "buildings:*"); err != nil {
			log.Printf("query cache invalidation failed: %v", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseBBox(raw string) (*store.BBox, error) {
	if !bboxPattern.MatchString(raw) {
		return nil, apperr.NewValidation("bbox", "must be minLon,minLat,maxLon,maxLat")
	}

	parts := strings.Split(raw, ",")
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, apperr.NewValidation("bbox", "must be minLon,minLat,maxLon,maxLat")
		}
		vals[i] = v
	}

	minLon, minLat, maxLon, maxLat := vals[0], vals[1], vals[2], vals[3]

	if minLon < -180 || minLon > 180 || maxLon < -180 || maxLon > 180 {
		return nil, apperr.NewValidation("bbox", "longitude must be within [-180, 180]")
	}
	if minLat < -90 || minLat > 90 || maxLat < -90 || maxLat > 90 {
		return nil, apperr.NewValidation("bbox", "latitude must be within [-90, 90]")
	}
	if minLon >= maxLon {
		return nil, apperr.NewValidation("bbox", "minLon must be less than maxLon")
	}
	if minLat >= maxLat {
		return nil, apperr.NewValidation("bbox", "minLat must be less than maxLat")
	}

	return &store.BBox{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat}, nil
}

// weakETag derives a stable weak validator from a truncated base64 hash of
// the serialized response body.
func weakETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `W/"` + base64.RawURLEncoding.EncodeToString(sum[:])[:16] + `"`
}

// queryCacheKey derives the advisory cache key for a bbox/cursor/limit
// combination.
func queryCacheKey(rawBBox, cursor string, limit int) string {
	return "buildings:" + rawBBox + ":" + cursor + ":" + strconv.Itoa(limit)
}

// cacheLookup is a best-effort, fail-open cache-aside read: any error or
// disabled cache just means "not cached", never an error surfaced to the
// client.
func (h *Handler) cacheLookup(r *http.Request, key string) ([]byte, bool) {
	if !h.CacheEnabled || h.Broker == nil {
		return nil, false
	}
	body, hit, err := h.Broker.CacheGet(r.Context(), key)
	if err != nil {
		log.Printf("query cache lookup failed, querying database: %v", err)
		return nil, false
	}
	return body, hit
}

// cacheStore is a best-effort cache-aside write; failures are logged and
// otherwise ignored since the cache is purely advisory.
func (h *Handler) cacheStore(r *http.Request, key string, body []byte) {
	if !h.CacheEnabled || h.Broker == nil {
		return
	}
	if err := h.Broker.CacheSet(r.Context(), key, body, queryCacheTTL); err != nil {
		log.Printf("query cache write failed: %v", err)
	}
}
