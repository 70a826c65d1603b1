// Package models streams glTF/glB 3D model assets produced by the
// extraction worker from object storage to the globe client.
package models

import (
	"io"
	"net/http"
	"regexp"
	"strconv"

	"github.com/ifcatlas/api/internal/apperr"
	"github.com/ifcatlas/api/internal/objectstore"
)

var filenamePattern = regexp.MustCompile(`^[a-f0-9-]+\.(glb|gltf)$`)

// Handler holds the model streamer's HTTP handler dependencies.
type Handler struct {
	Objects *objectstore.Client
}

// NewHandler creates a new model streamer handler.
func NewHandler(objects *objectstore.Client) *Handler {
	return &Handler{Objects: objects}
}

// RegisterRoutes registers the model streamer routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/models/{filename}", h.StreamModel)
	mux.HandleFunc("OPTIONS /api/v1/models/{filename}", h.Preflight)
}

// StreamModel answers GET /models/{filename}: HEAD for size, then streams
// the object body with permissive CORS for the globe client.
func (h *Handler) StreamModel(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if !filenamePattern.MatchString(filename) {
		apperr.Write(w, r, apperr.NewBadRequest("invalid model filename"))
		return
	}

	key := "models/" + filename

	exists, size, err := h.Objects.Head(r.Context(), key)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	if !exists {
		apperr.Write(w, r, apperr.NewNotFound("model not found"))
		return
	}

	body, _, err := h.Objects.Get(r.Context(), key)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}
	defer body.Close()

	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentTypeFor(filename))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Header().Set("Content-Disposition", `inline; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		// headers and status are already sent; nothing more can be done
		// beyond truncating the connection.
		return
	}
}

// Preflight answers OPTIONS /models/{filename}.
func (h *Handler) Preflight(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
}

func contentTypeFor(filename string) string {
	if len(filename) >= 4 && filename[len(filename)-4:] == ".glb" {
		return "model/gltf-binary"
	}
	return "model/gltf+json"
}
