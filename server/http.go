// Package server exposes the service's two front ends: an HTTP API for
// uploading documents and an MCP server for driving sanitization from an
// agent.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/extract"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/metrics"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/store"
)

// uploadSlack covers multipart framing overhead on top of the payload cap.
const uploadSlack = 64 * 1024

// HTTP is the upload API. It accepts documents, lists stored objects, and
// deletes them early; sanitization itself happens over MCP.
type HTTP struct {
	store   store.Store
	extract *extract.Service
	baseURL string
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewHTTP wires the upload API. metrics may be nil.
func NewHTTP(st store.Store, ex *extract.Service, baseURL string, m *metrics.Metrics) *HTTP {
	return &HTTP{
		store:   st,
		extract: ex,
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: m,
		log:     slog.Default(),
	}
}

// Handler builds the route tree.
func (s *HTTP) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/upload", s.handleUpload)
	r.Get("/files", s.handleList)
	r.Delete("/files/{id}", s.handleDelete)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

type uploadResponse struct {
	FileID    string    `json:"file_id"`
	Filename  string    `json:"filename"`
	MediaKind string    `json:"media_kind"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expires_at"`
	// Next tells the caller how to proceed; the upload is useless until
	// a sanitize_document call consumes it.
	Next string `json:"next"`
}

func (s *HTTP) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, extract.MaxPayloadSize+uploadSlack)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.metrics.ObserveUpload("bad_request")
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !s.supported(ext) {
		s.metrics.ObserveUpload("unsupported_type")
		writeError(w, http.StatusUnsupportedMediaType,
			fmt.Sprintf("unsupported file type %q, supported: %s",
				ext, strings.Join(s.extract.SupportedExtensions(), ", ")))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, extract.MaxPayloadSize+1))
	if err != nil {
		s.metrics.ObserveUpload("read_error")
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(data) > extract.MaxPayloadSize {
		s.metrics.ObserveUpload("too_large")
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the %dMB limit", extract.MaxPayloadSize/(1024*1024)))
		return
	}
	if len(data) == 0 {
		s.metrics.ObserveUpload("empty")
		writeError(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	id, err := s.store.Put(r.Context(), data, ext)
	if err != nil {
		s.metrics.ObserveUpload("store_error")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	obj, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.metrics.ObserveUpload("store_error")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	s.metrics.ObserveUpload("ok")
	s.log.Info("document uploaded",
		"id", id, "filename", header.Filename, "size", len(data))
	writeJSON(w, http.StatusCreated, uploadResponse{
		FileID:    id,
		Filename:  header.Filename,
		MediaKind: ext,
		Size:      obj.Size,
		ExpiresAt: obj.ExpiresAt,
		Next:      fmt.Sprintf("call the sanitize_document MCP tool with file_id %q before %s", id, obj.ExpiresAt.Format(time.RFC3339)),
	})
}

type fileInfo struct {
	FileID    string    `json:"file_id"`
	MediaKind string    `json:"media_kind"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *HTTP) handleList(w http.ResponseWriter, r *http.Request) {
	objs, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	out := make([]fileInfo, 0, len(objs))
	for _, o := range objs {
		out = append(out, fileInfo{
			FileID:    o.ID,
			MediaKind: o.MediaKind,
			Size:      o.Size,
			CreatedAt: o.CreatedAt,
			ExpiresAt: o.ExpiresAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": out})
}

func (s *HTTP) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no such file")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete file")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTP) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTP) supported(ext string) bool {
	for _, e := range s.extract.SupportedExtensions() {
		if e == ext {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
