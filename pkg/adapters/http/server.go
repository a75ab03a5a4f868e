// Package http relays build requests over HTTP and streams their events back as server-sent events.
package http

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/liteforge"
	"github.com/aretw0/liteforge/internal/logging"
	"github.com/aretw0/liteforge/pkg/domain"
	"github.com/aretw0/liteforge/pkg/manifest"
)

// DescriptorField is the multipart field carrying the service-account descriptor.
const DescriptorField = "googleServicesFile"

// DescriptorName is the only accepted upload filename.
const DescriptorName = "google-services.json"

// DownloadPrefix prefixes artifact download references in success events.
const DownloadPrefix = "/api/download/"

// multipartOverhead leaves room for the text fields next to the descriptor.
const multipartOverhead = 1 << 20

//go:embed static
var staticFiles embed.FS

// Builder runs the rewrite and build pipeline.
type Builder interface {
	Build(ctx context.Context, req domain.BuildRequest) (<-chan domain.Event, error)
	StageDescriptor(r io.Reader) (string, error)
	MaxUploadBytes() int64
	FindArtifact(name string) (string, error)
	Busy() bool
}

// ManifestStore serves and patches the runtime manifest.
type ManifestStore interface {
	Get() manifest.Manifest
	Update(patch map[string]any) (manifest.Manifest, error)
}

// Server holds the relay dependencies.
type Server struct {
	Builder  Builder
	Manifest ManifestStore
	Metrics  *Metrics
	Logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithManifest enables the /api/manifest routes.
func WithManifest(store ManifestStore) Option {
	return func(s *Server) {
		s.Manifest = store
	}
}

// WithMetrics shares a metrics set between handlers.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.Metrics = m
	}
}

// NewHandler creates the HTTP handler for a builder.
func NewHandler(builder Builder, opts ...Option) http.Handler {
	server := &Server{
		Builder: builder,
		Logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.Metrics == nil {
		server.Metrics = NewMetrics()
	}
	m := server.Metrics

	r := chi.NewRouter()
	r.Get("/", m.instrument("/", server.Index))
	r.Post("/api/build", m.instrument("/api/build", server.Build))
	r.Get("/api/download/{filename}", m.instrument("/api/download", server.Download))
	r.Get("/api/manifest", m.instrument("/api/manifest", server.GetManifest))
	r.Patch("/api/manifest", m.instrument("/api/manifest", server.PatchManifest))
	r.Get("/health", m.instrument("/health", server.GetHealth))
	r.Get("/info", m.instrument("/info", server.GetInfo))
	r.Handle("/metrics", m.Handler())

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Index serves the upload form.
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	page, err := fs.ReadFile(staticFiles, "static/index.html")
	if err != nil {
		http.Error(w, "Failed to load page", http.StatusInternalServerError)
		s.Logger.Error("Index page missing", "err", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// Build handles POST /api/build: validation, descriptor staging, then the event stream.
func (s *Server) Build(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.Builder.MaxUploadBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 10); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.reject(w, http.StatusRequestEntityTooLarge, domain.ErrPayloadTooLarge.Error())
			return
		}
		s.reject(w, http.StatusBadRequest, fmt.Sprintf("Invalid form: %v", err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	fields, err := readFields(r)
	if err != nil {
		s.reject(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(fields.URL) == "" || strings.TrimSpace(fields.AppName) == "" || strings.TrimSpace(fields.PackageName) == "" {
		s.reject(w, http.StatusBadRequest, "Missing required fields: url, appName, packageName")
		return
	}
	req, err := domain.NewBuildRequest(fields.URL, fields.AppName, fields.PackageName)
	if err != nil {
		s.reject(w, http.StatusBadRequest, err.Error())
		return
	}

	staged, status, err := s.stage(r)
	if err != nil {
		s.reject(w, status, err.Error())
		return
	}
	if staged != "" {
		defer os.Remove(staged)
		req = req.WithServiceAccount(staged)
	}

	logger := s.Logger.With("package", req.PackageName)
	started := time.Now()
	events, err := s.Builder.Build(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBuildInProgress):
			s.reject(w, http.StatusConflict, err.Error())
		case domain.IsValidation(err):
			s.reject(w, http.StatusBadRequest, err.Error())
		default:
			logger.Error("Build could not start", "err", err)
			s.reject(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.stream(w, events, logger, started)
}

// readFields takes the request fields from a form or, for JSON bodies, from the decoded object.
func readFields(r *http.Request) (domain.BuildRequest, error) {
	var fields domain.BuildRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			return domain.BuildRequest{}, err
		}
		fields.ServiceAccountPath = ""
		return fields, nil
	}
	fields.URL = r.FormValue("url")
	fields.AppName = r.FormValue("appName")
	fields.PackageName = r.FormValue("packageName")
	return fields, nil
}

func (s *Server) reject(w http.ResponseWriter, status int, msg string) {
	s.Metrics.RecordBuild("rejected", 0)
	writeError(w, status, msg)
}

// stage validates the optional descriptor upload and writes it to the upload directory.
// It returns the staged path (empty when nothing was uploaded) or an HTTP status with the error.
func (s *Server) stage(r *http.Request) (string, int, error) {
	file, header, err := r.FormFile(DescriptorField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", 0, nil
		}
		return "", http.StatusBadRequest, err
	}
	defer file.Close()

	if !isJSONUpload(header) {
		return "", http.StatusBadRequest, domain.ErrInvalidFileType
	}
	if header.Filename != DescriptorName {
		return "", http.StatusBadRequest, domain.ErrInvalidUploadName
	}

	staged, err := s.Builder.StageDescriptor(file)
	switch {
	case err == nil:
		return staged, 0, nil
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return "", http.StatusRequestEntityTooLarge, err
	case domain.IsValidation(err):
		return "", http.StatusBadRequest, err
	default:
		return "", http.StatusInternalServerError, fmt.Errorf("failed to save %s: %w", DescriptorName, err)
	}
}

func isJSONUpload(h *multipart.FileHeader) bool {
	if strings.HasPrefix(h.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(h.Filename), ".json")
}

// stream relays every event as one SSE frame. The terminal success event points at the download route.
func (s *Server) stream(w http.ResponseWriter, events <-chan domain.Event, logger *slog.Logger, started time.Time) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		logger.Error("Build: Streaming not supported")
		for range events {
		}
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	outcome := "error"
	for e := range events {
		if e.Terminal() {
			if e.Type == domain.EventSuccess {
				outcome = "success"
			}
			e = DownloadEvent(e)
		}
		payload, err := json.Marshal(e)
		if err != nil {
			logger.Error("SSE: Event encode failed", "err", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	s.Metrics.RecordBuild(outcome, time.Since(started))
	logger.Info("Build stream closed", "outcome", outcome, "duration", time.Since(started))
}

// DownloadEvent replaces the filesystem path of a success event with its download reference.
func DownloadEvent(e domain.Event) domain.Event {
	if e.Type != domain.EventSuccess || e.APKPath == "" {
		return e
	}
	name := e.APKName
	if name == "" {
		name = filepath.Base(e.APKPath)
	}
	e.APKName = name
	e.APKPath = DownloadPrefix + url.PathEscape(name)
	return e
}

// Download handles GET /api/download/{filename}.
func (s *Server) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}

	path, err := s.Builder.FindArtifact(name)
	if err != nil {
		if !errors.Is(err, domain.ErrArtifactNotFound) {
			s.Logger.Error("Artifact lookup failed", "name", name, "err", err)
		}
		writeError(w, http.StatusNotFound, "APK file not found")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "APK file not found")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to download APK")
		return
	}

	base := filepath.Base(path)
	w.Header().Set("Content-Type", "application/vnd.android.package-archive")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base))
	http.ServeContent(w, r, base, info.ModTime(), f)
}

// GetManifest handles GET /api/manifest.
func (s *Server) GetManifest(w http.ResponseWriter, r *http.Request) {
	if s.Manifest == nil {
		writeError(w, http.StatusNotFound, "manifest store not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.Manifest.Get())
}

// PatchManifest handles PATCH /api/manifest with a deep-merge patch body.
func (s *Server) PatchManifest(w http.ResponseWriter, r *http.Request) {
	if s.Manifest == nil {
		writeError(w, http.StatusNotFound, "manifest store not configured")
		return
	}
	var patch map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, multipartOverhead)).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := s.Manifest.Update(patch)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, updated)
	case errors.Is(err, manifest.ErrInvalidManifest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, manifest.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.Logger.Error("Manifest update failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"busy":   s.Builder.Busy(),
	})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "liteforge-http",
		"version": strings.TrimSpace(liteforge.Version),
	})
}
