package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ggufctl/internal/catalog"
	"ggufctl/internal/convert"
	"ggufctl/internal/hub"
	"ggufctl/internal/pipeline"
	"ggufctl/internal/preflight"
	"ggufctl/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() ([]types.Model, error)
	Status() types.StatusResponse
	Submit(req types.ConvertRequest) (string, error)
	Jobs() []types.JobStatus
	Job(id string) (types.JobStatus, error)
	Ready() bool
}

// NewMux builds the HTTP handler: conversion job submission and inspection,
// artifact listing, the layer-recommendation lookup, health and metrics.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	r.Use(requestLogMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		models, err := svc.ListModels()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, types.ModelsResponse{Models: models})
	})

	r.Get("/catalog", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.CatalogResponse{Entries: catalog.Entries()})
	})

	r.Get("/layers", func(w http.ResponseWriter, r *http.Request) {
		size := strings.TrimSpace(r.URL.Query().Get("size"))
		model := strings.TrimSpace(r.URL.Query().Get("model"))
		ref := size
		if ref == "" {
			ref = catalog.Resolve(model)
		}
		if ref == "" {
			writeJSONError(w, http.StatusBadRequest, "size or model query parameter is required")
			return
		}
		writeJSON(w, types.LayersResponse{Size: ref, Layers: catalog.LayersForName(ref)})
	})

	r.Post("/convert", func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.ConvertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Model) == "" {
			writeJSONError(w, http.StatusBadRequest, "model is required")
			return
		}
		id, err := svc.Submit(req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(types.ConvertAccepted{JobID: id})
	})

	r.Get("/jobs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Jobs())
	})

	r.Get("/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		job, err := svc.Job(chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, job)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// writeServiceError maps well-known pipeline errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case pipeline.IsTooBusy(err):
		IncrementBackpressure("job_cap")
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
	case pipeline.IsJobNotFound(err), hub.IsRepoNotFound(err):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case preflight.IsPrequantized(err), convert.IsCannotMapTensor(err):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	case preflight.IsDependencyUnavailable(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		if he, ok := err.(HTTPError); ok {
			writeJSONError(w, he.StatusCode(), he.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
