package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mlxd/internal/manager"
	"mlxd/internal/prompts"
	"mlxd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListArtifacts() []types.Artifact
	Convert(ctx context.Context, req types.ConvertRequest) (types.ConvertResponse, error)
	Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error
	ExportArchive(ctx context.Context, name string, w io.Writer) error
	ImportArchive(ctx context.Context, r io.Reader) (types.Artifact, error)
	Status() types.StatusResponse
	Ready() bool
	UnloadRuntimes() int
}

// NewMux builds the chi router serving the control panel, the JSON API
// and the operational endpoints. promptsFile may be empty.
func NewMux(svc Service, promptsFile string) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", "X-Log-Level"},
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/", serveIndex)

	r.Get("/api/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ArtifactsResponse{Artifacts: svc.ListArtifacts()}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Get("/api/prompts", func(w http.ResponseWriter, r *http.Request) {
		list, err := prompts.Load(promptsFile)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to read prompts file")
			return
		}
		if list == nil {
			list = []types.Prompt{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.PromptsResponse{Prompts: list}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Post("/api/convert", func(w http.ResponseWriter, r *http.Request) {
		var req types.ConvertRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		lvl := requestLogLevel(r)
		start := time.Now()
		logInfo(r, lvl, func(z *zerolog.Event) { z.Str("model", req.Model).Msg("convert start") })

		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		resp, err := svc.Convert(joinedCtx, req)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := statusForError(err)
			if status == http.StatusTooManyRequests {
				IncrementBackpressure("convert")
			}
			writeJSONError(w, status, err.Error())
			logInfo(r, lvl, func(z *zerolog.Event) {
				z.Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("convert end")
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
		logInfo(r, lvl, func(z *zerolog.Event) {
			z.Int("status", http.StatusOK).Dur("dur", time.Since(start)).Msg("convert end")
		})
	})

	r.Post("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req types.GenerateRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		// Stream NDJSON tokens from the manager.
		w.Header().Set("Content-Type", "application/x-ndjson")
		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		lvl := requestLogLevel(r)
		start := time.Now()
		writer := io.Writer(w)
		if lvl >= LevelDebug {
			writer = io.MultiWriter(w, &loggingLineWriter{})
		}
		logInfo(r, lvl, func(z *zerolog.Event) {
			z.Str("model", req.Model).Str("model_path", req.ModelPath).Msg("generate start")
		})

		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if err := svc.Generate(joinedCtx, req, writer, flush); err != nil {
			// If context was canceled (client disconnect / shutdown), just return.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := statusForError(err)
			if status == http.StatusTooManyRequests {
				IncrementBackpressure("generate")
			}
			writeJSONError(w, status, err.Error())
			logInfo(r, lvl, func(z *zerolog.Event) {
				z.Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("generate end")
			})
			return
		}
		logInfo(r, lvl, func(z *zerolog.Event) {
			z.Int("status", http.StatusOK).Dur("dur", time.Since(start)).Msg("generate end")
		})
	})

	r.Get("/api/models/{name}/archive", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.zip"`)
		cw := &countingWriter{w: w}
		if err := svc.ExportArchive(joinedCtx, name, cw); err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			if cw.n == 0 {
				writeJSONError(w, statusForError(err), err.Error())
				return
			}
			// Body already started; the truncated zip is the signal.
			if zlog != nil {
				zlog.Warn().Err(err).Str("model", name).Msg("archive export aborted mid-stream")
			}
		}
	})

	r.Post("/api/models/import", func(w http.ResponseWriter, r *http.Request) {
		upload, err := archiveUpload(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		defer upload.Close()
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		art, err := svc.ImportArchive(joinedCtx, upload)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(art); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Delete("/api/runtimes", func(w http.ResponseWriter, r *http.Request) {
		n := svc.UnloadRuntimes()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"unloaded": n})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// countingWriter tracks whether any bytes reached the client, which
// decides between a JSON error and an aborted stream.
type countingWriter struct {
	w http.ResponseWriter
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// archiveUpload extracts the zip stream from an import request: either
// the "file" part of a multipart form or a raw application/zip body.
func archiveUpload(r *http.Request) (io.ReadCloser, error) {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.HasPrefix(ct, "multipart/form-data") {
		mr, err := r.MultipartReader()
		if err != nil {
			return nil, fmt.Errorf("invalid multipart body: %w", err)
		}
		for {
			part, err := mr.NextPart()
			if err != nil {
				return nil, fmt.Errorf("multipart body has no file part")
			}
			if part.FormName() == "file" {
				return part, nil
			}
		}
	}
	if strings.HasPrefix(ct, "application/zip") || strings.HasPrefix(ct, "application/octet-stream") {
		return r.Body, nil
	}
	return nil, fmt.Errorf("Content-Type must be multipart/form-data or application/zip")
}

// decodeJSONBody enforces the JSON content type and body limit, then
// decodes into dst. A false return means an error was already written.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// statusForError maps manager errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case manager.IsInvalidRequest(err):
		return http.StatusBadRequest
	case manager.IsModelNotFound(err):
		return http.StatusNotFound
	case manager.IsAlreadyExists(err):
		return http.StatusConflict
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests
	case manager.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	case manager.IsDiskSpace(err):
		return http.StatusInsufficientStorage
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}
