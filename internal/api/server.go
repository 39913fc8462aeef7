package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/narastore/narastore/internal/analysis"
	"github.com/narastore/narastore/internal/report"
	"github.com/narastore/narastore/internal/rfp"
	"github.com/narastore/narastore/internal/storage"
	"github.com/narastore/narastore/internal/workflow"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Exporter renders a PDF report on the analysis backend.
type Exporter interface {
	ExportReport(ctx context.Context, data *rfp.AnalysisResult) ([]byte, error)
}

// HealthReporter is implemented by analysis.Monitor.
type HealthReporter interface {
	Healthy() bool
	LastChecked() time.Time
}

type AppDeps struct {
	Store    *storage.Store
	Workflow *workflow.Workflow
	Exporter Exporter       // optional; if nil, ?source=backend reports are unavailable
	Health   HealthReporter // optional; if nil, /status reports the backend as unknown
	Renderer report.Renderer
	Token    string // if empty, the API is unauthenticated
	BaseURL  string
	Now      func() time.Time
	Logger   *slog.Logger
}

func (d AppDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d AppDeps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// NewAppHandler returns the dashboard API.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/status", handleStatus(deps))
		r.Delete("/status/error", handleClearError(deps))

		r.Get("/rfps", handleListRFPs(deps))
		r.Post("/rfps", handleUpload(deps))
		r.Get("/rfps/stream", handleStreamRFPs(deps))
		r.Get("/rfps/{id}", handleGetRFP(deps))
		r.Delete("/rfps/{id}", handleDeleteRFP(deps))
		r.Get("/rfps/{id}/report.pdf", handleReport(deps))
		r.Get("/rfps/{id}/matches", handleMatches(deps))

		r.Get("/todos", handleListTodos(deps))
		r.Post("/todos", handleCreateTodo(deps))
		r.Get("/todos/stream", handleStreamTodos(deps))
		r.Patch("/todos/{id}", handlePatchTodo(deps))
		r.Post("/todos/{id}/toggle", handleToggleTodo(deps))
		r.Delete("/todos/{id}", handleDeleteTodo(deps))

		r.Get("/personnel", handleListPersonnel(deps))
		r.Post("/personnel", handleCreatePersonnel(deps))
		r.Get("/personnel/stream", handleStreamPersonnel(deps))
		r.Get("/personnel/groups", handlePersonnelGroups(deps))
		r.Delete("/personnel/{id}", handleDeletePersonnel(deps))

		r.Get("/dashboard", handleDashboard(deps))
		r.Get("/export.xlsx", handleExportWorkbook(deps))
	})

	return r
}

// BearerAuth rejects requests whose Authorization header does not carry
// token. An empty token lets every request through.
func BearerAuth(token string) func(http.Handler) http.Handler {
	const prefix = "Bearer "
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, ok := strings.CutPrefix(r.Header.Get("Authorization"), prefix)
			if !ok || subtle.ConstantTimeCompare([]byte(auth), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type backendStatus struct {
	URL         string     `json:"url,omitempty"`
	Healthy     *bool      `json:"healthy"`
	LastChecked *time.Time `json:"lastChecked,omitempty"`
}

type statusResponse struct {
	Backend    backendStatus `json:"backend"`
	Busy       bool          `json:"busy"`
	InFlight   int           `json:"inFlight"`
	LastError  string        `json:"lastError,omitempty"`
	MockMode   bool          `json:"mockMode"`
	Ready      bool          `json:"ready"`
	ReadyError string        `json:"readyError,omitempty"`
	Store      string        `json:"store"`
}

func handleStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Backend:   backendStatus{URL: deps.BaseURL},
			Busy:      deps.Workflow.Busy(),
			InFlight:  deps.Workflow.InFlight(),
			LastError: deps.Workflow.LastError(),
			MockMode:  deps.Workflow.MockMode(),
			Ready:     true,
			Store:     "ok",
		}
		if err := deps.Workflow.Ready(); err != nil {
			resp.Ready = false
			resp.ReadyError = err.Error()
		}
		if deps.Health != nil {
			if checked := deps.Health.LastChecked(); !checked.IsZero() {
				healthy := deps.Health.Healthy()
				resp.Backend.Healthy = &healthy
				resp.Backend.LastChecked = &checked
			}
		}
		if err := deps.Store.Ping(r.Context()); err != nil {
			resp.Store = err.Error()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func handleClearError(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Workflow.ClearError()
		w.WriteHeader(http.StatusNoContent)
	}
}

// queryBool reports whether the named query parameter parses as true.
func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

var (
	_ Exporter       = (*analysis.Client)(nil)
	_ HealthReporter = (*analysis.Monitor)(nil)
)
