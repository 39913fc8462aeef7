package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/narastore/narastore/internal/analysis"
	"github.com/narastore/narastore/internal/report"
	"github.com/narastore/narastore/internal/rfp"
	"github.com/narastore/narastore/internal/staffing"
	"github.com/narastore/narastore/internal/storage"
	"github.com/narastore/narastore/internal/workflow"
)

const maxUploadSize = 50 << 20 // 50MB

// UploadRequest is the JSON form of an upload. FileContent is base64.
type UploadRequest struct {
	Filename    string `json:"filename"`
	FileContent string `json:"file_content"`
}

type uploadResponse struct {
	RFP     rfp.RFP  `json:"rfp"`
	TodoIDs []string `json:"todoIds,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type rfpDetail struct {
	rfp.RFP
	Todos []rfp.Todo `json:"todos"`
}

func handleListRFPs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rfps, err := deps.Store.ListRFPs(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list rfps: %v", err)
			return
		}
		if rfps == nil {
			rfps = []rfp.RFP{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rfps)
	}
}

func handleGetRFP(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, ok := loadRFP(w, r, deps)
		if !ok {
			return
		}
		todos, err := deps.Store.ListTodos(r.Context(), storage.TodoFilter{RFPID: record.ID})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list todos: %v", err)
			return
		}
		if todos == nil {
			todos = []rfp.Todo{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rfpDetail{RFP: record, Todos: todos})
	}
}

// loadRFP fetches the RFP named by the {id} route parameter, writing the
// error response itself when it cannot.
func loadRFP(w http.ResponseWriter, r *http.Request, deps AppDeps) (rfp.RFP, bool) {
	record, err := deps.Store.GetRFP(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "rfp not found")
		return rfp.RFP{}, false
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to get rfp: %v", err)
		return rfp.RFP{}, false
	}
	return record, true
}

func handleUpload(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		defer r.Body.Close()

		doc, err := readDocument(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		if queryBool(r, "wait") {
			// A client hanging up does not abort the analysis.
			out, err := deps.Workflow.Upload(context.WithoutCancel(r.Context()), doc)
			if err != nil {
				uploadError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(uploadResponse{RFP: out.RFP, TodoIDs: out.TodoIDs, Error: out.Error})
			return
		}

		record, err := deps.Workflow.Start(r.Context(), doc)
		if err != nil {
			uploadError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, uploadResponse{RFP: record})
	}
}

// readDocument accepts either a multipart form with a "file" part or an
// UploadRequest JSON body.
func readDocument(r *http.Request) (analysis.Document, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return analysis.Document{}, errors.New("invalid multipart body: " + err.Error())
		}
		defer r.MultipartForm.RemoveAll()

		f, hdr, err := r.FormFile("file")
		if err != nil {
			return analysis.Document{}, errors.New("file is required")
		}
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			return analysis.Document{}, errors.New("failed to read file: " + err.Error())
		}
		return analysis.Document{Filename: hdr.Filename, Content: content}, nil
	}

	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return analysis.Document{}, errors.New("invalid request body: " + err.Error())
	}
	content, err := base64.StdEncoding.DecodeString(req.FileContent)
	if err != nil {
		return analysis.Document{}, errors.New("invalid base64 file_content")
	}
	return analysis.Document{Filename: req.Filename, Content: content}, nil
}

func uploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrMissingCredential):
		httpError(w, http.StatusPreconditionFailed, "configuration_error", "%v", err)
	case errors.Is(err, workflow.ErrInvalidDocument):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "failed to start upload: %v", err)
	}
}

func handleDeleteRFP(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !queryBool(r, "confirm") {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "deleting an rfp removes its todos; repeat with ?confirm=true")
			return
		}

		id := chi.URLParam(r, "id")
		res, err := deps.Store.DeleteRFP(r.Context(), id)
		if err != nil {
			deps.logger().Error("rfp delete incomplete", "rfp_id", id, "todos_deleted", res.TodosDeleted, "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete rfp: %v", err)
			return
		}
		if !res.RFPDeleted && res.TodosDeleted == 0 {
			httpError(w, http.StatusNotFound, "not_found", "rfp not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":       "deleted",
			"todosDeleted": res.TodosDeleted,
		})
	}
}

func handleReport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, ok := loadRFP(w, r, deps)
		if !ok {
			return
		}

		source, err := reportSource(deps, r, record)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		var body []byte
		if source == "backend" {
			if deps.Exporter == nil {
				httpError(w, http.StatusNotImplemented, "configuration_error", "backend report export is not configured")
				return
			}
			if record.StructuredAnalysis == nil {
				httpError(w, http.StatusConflict, "invalid_request_error", "rfp has no structured analysis")
				return
			}
			b, err := deps.Exporter.ExportReport(r.Context(), record.StructuredAnalysis)
			if err != nil {
				httpError(w, http.StatusBadGateway, "api_error", "backend report export failed: %v", err)
				return
			}
			body = b
		} else {
			todos, err := deps.Store.ListTodos(r.Context(), storage.TodoFilter{RFPID: record.ID})
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to list todos: %v", err)
				return
			}
			var buf bytes.Buffer
			if err := deps.Renderer.RenderPDF(&buf, record, todos); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to render report: %v", err)
				return
			}
			body = buf.Bytes()
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": report.Filename(record.Title),
		}))
		w.Write(body)
	}
}

// reportSource picks where a report is rendered. Without an explicit
// ?source the backend is preferred when the local renderer has no Hangul
// font and the backend can export this record.
func reportSource(deps AppDeps, r *http.Request, record rfp.RFP) (string, error) {
	switch source := r.URL.Query().Get("source"); source {
	case "backend", "local":
		return source, nil
	case "":
		if !deps.Renderer.Unicode() && deps.Exporter != nil && record.StructuredAnalysis != nil {
			return "backend", nil
		}
		return "local", nil
	default:
		return "", fmt.Errorf("unknown report source %q (want local or backend)", source)
	}
}

func handleMatches(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, ok := loadRFP(w, r, deps)
		if !ok {
			return
		}
		personnel, err := deps.Store.ListPersonnel(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list personnel: %v", err)
			return
		}
		allocations := staffing.Allocate(record.StructuredAnalysis, personnel)
		if allocations == nil {
			allocations = []staffing.Allocation{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(allocations)
	}
}
