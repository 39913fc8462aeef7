package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/narastore/narastore/internal/rfp"
	"github.com/narastore/narastore/internal/storage"
)

type createTodoRequest struct {
	RFPID string `json:"rfpId"`
	Text  string `json:"text"`
}

// patchTodoRequest updates whichever fields are present.
type patchTodoRequest struct {
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
}

func todoFilter(r *http.Request) storage.TodoFilter {
	return storage.TodoFilter{RFPID: r.URL.Query().Get("rfp_id")}
}

func handleListTodos(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		todos, err := deps.Store.ListTodos(r.Context(), todoFilter(r))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list todos: %v", err)
			return
		}
		if todos == nil {
			todos = []rfp.Todo{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(todos)
	}
}

func handleCreateTodo(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createTodoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		req.Text = strings.TrimSpace(req.Text)
		if req.Text == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}
		if req.RFPID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "rfpId is required")
			return
		}

		id, err := deps.Store.CreateTodo(r.Context(), req.RFPID, req.Text)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create todo: %v", err)
			return
		}
		todo, err := deps.Store.GetTodo(r.Context(), id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read todo: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, todo)
	}
}

func handlePatchTodo(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req patchTodoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Text == nil && req.Completed == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one of text or completed is required")
			return
		}

		id := chi.URLParam(r, "id")
		if req.Text != nil {
			text := strings.TrimSpace(*req.Text)
			if text == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "text must not be empty")
				return
			}
			if err := deps.Store.UpdateTodoText(r.Context(), id, text); err != nil {
				todoError(w, err)
				return
			}
		}
		if req.Completed != nil {
			if err := deps.Store.SetTodoCompleted(r.Context(), id, *req.Completed); err != nil {
				todoError(w, err)
				return
			}
		}

		todo, err := deps.Store.GetTodo(r.Context(), id)
		if err != nil {
			todoError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(todo)
	}
}

func handleToggleTodo(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		completed, err := deps.Store.ToggleTodo(r.Context(), id)
		if err != nil {
			todoError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": id, "completed": completed})
	}
}

func handleDeleteTodo(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DeleteTodo(r.Context(), chi.URLParam(r, "id")); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete todo: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func todoError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "todo not found")
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "failed to update todo: %v", err)
}
