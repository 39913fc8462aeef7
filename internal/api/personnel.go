package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/narastore/narastore/internal/rfp"
	"github.com/narastore/narastore/internal/staffing"
)

type createPersonnelRequest struct {
	Name       string       `json:"name"`
	Position   rfp.Position `json:"position"`
	Role       string       `json:"role"`
	Experience int          `json:"experience"`
	TechStack  []string     `json:"techStack"`
}

func handleListPersonnel(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		personnel, err := deps.Store.ListPersonnel(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list personnel: %v", err)
			return
		}
		personnel = staffing.Search(personnel, r.URL.Query().Get("q"))
		if personnel == nil {
			personnel = []rfp.Personnel{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(personnel)
	}
}

func handlePersonnelGroups(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		personnel, err := deps.Store.ListPersonnel(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list personnel: %v", err)
			return
		}
		groups := staffing.GroupByPosition(personnel)
		if groups == nil {
			groups = []staffing.PositionGroup{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(groups)
	}
}

func handleCreatePersonnel(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createPersonnelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		p, err := rfp.NewPersonnel(req.Name, req.Position, req.Role, req.Experience, req.TechStack)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		id, err := deps.Store.CreatePersonnel(r.Context(), p)
		if errors.Is(err, rfp.ErrInvalidPersonnel) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create personnel: %v", err)
			return
		}
		p.ID = id
		p.RegisteredAt = deps.now()
		writeJSON(w, http.StatusCreated, p)
	}
}

func handleDeletePersonnel(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !queryBool(r, "confirm") {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "repeat with ?confirm=true to delete")
			return
		}
		if err := deps.Store.DeletePersonnel(r.Context(), chi.URLParam(r, "id")); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete personnel: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}
