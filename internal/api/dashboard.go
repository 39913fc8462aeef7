package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/narastore/narastore/internal/dashboard"
	"github.com/narastore/narastore/internal/report"
	"github.com/narastore/narastore/internal/rfp"
	"github.com/narastore/narastore/internal/storage"
)

const workbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type dashboardResponse struct {
	Period   dashboard.Period          `json:"period"`
	Stats    dashboard.Stats           `json:"stats"`
	Activity []dashboard.ActivityPoint `json:"activity"`
}

// loadAll fetches every RFP and todo concurrently.
func loadAll(ctx context.Context, store *storage.Store) ([]rfp.RFP, []rfp.Todo, error) {
	var (
		rfps  []rfp.RFP
		todos []rfp.Todo
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rfps, err = store.ListRFPs(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		todos, err = store.ListTodos(ctx, storage.TodoFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return rfps, todos, nil
}

func handleDashboard(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period, err := dashboard.ParsePeriod(r.URL.Query().Get("period"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		rfps, todos, err := loadAll(r.Context(), deps.Store)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load dashboard data: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(dashboardResponse{
			Period:   period,
			Stats:    dashboard.ComputeStats(rfps, todos),
			Activity: dashboard.ActivitySeries(rfps, period, deps.now()),
		})
	}
}

func handleExportWorkbook(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rfps, todos, err := loadAll(r.Context(), deps.Store)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load export data: %v", err)
			return
		}

		var buf bytes.Buffer
		if err := report.WriteWorkbook(&buf, rfps, todos); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to write workbook: %v", err)
			return
		}
		w.Header().Set("Content-Type", workbookContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="narastore.xlsx"`)
		w.Write(buf.Bytes())
	}
}
