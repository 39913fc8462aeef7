package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/narastore/narastore/internal/rfp"
)

func TestMain(m *testing.M) {
	// idle keep-alive connections to closed test servers wind down on their own
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

const metroData = `{
	"summary": {"project_name": "Metro System", "budget": "₩500,000,000", "period": "12개월",
		"expected_effects": ["faster trains"], "total_requirements_count": 3},
	"requirements": {"기능 요구사항": ["SFR-001", "SFR-002"], "보안 요구사항": ["SER-001"]},
	"strategy": {"win_strategy": ["price"], "references": []},
	"todo_list": ["Task A", "Task B"]
}`

func backend(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckHealth_Up(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			t.Errorf("path = %s, want /api/health", r.URL.Path)
		}
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	if !New(srv.URL+"/", Options{}).CheckHealth(context.Background()) {
		t.Error("CheckHealth() = false, want true")
	}
}

func TestCheckHealth_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	if New(srv.URL, Options{}).CheckHealth(context.Background()) {
		t.Error("CheckHealth() = true, want false")
	}
}

func TestCheckHealth_ServerError(t *testing.T) {
	srv := backend(t, http.StatusServiceUnavailable, "")
	if New(srv.URL, Options{}).CheckHealth(context.Background()) {
		t.Error("CheckHealth() = true for 503, want false")
	}
}

func TestAnalyze_Success(t *testing.T) {
	var got analyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/analyze" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(`{"success": true, "data": ` + metroData + `}`))
	}))
	defer srv.Close()

	res := New(srv.URL, Options{}).Analyze(context.Background(),
		Document{Filename: "proposal.pdf", Content: []byte("%PDF-1.4 body")}, "key-123")

	if !res.Success || res.Error != "" {
		t.Fatalf("result = %+v, want success", res)
	}
	if got.Filename != "proposal.pdf" || got.APIKey != "key-123" {
		t.Errorf("request = %+v", got)
	}
	raw, err := base64.StdEncoding.DecodeString(got.FileContent)
	if err != nil || string(raw) != "%PDF-1.4 body" {
		t.Errorf("file_content = %q, want plain base64 of the file", got.FileContent)
	}

	if res.Data.Summary.ProjectName != "Metro System" {
		t.Errorf("project_name = %q", res.Data.Summary.ProjectName)
	}
	want := rfp.Requirements{
		{Category: "기능 요구사항", Items: []string{"SFR-001", "SFR-002"}},
		{Category: "보안 요구사항", Items: []string{"SER-001"}},
	}
	if len(res.Data.Requirements) != 2 || res.Data.Requirements[0].Category != want[0].Category ||
		res.Data.Requirements[1].Category != want[1].Category {
		t.Errorf("requirements = %+v, want %+v", res.Data.Requirements, want)
	}
	if len(res.Data.TodoList) != 2 {
		t.Errorf("todo_list = %v", res.Data.TodoList)
	}
}

func TestAnalyze_ListShapedRequirements(t *testing.T) {
	srv := backend(t, http.StatusOK, `{"success": true, "data": {
		"summary": {"project_name": "P"},
		"requirements": [{"category": "성능", "items": ["PER-001"]}]
	}}`)

	res := New(srv.URL, Options{}).Analyze(context.Background(), Document{Filename: "a.pdf"}, "k")
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Data.Requirements) != 1 || res.Data.Requirements[0].Items[0] != "PER-001" {
		t.Errorf("requirements = %+v", res.Data.Requirements)
	}
}

func TestAnalyze_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"backend error", http.StatusOK, `{"success": false, "error": "invalid key"}`, "invalid key"},
		{"error without message", http.StatusOK, `{"success": false}`, DefaultErrorMessage},
		{"success without data", http.StatusOK, `{"success": true}`, "without data"},
		{"null data", http.StatusOK, `{"success": true, "data": null}`, "without data"},
		{"non-2xx", http.StatusBadRequest, `{"detail": "API Key가 필요합니다"}`, "status 400"},
		{"not json", http.StatusOK, `<html>oops</html>`, "decoding"},
		{"schema violation", http.StatusOK, `{"success": true, "data": {"summary": {"project_name": 7}}}`, "invalid analysis data"},
		{"missing summary", http.StatusOK, `{"success": true, "data": {"todo_list": []}}`, "invalid analysis data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := backend(t, tt.status, tt.body)
			res := New(srv.URL, Options{}).Analyze(context.Background(), Document{Filename: "a.pdf"}, "k")
			if res.Success {
				t.Fatal("Success = true, want false")
			}
			if res.Data != nil {
				t.Error("Data should be nil on failure")
			}
			if !strings.Contains(res.Error, tt.wantErr) {
				t.Errorf("Error = %q, want it to contain %q", res.Error, tt.wantErr)
			}
		})
	}
}

func TestAnalyze_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	res := New(srv.URL, Options{}).Analyze(context.Background(), Document{Filename: "a.pdf"}, "k")
	if res.Success {
		t.Fatal("Success = true, want false")
	}
	if res.Error == "" {
		t.Error("Error is empty, want a message")
	}
}

func TestAnalyze_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	res := New(srv.URL, Options{Timeout: 50 * time.Millisecond}).
		Analyze(context.Background(), Document{Filename: "a.pdf"}, "k")
	if res.Success || res.Error == "" {
		t.Errorf("result = %+v, want a timeout failure", res)
	}
}

func TestExportReport(t *testing.T) {
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/report" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7 report"))
	}))
	defer srv.Close()

	data := &rfp.AnalysisResult{Summary: rfp.Summary{ProjectName: "Metro System"}}
	pdf, err := New(srv.URL, Options{}).ExportReport(context.Background(), data)
	if err != nil {
		t.Fatalf("ExportReport: %v", err)
	}
	if string(pdf) != "%PDF-1.7 report" {
		t.Errorf("pdf = %q", pdf)
	}
	if _, ok := got["analysis_data"]; !ok {
		t.Errorf("request body = %v, want analysis_data", got)
	}
}

func TestExportReport_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error": "no"}`))
	}))
	defer srv.Close()
	c := New(srv.URL, Options{})

	if _, err := c.ExportReport(context.Background(), nil); err == nil {
		t.Error("expected error for nil analysis")
	}
	if _, err := c.ExportReport(context.Background(), &rfp.AnalysisResult{}); err == nil {
		t.Error("expected error for non-pdf response")
	}
}

type fakeChecker struct {
	up    atomic.Bool
	calls atomic.Int32
}

func (f *fakeChecker) CheckHealth(context.Context) bool {
	f.calls.Add(1)
	return f.up.Load()
}

func TestMonitor_CheckOnce(t *testing.T) {
	fc := &fakeChecker{}
	m := NewMonitor(fc, 0)
	if m.interval != DefaultHealthInterval {
		t.Errorf("interval = %v, want %v", m.interval, DefaultHealthInterval)
	}
	if m.Healthy() || !m.LastChecked().IsZero() {
		t.Fatal("monitor should start unhealthy and unchecked")
	}

	fc.up.Store(true)
	if !m.CheckOnce(context.Background()) || !m.Healthy() {
		t.Error("expected healthy after a successful probe")
	}
	if m.LastChecked().IsZero() {
		t.Error("LastChecked not recorded")
	}

	fc.up.Store(false)
	m.CheckOnce(context.Background())
	if m.Healthy() {
		t.Error("expected unhealthy after a failed probe")
	}
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	fc := &fakeChecker{}
	fc.up.Store(true)
	m := NewMonitor(fc, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for fc.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("monitor did not poll repeatedly")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !m.Healthy() {
		t.Error("expected healthy")
	}
}
