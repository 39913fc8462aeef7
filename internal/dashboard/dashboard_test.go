package dashboard

import (
	"slices"
	"testing"
	"time"

	"github.com/narastore/narastore/internal/rfp"
)

var now = time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)

func rfpOn(date string, status rfp.Status) rfp.RFP {
	return rfp.RFP{Title: "x", AnalysisDate: date, Status: status}
}

func TestComputeStats(t *testing.T) {
	rfps := []rfp.RFP{
		rfpOn("2026-10-14", rfp.StatusCompleted),
		rfpOn("2026-10-14", rfp.StatusCompleted),
		rfpOn("2026-10-13", rfp.StatusPending),
		rfpOn("2026-10-12", rfp.StatusError),
	}
	todos := []rfp.Todo{{Completed: true}, {Completed: false}, {Completed: true}, {Completed: true}}

	got := ComputeStats(rfps, todos)
	want := Stats{
		TotalRFPs: 4, CompletedCount: 2, PendingCount: 1, ErrorCount: 1,
		TotalTodos: 4, CompletedTodos: 3, TodoCompletionRate: 0.75,
	}
	if got != want {
		t.Errorf("ComputeStats = %+v, want %+v", got, want)
	}
}

func TestComputeStats_NoTodos(t *testing.T) {
	got := ComputeStats([]rfp.RFP{rfpOn("2026-10-14", rfp.StatusCompleted)}, nil)
	if got.TodoCompletionRate != 0 {
		t.Errorf("TodoCompletionRate = %v, want 0", got.TodoCompletionRate)
	}
	if got := ComputeStats(nil, []rfp.Todo{}); got.TodoCompletionRate != 0 || got.TotalRFPs != 0 {
		t.Errorf("empty stats = %+v", got)
	}
}

func TestActivitySeries_SevenDays(t *testing.T) {
	for _, n := range []int{0, 1, 50} {
		rfps := make([]rfp.RFP, n)
		for i := range rfps {
			rfps[i] = rfpOn("2026-10-14", rfp.StatusCompleted)
		}
		got := ActivitySeries(rfps, Period7Days, now)
		if len(got) != 7 {
			t.Fatalf("%d rfps: got %d buckets, want 7", n, len(got))
		}
		if got[6].Count != n {
			t.Errorf("%d rfps: today bucket = %d", n, got[6].Count)
		}
		for _, p := range got[:6] {
			if p.Count != 0 {
				t.Errorf("%d rfps: bucket %s = %d, want zero-filled", n, p.Key, p.Count)
			}
		}
	}
}

func TestActivitySeries_SevenDayLabels(t *testing.T) {
	got := ActivitySeries([]rfp.RFP{
		rfpOn("2026-10-08", rfp.StatusPending),
		rfpOn("2026-10-07", rfp.StatusPending), // outside the window
		rfpOn("2026-10-10", rfp.StatusError),
		rfpOn("2026-10-10", rfp.StatusCompleted),
	}, Period7Days, now)

	var labels []string
	var counts []int
	for _, p := range got {
		labels = append(labels, p.Date)
		counts = append(counts, p.Count)
	}
	wantLabels := []string{"10/8", "10/9", "10/10", "10/11", "10/12", "10/13", "10/14"}
	if !slices.Equal(labels, wantLabels) {
		t.Errorf("labels = %v, want %v", labels, wantLabels)
	}
	if want := []int{1, 0, 2, 0, 0, 0, 0}; !slices.Equal(counts, want) {
		t.Errorf("counts = %v, want %v", counts, want)
	}
}

func TestActivitySeries_OneMonth(t *testing.T) {
	got := ActivitySeries([]rfp.RFP{rfpOn("2026-09-15", rfp.StatusCompleted)}, Period1Month, now)
	if len(got) != 30 {
		t.Fatalf("got %d buckets, want 30", len(got))
	}
	if got[0].Date != "09/15" || got[29].Date != "10/14" {
		t.Errorf("range = %s..%s, want 09/15..10/14", got[0].Date, got[29].Date)
	}
	if got[0].Count != 1 {
		t.Errorf("first bucket = %d, want 1", got[0].Count)
	}
}

func TestActivitySeries_OneYear(t *testing.T) {
	got := ActivitySeries([]rfp.RFP{
		rfpOn("2026-10-01", rfp.StatusCompleted),
		rfpOn("2026-10-14", rfp.StatusCompleted),
		rfpOn("2025-11-30", rfp.StatusCompleted),
		rfpOn("2025-10-31", rfp.StatusCompleted), // thirteen months back
		rfpOn("bad", rfp.StatusCompleted),
	}, Period1Year, now)

	if len(got) != 12 {
		t.Fatalf("got %d buckets, want 12", len(got))
	}
	if got[0].Date != "2025년 11월" || got[11].Date != "2026년 10월" {
		t.Errorf("range = %s..%s", got[0].Date, got[11].Date)
	}
	if got[0].Count != 1 || got[11].Count != 2 {
		t.Errorf("counts = %d, %d; want 1, 2", got[0].Count, got[11].Count)
	}
}

func TestActivitySeries_MonthEndDoesNotDuplicate(t *testing.T) {
	endOfMonth := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	got := ActivitySeries(nil, Period1Year, endOfMonth)
	seen := make(map[string]bool)
	for _, p := range got {
		if seen[p.Key] {
			t.Fatalf("duplicate bucket %s", p.Key)
		}
		seen[p.Key] = true
	}
	if got[10].Key != "2026-02" {
		t.Errorf("bucket 10 = %s, want 2026-02", got[10].Key)
	}
}

func TestActivitySeries_DeterministicAndPure(t *testing.T) {
	rfps := []rfp.RFP{rfpOn("2026-10-13", rfp.StatusCompleted), rfpOn("2026-10-14", rfp.StatusError)}
	before := slices.Clone(rfps)

	a := ActivitySeries(rfps, Period7Days, now)
	b := ActivitySeries(rfps, Period7Days, now)
	if !slices.Equal(a, b) {
		t.Errorf("outputs differ: %v vs %v", a, b)
	}
	for i := range rfps {
		if rfps[i].AnalysisDate != before[i].AnalysisDate || rfps[i].Status != before[i].Status {
			t.Errorf("input %d mutated", i)
		}
	}
}

func TestParsePeriod(t *testing.T) {
	tests := map[string]Period{"": Period7Days, "7days": Period7Days, "1month": Period1Month, "1year": Period1Year}
	for in, want := range tests {
		got, err := ParsePeriod(in)
		if err != nil || got != want {
			t.Errorf("ParsePeriod(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParsePeriod("week"); err == nil {
		t.Error("expected error for unknown period")
	}
}
