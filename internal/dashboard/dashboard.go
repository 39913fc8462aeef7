// Package dashboard computes the summary numbers and activity chart shown on
// the dashboard. Everything here is a pure function of its inputs.
package dashboard

import (
	"fmt"
	"strconv"
	"time"

	"github.com/narastore/narastore/internal/rfp"
)

// Stats counts RFPs by status and reports the todo completion ratio.
type Stats struct {
	TotalRFPs          int     `json:"totalRFPs"`
	CompletedCount     int     `json:"completedCount"`
	PendingCount       int     `json:"pendingCount"`
	ErrorCount         int     `json:"errorCount"`
	TotalTodos         int     `json:"totalTodos"`
	CompletedTodos     int     `json:"completedTodos"`
	TodoCompletionRate float64 `json:"todoCompletionRate"`
}

// ComputeStats aggregates rfps and todos. The completion rate is 0 when
// there are no todos.
func ComputeStats(rfps []rfp.RFP, todos []rfp.Todo) Stats {
	s := Stats{TotalRFPs: len(rfps), TotalTodos: len(todos)}
	for _, r := range rfps {
		switch r.Status {
		case rfp.StatusCompleted:
			s.CompletedCount++
		case rfp.StatusPending:
			s.PendingCount++
		case rfp.StatusError:
			s.ErrorCount++
		}
	}
	for _, t := range todos {
		if t.Completed {
			s.CompletedTodos++
		}
	}
	if s.TotalTodos > 0 {
		s.TodoCompletionRate = float64(s.CompletedTodos) / float64(s.TotalTodos)
	}
	return s
}

// Period selects the activity chart window.
type Period string

const (
	Period7Days  Period = "7days"
	Period1Month Period = "1month"
	Period1Year  Period = "1year"
)

// ParsePeriod validates a period name. An empty string means Period7Days.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return Period7Days, nil
	case Period7Days, Period1Month, Period1Year:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q (want 7days, 1month or 1year)", s)
}

// ActivityPoint is one chart bucket.
type ActivityPoint struct {
	// Key is the bucket's analysisDate prefix: YYYY-MM-DD or YYYY-MM.
	Key   string `json:"key"`
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ActivitySeries buckets rfps by analysisDate into the window ending at now:
// 7 or 30 daily buckets, or 12 monthly ones. Buckets are oldest first and
// zero-filled; dates outside the window are ignored.
func ActivitySeries(rfps []rfp.RFP, period Period, now time.Time) []ActivityPoint {
	var points []ActivityPoint
	switch period {
	case Period1Month:
		points = dailyBuckets(now, 30, "01/02")
	case Period1Year:
		points = monthlyBuckets(now, 12)
	default:
		points = dailyBuckets(now, 7, "1/2")
	}

	index := make(map[string]int, len(points))
	for i, p := range points {
		index[p.Key] = i
	}
	keyLen := len(rfp.DateLayout)
	if period == Period1Year {
		keyLen = len("2006-01")
	}

	for _, r := range rfps {
		if len(r.AnalysisDate) < keyLen {
			continue
		}
		if i, ok := index[r.AnalysisDate[:keyLen]]; ok {
			points[i].Count++
		}
	}
	return points
}

func dailyBuckets(now time.Time, n int, label string) []ActivityPoint {
	y, m, d := now.Date()
	points := make([]ActivityPoint, n)
	for i := range points {
		day := time.Date(y, m, d-(n-1-i), 0, 0, 0, 0, now.Location())
		points[i] = ActivityPoint{Key: day.Format(rfp.DateLayout), Date: day.Format(label)}
	}
	return points
}

func monthlyBuckets(now time.Time, n int) []ActivityPoint {
	// Anchor on the first of the month so stepping back never overflows
	// into the following month.
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	points := make([]ActivityPoint, n)
	for i := range points {
		month := first.AddDate(0, -(n - 1 - i), 0)
		points[i] = ActivityPoint{
			Key:  month.Format("2006-01"),
			Date: strconv.Itoa(month.Year()) + "년 " + strconv.Itoa(int(month.Month())) + "월",
		}
	}
	return points
}
