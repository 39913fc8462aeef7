// Package workflow drives one uploaded document from a pending RFP record
// through analysis to a settled completed or error state.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/narastore/narastore/internal/analysis"
	"github.com/narastore/narastore/internal/docinfo"
	"github.com/narastore/narastore/internal/rfp"
	"github.com/narastore/narastore/internal/storage"
)

var (
	// ErrMissingCredential is returned before any write when no analysis
	// credential is configured and mock mode is off.
	ErrMissingCredential = errors.New("analysis API key is not configured")

	// ErrInvalidDocument is returned for an upload without a filename.
	ErrInvalidDocument = errors.New("document filename is required")
)

const (
	// CompletedMarker is the legacy analysis text written on success.
	CompletedMarker = "분석 완료 (상세 리포트 확인 가능)"

	// GenericFailureMessage is reported when the store fails mid-workflow.
	GenericFailureMessage = "처리 중 오류가 발생했습니다."
)

// FallbackTodos seed the to-do list when the analysis suggests none.
var FallbackTodos = []string{
	"제안요청서(RFP) 정독 및 핵심 요구사항 파악",
	"제안팀 구성 및 역할 분담",
	"제안 목차 및 스토리보드 작성",
	"최종 제안서 리뷰 및 제출",
}

// Store is the subset of storage.Store the workflow writes through.
type Store interface {
	CreateRFP(ctx context.Context, r rfp.RFP) (string, error)
	UpdateRFP(ctx context.Context, id string, u storage.RFPUpdate) error
	CreateTodos(ctx context.Context, rfpID string, texts []string) ([]string, error)
}

// Analyzer is implemented by analysis.Client.
type Analyzer interface {
	Analyze(ctx context.Context, doc analysis.Document, apiKey string) analysis.Result
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Options configures a Workflow.
type Options struct {
	APIKey string
	// MockMode lets uploads proceed with an empty APIKey.
	MockMode bool
	Clock    Clock
	Logger   *slog.Logger
}

// Outcome is the settled state of one upload.
type Outcome struct {
	RFP     rfp.RFP
	TodoIDs []string
	// Error is the user-facing message when the upload did not complete.
	Error string
}

// OK reports whether the RFP settled as completed with its todos seeded.
func (o Outcome) OK() bool {
	return o.Error == "" && o.RFP.Status == rfp.StatusCompleted
}

// Workflow runs uploads. It is safe for concurrent use; uploads never share
// an RFP record.
type Workflow struct {
	store    Store
	analyzer Analyzer
	apiKey   string
	mock     bool
	clock    Clock
	logger   *slog.Logger

	inFlight atomic.Int64
	wg       sync.WaitGroup

	mu      sync.Mutex
	lastErr string
}

// New creates a Workflow.
func New(store Store, analyzer Analyzer, opts Options) *Workflow {
	w := &Workflow{
		store:    store,
		analyzer: analyzer,
		apiKey:   opts.APIKey,
		mock:     opts.MockMode,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
	if w.clock == nil {
		w.clock = realClock{}
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Ready reports whether uploads would pass the credential guard.
func (w *Workflow) Ready() error {
	if w.apiKey == "" && !w.mock {
		return ErrMissingCredential
	}
	return nil
}

// MockMode reports whether uploads proceed without a credential.
func (w *Workflow) MockMode() bool { return w.mock }

// Begin creates the pending RFP for doc and returns a local copy of it. The
// copy is never read back from the store.
func (w *Workflow) Begin(ctx context.Context, doc analysis.Document) (rfp.RFP, error) {
	if err := w.Ready(); err != nil {
		return rfp.RFP{}, err
	}
	if strings.TrimSpace(doc.Filename) == "" {
		return rfp.RFP{}, ErrInvalidDocument
	}
	w.ClearError()

	info, err := docinfo.Inspect(doc.Filename, doc.Content)
	if err != nil {
		w.logger.Warn("could not inspect document", "filename", doc.Filename, "error", err)
	}
	w.logger.Info("upload received", "filename", doc.Filename, "bytes", info.Size, "pages", info.Pages)

	// Calendar day in the clock's zone, the same day the dashboard buckets by.
	now := w.clock.Now()
	record := rfp.RFP{
		Title:        doc.Filename,
		AnalysisDate: now.Format(rfp.DateLayout),
		Status:       rfp.StatusPending,
		PageCount:    info.Pages,
		SizeBytes:    info.Size,
	}
	id, err := w.store.CreateRFP(ctx, record)
	if err != nil {
		return rfp.RFP{}, fmt.Errorf("creating rfp record: %w", err)
	}
	record.ID = id
	record.CreatedAt = now
	return record, nil
}

// Complete analyzes doc and settles record. Every failure is folded into the
// returned Outcome and the transient error slot.
func (w *Workflow) Complete(ctx context.Context, record rfp.RFP, doc analysis.Document) (out Outcome) {
	start := w.clock.Now()
	out.RFP = record

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("upload workflow panicked", "rfp_id", record.ID, "panic", r)
			out = w.fail(ctx, out, fmt.Errorf("panic: %v", r))
		}
		w.logger.Info("analysis settled",
			"rfp_id", record.ID,
			"status", out.RFP.Status,
			"duration_ms", w.clock.Now().Sub(start).Milliseconds(),
			"todos", len(out.TodoIDs),
		)
	}()

	res := w.analyzer.Analyze(ctx, doc, w.apiKey)

	var err error
	if res.Success && res.Data != nil {
		out, err = w.settleSuccess(ctx, out, res.Data)
	} else {
		out, err = w.settleFailure(ctx, out, res.Error)
	}
	if err != nil {
		out = w.fail(ctx, out, err)
	}
	return out
}

func (w *Workflow) settleSuccess(ctx context.Context, out Outcome, data *rfp.AnalysisResult) (Outcome, error) {
	status := rfp.StatusCompleted
	summary := fmt.Sprintf("[프로젝트] %s\n[예산] %s", data.Summary.ProjectName, data.Summary.Budget)
	marker := CompletedMarker

	err := w.store.UpdateRFP(ctx, out.RFP.ID, storage.RFPUpdate{
		Status:             &status,
		StructuredAnalysis: data,
		Summary:            &summary,
		Analysis:           &marker,
	})
	if err != nil {
		return out, fmt.Errorf("recording analysis: %w", err)
	}
	out.RFP.Status = status
	out.RFP.StructuredAnalysis = data
	out.RFP.Summary = summary
	out.RFP.Analysis = marker

	texts := data.TodoList
	if len(texts) == 0 {
		texts = FallbackTodos
	}
	ids, err := w.store.CreateTodos(ctx, out.RFP.ID, texts)
	if err != nil {
		return out, fmt.Errorf("seeding todos: %w", err)
	}
	out.TodoIDs = ids
	return out, nil
}

func (w *Workflow) settleFailure(ctx context.Context, out Outcome, msg string) (Outcome, error) {
	if msg == "" {
		msg = analysis.DefaultErrorMessage
	}
	out.Error = msg
	w.setLastError(msg)

	status := rfp.StatusError
	text := "[오류] " + msg
	if err := w.store.UpdateRFP(ctx, out.RFP.ID, storage.RFPUpdate{Status: &status, Analysis: &text}); err != nil {
		return out, fmt.Errorf("recording analysis failure: %w", err)
	}
	out.RFP.Status = status
	out.RFP.Analysis = text
	return out, nil
}

// fail handles a store error anywhere in the sequence: it tries to mark the
// RFP as error and reports the generic message. A record that already
// settled keeps its status.
func (w *Workflow) fail(ctx context.Context, out Outcome, cause error) Outcome {
	w.logger.Error("upload workflow failed", "rfp_id", out.RFP.ID, "error", cause)

	if out.RFP.Status == rfp.StatusPending || out.RFP.Status == "" {
		status := rfp.StatusError
		text := "[오류] " + GenericFailureMessage
		if err := w.store.UpdateRFP(ctx, out.RFP.ID, storage.RFPUpdate{Status: &status, Analysis: &text}); err != nil {
			w.logger.Error("could not mark rfp as error", "rfp_id", out.RFP.ID, "error", err)
		} else {
			out.RFP.Status = status
			out.RFP.Analysis = text
		}
	}
	out.Error = GenericFailureMessage
	w.setLastError(GenericFailureMessage)
	return out
}

// Upload runs the whole workflow synchronously.
func (w *Workflow) Upload(ctx context.Context, doc analysis.Document) (Outcome, error) {
	w.wg.Add(1)
	defer w.wg.Done()
	w.inFlight.Add(1)
	defer w.inFlight.Add(-1)

	record, err := w.Begin(ctx, doc)
	if err != nil {
		return Outcome{}, err
	}
	return w.Complete(ctx, record, doc), nil
}

// Start creates the pending record and finishes the analysis in the
// background. Cancelling ctx after Start returns does not abort the
// analysis.
func (w *Workflow) Start(ctx context.Context, doc analysis.Document) (rfp.RFP, error) {
	w.wg.Add(1)
	w.inFlight.Add(1)
	record, err := w.Begin(ctx, doc)
	if err != nil {
		w.inFlight.Add(-1)
		w.wg.Done()
		return rfp.RFP{}, err
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		defer w.wg.Done()
		defer w.inFlight.Add(-1)
		w.Complete(bg, record, doc)
	}()
	return record, nil
}

// Wait blocks until every upload, synchronous or started with Start, has
// settled.
func (w *Workflow) Wait() {
	w.wg.Wait()
}

// Busy reports whether any upload is in progress.
func (w *Workflow) Busy() bool { return w.inFlight.Load() > 0 }

// InFlight returns the number of uploads in progress.
func (w *Workflow) InFlight() int { return int(w.inFlight.Load()) }

// LastError returns the most recent failure message, or "".
func (w *Workflow) LastError() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// ClearError empties the transient error slot.
func (w *Workflow) ClearError() {
	w.setLastError("")
}

func (w *Workflow) setLastError(msg string) {
	w.mu.Lock()
	w.lastErr = msg
	w.mu.Unlock()
}
