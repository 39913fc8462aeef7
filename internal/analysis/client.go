// Package analysis talks to the external RFP analysis backend.
package analysis

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/qri-io/jsonschema"

	"github.com/narastore/narastore/internal/rfp"
)

// DefaultErrorMessage is reported when the backend fails without saying why.
const DefaultErrorMessage = "분석 중 오류가 발생했습니다."

// DefaultTimeout bounds a single analysis call. Large documents routinely
// take several minutes.
const DefaultTimeout = 10 * time.Minute

//go:embed schema.json
var schemaJSON []byte

var responseSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal(schemaJSON, rs); err != nil {
		return nil, fmt.Errorf("compiling analysis schema: %w", err)
	}
	return rs, nil
})

// Document is an uploaded file.
type Document struct {
	Filename string
	Content  []byte
}

// Result is the outcome of Analyze. Error is non-empty whenever Success is
// false.
type Result struct {
	Success bool
	Data    *rfp.AnalysisResult
	Error   string
}

// Options configures a Client.
type Options struct {
	// Timeout for Analyze and ExportReport. Defaults to DefaultTimeout.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client communicates with the analysis backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// New creates a Client targeting the given backend base URL.
func New(baseURL string, opts Options) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: opts.HTTPClient,
		timeout:    opts.Timeout,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

// BaseURL returns the backend address without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// CheckHealth returns true if the backend responds to GET /api/health with
// a 2xx status within two seconds.
func (c *Client) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

type analyzeRequest struct {
	Filename    string `json:"filename"`
	FileContent string `json:"file_content"`
	APIKey      string `json:"api_key"`
}

type analyzeResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Analyze sends doc to POST /api/analyze. It never returns an error: every
// failure, from transport to a malformed payload, is reported through
// Result.Error.
func (c *Client) Analyze(ctx context.Context, doc Document, apiKey string) Result {
	data, err := c.analyze(ctx, doc, apiKey)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = DefaultErrorMessage
		}
		return Result{Error: msg}
	}
	return Result{Success: true, Data: data}
}

func (c *Client) analyze(ctx context.Context, doc Document, apiKey string) (*rfp.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(analyzeRequest{
		Filename:    doc.Filename,
		FileContent: base64.StdEncoding.EncodeToString(doc.Content),
		APIKey:      apiKey,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("analyze: unexpected status %d", resp.StatusCode)
	}

	var ar analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("decoding analyze response: %w", err)
	}
	if !ar.Success {
		if ar.Error == "" {
			return nil, errors.New(DefaultErrorMessage)
		}
		return nil, errors.New(ar.Error)
	}
	if len(ar.Data) == 0 || bytes.Equal(bytes.TrimSpace(ar.Data), []byte("null")) {
		return nil, errors.New("analyze: backend reported success without data")
	}

	if err := validate(ctx, ar.Data); err != nil {
		return nil, err
	}

	var result rfp.AnalysisResult
	if err := json.Unmarshal(ar.Data, &result); err != nil {
		return nil, fmt.Errorf("decoding analysis data: %w", err)
	}
	return &result, nil
}

func validate(ctx context.Context, data []byte) error {
	rs, err := responseSchema()
	if err != nil {
		return err
	}
	keyErrs, err := rs.ValidateBytes(ctx, data)
	if err != nil {
		return fmt.Errorf("validating analysis data: %w", err)
	}
	if len(keyErrs) > 0 {
		msgs := make([]string, len(keyErrs))
		for i, ke := range keyErrs {
			msgs[i] = ke.Error()
		}
		return fmt.Errorf("invalid analysis data: %s", strings.Join(msgs, "; "))
	}
	return nil
}

type reportRequest struct {
	AnalysisData *rfp.AnalysisResult `json:"analysis_data"`
}

// ExportReport asks the backend to render a PDF report for an analysis.
func (c *Client) ExportReport(ctx context.Context, data *rfp.AnalysisResult) ([]byte, error) {
	if data == nil {
		return nil, errors.New("export report: no analysis data")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(reportRequest{AnalysisData: data})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/report", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("report: unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/pdf") {
		return nil, fmt.Errorf("report: unexpected content type %q", ct)
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	return pdf, nil
}
