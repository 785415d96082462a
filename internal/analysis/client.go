// Package analysis is the HTTP client for the external hand-position
// analysis service. The service owns the ML model; this client only uploads
// a photo and maps the structured result back into the closed position set.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Position is the discrete hand-position category the service reports.
type Position string

const (
	PositionGood      Position = "good"
	PositionHigh      Position = "high"
	PositionLow       Position = "low"
	PositionLeft      Position = "left"
	PositionRight     Position = "right"
	PositionUncertain Position = "uncertain"
	PositionNoCPR     Position = "no_cpr"
)

// ParsePosition maps a wire value into the closed set. Anything else
// resolves to PositionUncertain rather than inventing a new category.
func ParsePosition(s string) Position {
	switch Position(s) {
	case PositionGood, PositionHigh, PositionLow, PositionLeft, PositionRight, PositionUncertain, PositionNoCPR:
		return Position(s)
	}
	return PositionUncertain
}

// Result is one analysis outcome.
type Result struct {
	Position   Position
	Confidence float64
}

// Client talks to the analysis backend's /analyze-hands endpoint.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

func NewClient(baseURL string) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		BaseURL:    baseURL,
	}
}

type analyzeResponse struct {
	Success  bool `json:"success"`
	Analysis struct {
		Position   string  `json:"position"`
		Confidence float64 `json:"confidence"`
	} `json:"analysis"`
	Guidance string `json:"guidance"`
}

// AnalyzeHands uploads one photo as multipart form data and returns the
// discrete position plus confidence.
func (c *Client) AnalyzeHands(ctx context.Context, photo []byte, mimeType string) (Result, error) {
	if c.BaseURL == "" {
		return Result{}, fmt.Errorf("analysis base url missing")
	}
	if len(photo) == 0 {
		return Result{}, fmt.Errorf("empty photo")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "capture.jpg")
	if err != nil {
		return Result{}, err
	}
	if _, err := part.Write(photo); err != nil {
		return Result{}, err
	}
	if err := w.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/analyze-hands", &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("analysis error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var ar analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return Result{}, err
	}
	if !ar.Success {
		return Result{}, fmt.Errorf("analysis reported failure")
	}
	return Result{Position: ParsePosition(ar.Analysis.Position), Confidence: ar.Analysis.Confidence}, nil
}
