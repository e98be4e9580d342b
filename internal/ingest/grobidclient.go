package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/schollz/progressbar/v3"
)

// DefaultGrobidURL is the hosted GROBID-compatible parsing service the add
// and sync commands use; it is not configurable.
const DefaultGrobidURL = "https://antonio-leitao-grobid.hf.space"

// GrobidClient talks to an external GROBID-compatible fulltext parsing
// service over HTTP.
type GrobidClient struct {
	baseURL string
	http    *http.Client
}

// NewGrobidClient builds a client against baseURL, trimming any trailing
// slash.
func NewGrobidClient(baseURL string) *GrobidClient {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &GrobidClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 300 * time.Second},
	}
}

// IsAlive reports whether the service answers its health check within 10
// seconds.
func (c *GrobidClient) IsAlive(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/isalive", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// WaitUntilReady polls IsAlive every 30 seconds, driving a progress
// spinner, until the service answers or maxWait elapses.
func (c *GrobidClient) WaitUntilReady(ctx context.Context, maxWait time.Duration) bool {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Grobid is sleeping, waking up..."),
		progressbar.OptionSpinnerType(14),
	)
	defer bar.Finish()

	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		if c.IsAlive(ctx) {
			return true
		}
		remaining := time.Until(deadline).Round(time.Second)
		bar.Describe(fmt.Sprintf("Grobid waking up... (~%s remaining)", remaining))
		_ = bar.Add(1)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(30 * time.Second):
		}
	}
	return false
}

// ProcessPDF uploads a PDF's bytes to the service's fulltext-extraction
// endpoint and returns the raw TEI XML response body.
func (c *GrobidClient) ProcessPDF(ctx context.Context, fileBytes []byte) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	// CreateFormFile would stamp the part application/octet-stream; the
	// service expects the input part to be application/pdf.
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="input"; filename="research_paper.pdf"`)
	header.Set("Content-Type", "application/pdf")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("creating multipart form file: %w", err)
	}
	if _, err := part.Write(fileBytes); err != nil {
		return nil, fmt.Errorf("writing PDF bytes to form: %w", err)
	}

	for field, value := range map[string]string{
		"consolidateHeader":      "1",
		"consolidateCitations":   "1",
		"includeRawCitations":    "1",
		"includeRawAffiliations": "1",
		"segmentSentences":       "1",
	} {
		if err := writer.WriteField(field, value); err != nil {
			return nil, fmt.Errorf("writing form field %q: %w", field, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/processFulltextDocument", &body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling processFulltextDocument: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("grobid API returned status %d", resp.StatusCode)
	}

	xml, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return xml, nil
}
