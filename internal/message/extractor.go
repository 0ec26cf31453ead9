package message

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sifterr "github.com/sarsift/sarsift/internal/errors"
)

// TikaClient extracts plain text from document payloads over the Tika
// server HTTP protocol (PUT /tika with Accept: text/plain).
type TikaClient struct {
	baseURL string
	client  *http.Client
}

// NewTikaClient creates a client for the extraction service at baseURL.
func NewTikaClient(baseURL string, timeout time.Duration) *TikaClient {
	return &TikaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Extract sends the payload to the extraction service and returns plain text.
func (t *TikaClient) Extract(ctx context.Context, raw []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.baseURL+"/tika", bytes.NewReader(raw))
	if err != nil {
		return "", sifterr.Wrap(sifterr.ErrCodeExtractorUnavailable, err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", sifterr.Wrap(sifterr.ErrCodeExtractorUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", sifterr.Newf(sifterr.ErrCodeExtractorUnavailable,
			"extraction service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", sifterr.Wrap(sifterr.ErrCodeExtractorUnavailable, err)
	}
	return string(body), nil
}

// Ping checks that the extraction service is reachable.
func (t *TikaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("extraction service unreachable: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

// PassthroughExtractor treats the payload as already-plain text.
// Used when no extraction service is configured.
type PassthroughExtractor struct{}

// Extract returns the payload as a string.
func (PassthroughExtractor) Extract(_ context.Context, raw []byte) (string, error) {
	return string(raw), nil
}
