// Package asr uploads recorded audio to an OpenAI-compatible
// transcription endpoint.
package asr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/net/http2"

	"github.com/Pr4c0w1ty/whispering/internal/config"
	"github.com/Pr4c0w1ty/whispering/internal/jsonpath"
	"github.com/Pr4c0w1ty/whispering/internal/log"
	"github.com/Pr4c0w1ty/whispering/internal/metrics"
)

// RetryExhaustedError is returned when every upload attempt failed.
type RetryExhaustedError struct {
	Attempts int
	MaxRetry int
	Last     error
	Response []byte
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("upload failed after %d/%d attempts: %v", e.Attempts, e.MaxRetry, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// StatusError is an upload answered with a non-200 status.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, formatResponse(e.Body))
}

// Client performs ASR uploads.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	extra      map[string]any
	textPath   jsonpath.Path
	logger     zerolog.Logger
	sleep      func(context.Context, time.Duration) error
}

// New creates a new ASR client and parses ExtraConfig and TextPath.
func New(cfg config.Config, httpClient *http.Client) (*Client, error) {
	c := &Client{cfg: cfg, httpClient: httpClient, logger: log.Component("asr"), sleep: sleepCtx}
	if cfg.ExtraConfig != "" {
		if err := json.Unmarshal([]byte(cfg.ExtraConfig), &c.extra); err != nil {
			return nil, fmt.Errorf("invalid extra-config JSON: %w", err)
		}
	}
	p, err := jsonpath.Compile(cfg.TextPath)
	if err != nil {
		return nil, fmt.Errorf("invalid text-path: %w", err)
	}
	c.textPath = p
	if c.httpClient == nil {
		c.httpClient = NewHTTPClient(cfg)
	}
	return c, nil
}

// NewHTTPClient builds the upload client. HTTP/2 is negotiated over TLS
// when enabled.
func NewHTTPClient(cfg config.Config) *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if !cfg.VerifySSL {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(tr); err != nil {
			l := log.Component("asr")
			l.Warn().Err(err).Msg("http2 unavailable; using HTTP/1.1")
		}
	}
	return &http.Client{
		Transport: tr,
		Timeout:   time.Duration(cfg.RequestTimeout) * time.Second,
	}
}

// Transcribe uploads the audio and returns extracted text and raw JSON.
// Failed attempts are retried with exponential backoff starting at
// RetryBaseDelay seconds.
func (c *Client) Transcribe(ctx context.Context, filePath string) (string, []byte, error) {
	if c.cfg.APIEndpoint == "" {
		return "", nil, fmt.Errorf("API endpoint is empty")
	}
	maxRetry := c.cfg.MaxRetry
	if maxRetry < 1 {
		maxRetry = 1
	}
	delay := time.Duration(c.cfg.RetryBaseDelay * float64(time.Second))

	var (
		lastErr  error
		lastBody []byte
	)
	for attempt := 1; attempt <= maxRetry; attempt++ {
		metrics.UploadAttempts.Inc()
		body, err := c.upload(ctx, filePath)
		if err == nil {
			text, err := jsonpath.ExtractText(body, c.textPath)
			if err != nil {
				c.logger.Warn().Err(err).Str("body", formatResponse(body)).Msg("no text in response")
			}
			return text, body, nil
		}
		lastErr, lastBody = err, body
		c.logger.Warn().Err(err).Int("attempt", attempt).Int("max", maxRetry).Msg("upload attempt failed")
		if ctx.Err() != nil {
			return "", lastBody, ctx.Err()
		}
		if attempt == maxRetry {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", lastBody, err
		}
		delay *= 2
	}
	return "", lastBody, &RetryExhaustedError{Attempts: maxRetry, MaxRetry: c.cfg.MaxRetry, Last: lastErr, Response: lastBody}
}

func (c *Client) upload(ctx context.Context, filePath string) ([]byte, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy audio: %w", err)
	}
	for _, field := range c.formFields() {
		if err := w.WriteField(field[0], field[1]); err != nil {
			return nil, fmt.Errorf("write field %s: %w", field[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIEndpoint, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	req.Header.Set("User-Agent", "whispering-bridge/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.logger.Debug().Str("file", filePath).Dur("elapsed", time.Since(start)).Msg("upload finished")
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return respBody, &StatusError{Code: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}

// formFields merges model/language/prompt with ExtraConfig. Keys are
// sorted so requests are reproducible.
func (c *Client) formFields() [][2]string {
	merged := map[string]any{}
	if c.cfg.Model != "" {
		merged["model"] = c.cfg.Model
	}
	if c.cfg.Language != "" {
		merged["language"] = c.cfg.Language
	}
	if c.cfg.Prompt != "" {
		merged["prompt"] = c.cfg.Prompt
	}
	for k, v := range c.extra {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		v := merged[k]
		s, ok := jsonpath.Scalar(v)
		if !ok {
			b, err := json.Marshal(v)
			if err != nil {
				s = fmt.Sprint(v)
			} else {
				s = string(b)
			}
		}
		out = append(out, [2]string{k, s})
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func formatResponse(b []byte) string {
	if len(b) == 0 {
		return "<empty>"
	}
	const maxText = 1000
	const maxBin = 256

	if utf8.Valid(b) {
		if len(b) > maxText {
			return fmt.Sprintf("%s... (truncated, total %d bytes)", b[:maxText], len(b))
		}
		return string(b)
	}
	if len(b) > maxBin {
		return fmt.Sprintf("<binary %d bytes, prefix hex: %s...>", len(b), hex.EncodeToString(b[:maxBin]))
	}
	return fmt.Sprintf("<binary %d bytes, hex: %s>", len(b), hex.EncodeToString(b))
}
