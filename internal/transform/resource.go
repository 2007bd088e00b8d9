package transform

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/wyapx/nekobox/internal/logger"
	"github.com/wyapx/nekobox/pkg/constants"
)

// Fetcher retrieves resource bytes referenced by outbound message elements.
// Supported references: http(s) URLs, inline data URLs, and local files.
type Fetcher struct {
	client  *http.Client
	retries int
}

// NewFetcher creates a Fetcher with the default timeout and retry budget.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: constants.ResourceFetchTimeout},
		retries: constants.ResourceFetchRetries,
	}
}

// Fetch resolves a source reference into raw bytes. HTTP fetches retry
// immediately up to the configured budget; data URLs and files do not.
func (f *Fetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	switch {
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return f.fetchHTTP(ctx, src)
	case strings.HasPrefix(src, "data:"):
		_, data, err := DecodeDataURL(src)
		return data, err
	case strings.HasPrefix(src, "file://"):
		u, err := url.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse file url %q: %w", src, err)
		}
		return os.ReadFile(u.Path)
	default:
		return nil, fmt.Errorf("unsupported resource reference %q", src)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, src string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < f.retries; attempt++ {
		data, err := f.fetchOnce(ctx, src)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		logger.WithFields(logrus.Fields{
			"url":     src,
			"attempt": attempt + 1,
			"error":   err,
		}).Warn("resource fetch failed")
	}
	return nil, fmt.Errorf("fetch %s after %d attempts: %w", src, f.retries, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	rsp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer rsp.Body.Close()
	if rsp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", rsp.Status)
	}
	data, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, err
	}
	if rsp.ContentLength > 0 && rsp.ContentLength != int64(len(data)) {
		return nil, fmt.Errorf("content length mismatch: %d != %d", rsp.ContentLength, len(data))
	}
	return data, nil
}

// EncodeDataURL wraps raw bytes into an inline base64 data URL.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a data URL into its mime type and decoded payload.
func DecodeDataURL(src string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(src, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data url: %q", src)
	}
	head, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data url without payload separator")
	}
	mime, enc, hasEnc := strings.Cut(head, ";")
	if hasEnc {
		if enc != "base64" {
			return "", nil, fmt.Errorf("unsupported data url encoding %q", enc)
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("decode data url payload: %w", err)
		}
		return mime, data, nil
	}
	decoded, err := url.QueryUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("unescape data url payload: %w", err)
	}
	return mime, []byte(decoded), nil
}
