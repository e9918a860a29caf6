// Package download fetches remote input files into the work directory.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/polarlab/floe/internal/errors"
	"github.com/polarlab/floe/internal/log"
)

// Client downloads files with retries and exponential backoff
type Client struct {
	http   *retryablehttp.Client
	logger *log.Logger
}

// Option configures a Client
type Option func(*Client)

// WithRetries sets the maximum number of retries per download
func WithRetries(n int) Option {
	return func(c *Client) { c.http.RetryMax = n }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.HTTPClient.Timeout = d }
}

// NewClient returns a download client. Retry noise goes to the debug level
// of the supplied logger rather than retryablehttp's default log output.
func NewClient(logger *log.Logger, opts ...Option) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 3
	httpClient.RetryWaitMin = 1 * time.Second
	httpClient.RetryWaitMax = 30 * time.Second
	httpClient.Logger = nil
	if logger != nil {
		httpClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
			if attempt > 0 {
				logger.Debug("retrying download", "url", req.URL.String(), "attempt", attempt)
			}
		}
	}

	client := &Client{http: httpClient, logger: logger}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// File downloads url to dest, creating parent directories as needed. The
// file is written to a temporary name and renamed into place so an
// interrupted download never leaves a truncated file behind.
func (c *Client) File(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed,
			"failed to create directory for "+dest, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDownloadFailed, "invalid download url "+url, err)
	}

	if c.logger != nil {
		c.logger.Debug("downloading", "url", url, "dest", dest)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDownloadFailed, "failed to download "+url, err).
			WithSuggestion("Check network access and the database URL in the [download] config section")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.ErrCodeDownloadFailed,
			fmt.Sprintf("download of %s returned status %d", url, resp.StatusCode))
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".partial-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create temp file for "+dest, err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeDownloadFailed, "failed while writing "+dest, err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to move download into place at "+dest, err)
	}

	if c.logger != nil {
		c.logger.Info("downloaded", "url", url, "dest", dest, "bytes", written)
	}
	return nil
}
