package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	apperrors "go-leaf-inspector/internal/errors"
	"go-leaf-inspector/internal/logger"
	"go-leaf-inspector/internal/preprocess"

	"github.com/sirupsen/logrus"
)

// HTTPOptions tunes the HTTP fetcher.
type HTTPOptions struct {
	Attempts int
	// Backoff is multiplied by the attempt number between retries.
	Backoff      time.Duration
	Timeout      time.Duration
	MaxImageSize int64
}

// DefaultHTTPOptions are used for zero fields.
var DefaultHTTPOptions = HTTPOptions{
	Attempts:     3,
	Backoff:      time.Second,
	Timeout:      30 * time.Second,
	MaxImageSize: 32 << 20,
}

// HTTPImageFetcher downloads images over HTTP(S), retrying network errors
// and 5xx responses.
type HTTPImageFetcher struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPImageFetcher creates an HTTP image fetcher
func NewHTTPImageFetcher(opts HTTPOptions) *HTTPImageFetcher {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultHTTPOptions.Attempts
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultHTTPOptions.Timeout
	}
	if opts.MaxImageSize <= 0 {
		opts.MaxImageSize = DefaultHTTPOptions.MaxImageSize
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		opts: opts,
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
	}
}

// decodeLimited decodes at most limit bytes from r. Larger payloads are
// rejected instead of being decoded truncated.
func decodeLimited(r io.Reader, limit int64) (image.Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to read image body", err)
	}
	if int64(len(data)) > limit {
		return nil, apperrors.NewValidationError(fmt.Sprintf("image exceeds %d bytes", limit), nil)
	}
	return preprocess.Decode(bytes.NewReader(data))
}

// errClient marks responses that must not be retried.
var errClient = errors.New("client error")

func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid URL", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/gif, image/bmp, image/tiff, */*")
	req.Header.Set("User-Agent", "Go-Leaf-Inspector/1.0")

	var lastErr error
	for attempt := 1; attempt <= h.opts.Attempts; attempt++ {
		body, err := h.get(req)
		if err == nil {
			img, decodeErr := decodeLimited(body, h.opts.MaxImageSize)
			body.Close()
			return img, decodeErr
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apperrors.NewTimeoutError("image download cancelled", ctxErr)
		}
		if errors.Is(err, errClient) {
			break
		}

		logger.WithFields(logrus.Fields{
			"url":     imageURL,
			"attempt": attempt,
		}).WithError(err).Warn("Image download failed")

		if attempt < h.opts.Attempts {
			select {
			case <-time.After(time.Duration(attempt) * h.opts.Backoff):
			case <-ctx.Done():
				return nil, apperrors.NewTimeoutError("image download cancelled", ctx.Err())
			}
		}
	}

	return nil, apperrors.NewNetworkError(
		fmt.Sprintf("failed to fetch image after %d attempts", h.opts.Attempts), lastErr)
}

// get performs one request and returns the body of a 200 response.
func (h *HTTPImageFetcher) get(req *http.Request) (io.ReadCloser, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		return resp.Body, nil
	}

	resp.Body.Close()
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, fmt.Errorf("%w: status code %d", errClient, resp.StatusCode)
	}
	return nil, fmt.Errorf("server error: status code %d", resp.StatusCode)
}
