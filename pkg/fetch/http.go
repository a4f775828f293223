package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"resty.dev/v3"

	"github.com/zurustar/flashstage/pkg/logger"
)

// StatusError はHTTPのエラーステータス
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Status)
}

// Is はステータス404をErrNotFoundとして扱う
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// HTTPOptions はHTTPFetcherの設定
type HTTPOptions struct {
	Timeout   time.Duration
	Retries   int
	UserAgent string
	Logger    *slog.Logger
}

// HTTPFetcher はHTTP(S)でリソースを読み込む
type HTTPFetcher struct {
	client *resty.Client
	log    *slog.Logger
}

// NewHTTPFetcher は新しいHTTPFetcherを作成する
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	client := resty.New()
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.Retries > 0 {
		client.SetRetryCount(opts.Retries)
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	return &HTTPFetcher{
		client: client,
		log:    logger.OrNop(opts.Logger).With("component", "fetch"),
	}
}

// Fetch はURLの内容を読み込む
func (h *HTTPFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	start := time.Now()
	res, err := h.client.R().SetContext(ctx).Get(locator)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", locator, err)
	}
	if res.IsError() {
		return nil, &StatusError{URL: locator, Status: res.StatusCode()}
	}

	data := res.Bytes()
	h.log.Debug("fetched", "url", locator, "bytes", len(data), "elapsed", time.Since(start))
	return data, nil
}

// Close はHTTPクライアントを解放する
func (h *HTTPFetcher) Close() error {
	return h.client.Close()
}
