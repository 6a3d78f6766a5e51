package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// DetailResult is the proxy's JSON envelope for one detail page. The proxy
// fetches three upstream endpoints and returns each as an HTML fragment;
// on upstream failure Success is false and Status mirrors the upstream
// HTTP status.
type DetailResult struct {
	Success        bool   `json:"success"`
	Status         int    `json:"status"`
	Error          string `json:"error,omitempty"`
	SiteFilesHTML  string `json:"site_files_html"`
	AdditionalHTML string `json:"addtl_docs_html"`
	ActionsHTML    string `json:"actions_html"`
}

// Fetcher retrieves the detail envelope for one internal sequence number.
type Fetcher interface {
	FetchDetail(ctx context.Context, detailSeqNo int64) (DetailResult, error)
}

// ProxyClient implements Fetcher against the worker proxy using a Colly
// collector as the HTTP transport.
type ProxyClient struct {
	workerURL string
	timeout   time.Duration
	base      *colly.Collector
	logger    *zap.Logger
}

// NewProxyClient builds a ProxyClient.
func NewProxyClient(workerURL string, timeout time.Duration, logger *zap.Logger) *ProxyClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector()
	// colly v2.1.0's Async option ignores its argument and always enables
	// async mode; set the field directly to keep Visit synchronous.
	c.Async = false
	c.AllowURLRevisit = true
	return &ProxyClient{
		workerURL: workerURL,
		timeout:   timeout,
		base:      c,
		logger:    logger,
	}
}

// FetchDetail executes a single GET against the proxy and decodes the
// envelope. Transport problems (timeouts, resets, unreachable proxy)
// surface as errors; application-level upstream failures come back inside
// the envelope with a nil error.
func (p *ProxyClient) FetchDetail(ctx context.Context, detailSeqNo int64) (DetailResult, error) {
	var (
		body     []byte
		fetchErr error
	)

	collector := p.base.Clone()
	collector.AllowURLRevisit = true
	collector.SetRequestTimeout(p.timeout)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	target := fmt.Sprintf("%s?dsn=%d", p.workerURL, detailSeqNo)
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return DetailResult{}, fmt.Errorf("proxy fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return DetailResult{}, fmt.Errorf("proxy visit dsn %d: %w", detailSeqNo, err)
		}
		if fetchErr != nil {
			return DetailResult{}, fmt.Errorf("proxy response dsn %d: %w", detailSeqNo, fetchErr)
		}
	}

	var result DetailResult
	if err := json.Unmarshal(body, &result); err != nil {
		return DetailResult{}, fmt.Errorf("decode proxy envelope dsn %d: %w", detailSeqNo, err)
	}
	return result, nil
}
