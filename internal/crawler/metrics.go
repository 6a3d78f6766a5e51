// Package crawler implements the resumable document crawl over pending
// sites, fetching detail fragments through the worker proxy.
package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalFetches tracks proxy fetch attempts, retries included.
	TotalFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brrts_crawler_fetches_total",
		Help: "The total number of proxy fetch attempts.",
	})
	// TotalFetchErrors tracks fetch attempts that failed at the transport level.
	TotalFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brrts_crawler_fetch_errors_total",
		Help: "The total number of transport-level fetch failures.",
	})
	// TotalRetries tracks backoff retries after transient failures.
	TotalRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brrts_crawler_retries_total",
		Help: "The total number of retried fetches.",
	})
	// TotalDocuments tracks documents discovered across all sites.
	TotalDocuments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "brrts_crawler_documents_total",
		Help: "The total number of documents discovered.",
	})
)
