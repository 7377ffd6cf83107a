package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/shashiranjanraj/catalogsync/app/models"
	pkghttp "github.com/shashiranjanraj/catalogsync/pkg/http"
)

// CatalogRecord is one element of the remote catalog as received. ID is a
// pointer so a missing or null id can be told apart from id 0.
type CatalogRecord struct {
	ID          *int64   `json:"id"`
	Title       *string  `json:"title"`
	Price       *float64 `json:"price"`
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
	Image       *string  `json:"image"`
}

// CatalogFetcher downloads and decodes the remote catalog.
type CatalogFetcher struct {
	url     string
	timeout time.Duration
	client  *pkghttp.Client
}

// FetcherOption configures a CatalogFetcher.
type FetcherOption func(*CatalogFetcher)

// WithHTTPClient replaces the outbound client, limiter included.
func WithHTTPClient(c *pkghttp.Client) FetcherOption {
	return func(f *CatalogFetcher) { f.client = c }
}

// WithFetchTimeout bounds one fetch, body included.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *CatalogFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// NewCatalogFetcher builds a fetcher for url. perMinute caps outbound
// requests; zero or less disables the limiter.
func NewCatalogFetcher(url string, perMinute int, opts ...FetcherOption) *CatalogFetcher {
	clientOpts := []pkghttp.ClientOption{pkghttp.WithUserAgent("catalogsync/1.0")}
	if perMinute > 0 {
		clientOpts = append(clientOpts, pkghttp.WithLimiter(rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)))
	}
	f := &CatalogFetcher{
		url:     url,
		timeout: 30 * time.Second,
		client:  pkghttp.NewClient(clientOpts...),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL returns the catalog endpoint.
func (f *CatalogFetcher) URL() string { return f.url }

// Fetch GETs the catalog and decodes it into records. It does no
// validation beyond shape: the body must be a JSON array of objects whose
// fields have the expected types.
func (f *CatalogFetcher) Fetch(ctx context.Context) ([]CatalogRecord, error) {
	resp, err := f.client.Get(f.url).
		Timeout(f.timeout).
		WithContext(ctx).
		Send()
	if err != nil {
		return nil, &FetchError{Kind: transportKind(err), URL: f.url, Err: err}
	}
	if !resp.OK() {
		return nil, &FetchError{
			Kind:       FetchHTTPStatus,
			URL:        f.url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	records, err := decodeCatalog(resp.Raw)
	if err != nil {
		return nil, &FetchError{Kind: FetchDecode, URL: f.url, Err: err}
	}
	return records, nil
}

func transportKind(err error) FetchKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FetchTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return FetchTimeout
	}
	return FetchNetwork
}

func decodeCatalog(body []byte) ([]CatalogRecord, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return nil, fmt.Errorf("body is not a JSON array: %w", err)
	}
	if elems == nil {
		return nil, errors.New("body is null, want a JSON array")
	}

	records := make([]CatalogRecord, len(elems))
	for i, raw := range elems {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, fmt.Errorf("element %d is not an object", i)
		}
		if err := json.Unmarshal(trimmed, &records[i]); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return records, nil
}

// Validate checks every record carries an id and converts the batch into
// models. The first offending record fails the whole batch.
func Validate(records []CatalogRecord) ([]models.Product, error) {
	products := make([]models.Product, len(records))
	for i, r := range records {
		if r.ID == nil {
			return nil, &ValidationError{Reason: ReasonMissingID, Index: i}
		}
		products[i] = models.Product{
			ID:          *r.ID,
			Title:       r.Title,
			Price:       r.Price,
			Category:    r.Category,
			Description: r.Description,
			Image:       r.Image,
		}
	}
	return products, nil
}
