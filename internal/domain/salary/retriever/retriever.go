// Package retriever downloads the published salary PDF into the local
// document store and falls back to the stored copy when the download fails.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/FACorreiaa/salarios-minimos/pkg/storage"
)

// ErrRetrieval indicates that neither a download nor a cached copy could
// provide the source document.
var ErrRetrieval = errors.New("document retrieval failed")

const (
	defaultTimeout = 60 * time.Second
	defaultName    = "lista_salarios.pdf"
	userAgent      = "salarios-minimos/1.0 (+https://github.com/FACorreiaa/salarios-minimos)"
)

// Document is a local copy of the source PDF ready for extraction.
type Document struct {
	Path        string    `json:"path"`
	SourceURL   string    `json:"source_url"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	RetrievedAt time.Time `json:"retrieved_at"`
	FromCache   bool      `json:"from_cache"`
}

// Retriever fetches the source document over HTTP.
type Retriever struct {
	store     storage.Storage
	client    *http.Client
	sourceURL string
	name      string
	timeout   time.Duration
	offline   bool
	logger    *slog.Logger
}

// NewRetriever creates a retriever storing sourceURL in store. The document
// is stored under the last path segment of the URL.
func NewRetriever(store storage.Storage, sourceURL string, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		store:     store,
		client:    &http.Client{},
		sourceURL: sourceURL,
		name:      documentName(sourceURL),
		timeout:   defaultTimeout,
		logger:    logger,
	}
}

// WithTimeout bounds a single download attempt.
func (r *Retriever) WithTimeout(d time.Duration) *Retriever {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// WithOffline skips the download and only serves the cached copy.
func (r *Retriever) WithOffline(offline bool) *Retriever {
	r.offline = offline
	return r
}

// SourceURL returns the configured document URL.
func (r *Retriever) SourceURL() string { return r.sourceURL }

// Fetch downloads the document. When the download fails and a previous copy
// is stored, that copy is returned with FromCache set.
func (r *Retriever) Fetch(ctx context.Context) (Document, error) {
	if r.offline {
		doc, err := r.cached(ctx)
		if err != nil {
			return Document{}, fmt.Errorf("%w: offline and no cached copy of %s: %v", ErrRetrieval, r.name, err)
		}
		return doc, nil
	}

	doc, err := r.download(ctx)
	if err == nil {
		return doc, nil
	}

	cached, cacheErr := r.cached(ctx)
	if cacheErr != nil {
		return Document{}, fmt.Errorf("%w: %s: %v", ErrRetrieval, r.sourceURL, err)
	}

	r.logger.Warn("download failed, using cached document",
		slog.String("url", r.sourceURL),
		slog.String("path", cached.Path),
		slog.Time("cached_at", cached.RetrievedAt),
		slog.Any("error", err),
	)
	return cached, nil
}

func (r *Retriever) download(ctx context.Context) (Document, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.sourceURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/pdf,*/*;q=0.8")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Document{}, fmt.Errorf("unexpected status %s: %q", resp.Status, string(snippet))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}

	info, err := r.store.Put(ctx, r.name, contentType, r.sourceURL, resp.Body)
	if err != nil {
		return Document{}, fmt.Errorf("failed to store document: %w", err)
	}

	r.logger.Info("document downloaded",
		slog.String("url", r.sourceURL),
		slog.String("path", info.Path),
		slog.Int64("bytes", info.Size),
		slog.Duration("elapsed", time.Since(start)),
	)
	return fromInfo(info, false), nil
}

func (r *Retriever) cached(ctx context.Context) (Document, error) {
	info, err := r.store.Stat(ctx, r.name)
	if err != nil {
		return Document{}, err
	}
	doc := fromInfo(info, true)
	if doc.SourceURL == "" {
		doc.SourceURL = r.sourceURL
	}
	return doc, nil
}

func fromInfo(info *storage.FileInfo, fromCache bool) Document {
	return Document{
		Path:        info.Path,
		SourceURL:   info.SourceURL,
		Size:        info.Size,
		SHA256:      info.SHA256,
		RetrievedAt: info.CreatedAt,
		FromCache:   fromCache,
	}
}

func documentName(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return defaultName
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return defaultName
	}
	return base
}
