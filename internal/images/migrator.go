// Package images downloads externally hosted images and re-uploads them to
// object storage under deterministic keys.
package images

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/plannora/marketplace-cli/pkg/blob"
)

// StatusError reports a non-200 response while downloading a source image.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("images: download %s: status %d", e.URL, e.StatusCode)
}

// Migrator copies one image at a time from a source CDN to object storage.
type Migrator struct {
	store      blob.Client
	httpClient *http.Client
	userAgent  string
	referer    string
}

// Option configures the migrator.
type Option func(*Migrator)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(m *Migrator) { m.httpClient = hc }
}

// WithUserAgent sets the download User-Agent. The source CDNs reject
// unidentified clients, so a browser-like agent is the default.
func WithUserAgent(ua string) Option {
	return func(m *Migrator) { m.userAgent = ua }
}

// WithReferer sets the download Referer header.
func WithReferer(ref string) Option {
	return func(m *Migrator) { m.referer = ref }
}

// NewMigrator creates a migrator writing to the given object store.
func NewMigrator(store blob.Client, opts ...Option) *Migrator {
	m := &Migrator{
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Key builds the deterministic destination key for one image.
func Key(category string, entityID int64, resolution string, index int, ext string) string {
	return fmt.Sprintf("%s/%d/%s/image-%d.%s", category, entityID, resolution, index, ext)
}

// MigrateOne copies a single source URL and returns the public URL of the
// stored object. When the destination key already exists the download is
// skipped entirely and the existing URL is returned.
func (m *Migrator) MigrateOne(ctx context.Context, srcURL, category string, entityID int64, resolution string, index int) (string, error) {
	ext := extFromURL(srcURL)
	key := Key(category, entityID, resolution, index, ext)

	exists, err := m.store.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		zap.L().Debug("image already migrated", zap.String("key", key))
		return m.store.URL(key), nil
	}

	data, contentType, err := m.download(ctx, srcURL)
	if err != nil {
		return "", err
	}

	// The response may reveal a different format than the URL suggested.
	if ctExt := extFromContentType(contentType); ctExt != "" && ctExt != ext {
		key = Key(category, entityID, resolution, index, ctExt)
		exists, err := m.store.Exists(ctx, key)
		if err != nil {
			return "", err
		}
		if exists {
			return m.store.URL(key), nil
		}
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	publicURL, err := m.store.Upload(ctx, key, data, contentType)
	if err != nil {
		return "", eris.Wrapf(err, "images: upload %s", key)
	}
	return publicURL, nil
}

// MigrateEntity migrates every source URL of one entity sequentially.
// Individual failures are collected, not fatal; the successfully uploaded
// URLs are always returned so they can be recorded.
func (m *Migrator) MigrateEntity(ctx context.Context, category string, entityID int64, resolution string, sources []string) ([]string, error) {
	var uploaded []string
	var failed int
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return uploaded, eris.Wrap(err, "images: interrupted")
		}
		u, err := m.MigrateOne(ctx, src, category, entityID, resolution, i)
		if err != nil {
			failed++
			zap.L().Warn("image migration failed",
				zap.String("category", category),
				zap.Int64("entity_id", entityID),
				zap.String("source", src),
				zap.Error(err))
			continue
		}
		uploaded = append(uploaded, u)
	}
	if failed > 0 {
		return uploaded, eris.Errorf("images: %d of %d images failed for %s/%d", failed, len(sources), category, entityID)
	}
	return uploaded, nil
}

func (m *Migrator) download(ctx context.Context, srcURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, "", eris.Wrapf(err, "images: create request for %s", srcURL)
	}
	req.Header.Set("User-Agent", m.userAgent)
	if m.referer != "" {
		req.Header.Set("Referer", m.referer)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, "", eris.Wrapf(err, "images: download %s", srcURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, "", &StatusError{StatusCode: resp.StatusCode, URL: srcURL}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", eris.Wrapf(err, "images: read body of %s", srcURL)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

var knownExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true, "avif": true,
}

// extFromURL predicts the file extension from the source URL path, falling
// back to jpg so the pre-download existence check stays deterministic.
func extFromURL(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return "jpg"
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if !knownExts[ext] {
		return "jpg"
	}
	return ext
}

var contentTypeExts = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/avif": "avif",
}

// extFromContentType maps a response Content-Type to an extension, or ""
// when the type is unknown.
func extFromContentType(ct string) string {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return contentTypeExts[mediaType]
}
