package assets

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/pkg/storage"
)

const defaultExt = ".png"

// Archiver copies committed modification assets into blob storage.
type Archiver struct {
	store  storage.System
	http   *http.Client
	logger *slog.Logger
}

// NewArchiver creates an Archiver writing to store.
func NewArchiver(store storage.System, httpClient *http.Client, logger *slog.Logger) *Archiver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Archiver{
		store:  store,
		http:   httpClient,
		logger: logger.With("system", "archive"),
	}
}

// Key returns the storage key for a modification of sku.
func Key(sku string, m catalog.Modification) string {
	ext := defaultExt
	if u, err := url.Parse(m.AssetRef); err == nil {
		if e := path.Ext(u.Path); e != "" {
			ext = e
		}
	}
	return fmt.Sprintf("assets/%s/%s%s", sku, m.ID, ext)
}

// Archive downloads m.AssetRef and uploads it under Key(sku, m). An asset
// already archived by an earlier attempt is not fetched again.
func (a *Archiver) Archive(ctx context.Context, sku string, m catalog.Modification) (string, error) {
	key := Key(sku, m)
	if ok, err := a.store.Exists(ctx, key); err != nil {
		return "", fmt.Errorf("check archive: %w", err)
	} else if ok {
		a.logger.DebugContext(ctx, "asset already archived", "sku", sku, "key", key)
		return key, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.AssetRef, nil)
	if err != nil {
		return "", fmt.Errorf("archive request: %w", err)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download asset: status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(key))
	}

	if err := a.store.Upload(ctx, key, resp.Body, contentType); err != nil {
		return "", fmt.Errorf("upload asset: %w", err)
	}

	a.logger.InfoContext(ctx, "asset archived", "sku", sku, "key", key)
	return key, nil
}
