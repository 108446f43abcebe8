// Package storage archives committed assets in Azure Blob Storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/zxlitianshu/Kekari-agent/pkg/lifecycle"
)

// System stores blobs under slash-separated keys.
type System interface {
	// Start creates the container on startup and registers a readiness probe.
	Start(lc *lifecycle.Coordinator) error
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Exists reports whether a blob exists at key.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes the blob at key. Returns ErrNotFound if there is none.
	Delete(ctx context.Context, key string) error
}

type azure struct {
	container *container.Client
	prefix    string
	logger    *slog.Logger
}

// New builds the client without contacting the service. A disabled
// config yields a System whose operations return ErrDisabled.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	if !cfg.Enabled {
		return disabled{}, nil
	}

	opts := &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: int32(cfg.MaxRetries)},
		},
	}
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, opts)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &azure{
		container: client.ServiceClient().NewContainerClient(cfg.ContainerName),
		prefix:    cfg.Prefix,
		logger:    logger.With("system", "storage", "container", cfg.ContainerName),
	}, nil
}

func (a *azure) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func() {
		_, err := a.container.Create(lc.Context(), nil)
		if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			a.logger.Error("storage container initialization failed", "error", err)
			return
		}
		a.logger.Info("storage container ready")
	})

	lc.AddProbe("storage", func(ctx context.Context) error {
		_, err := a.container.GetProperties(ctx, nil)
		return err
	})
	return nil
}

func (a *azure) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	name, err := a.blobName(key)
	if err != nil {
		return err
	}

	_, err = a.container.NewBlockBlobClient(name).UploadStream(ctx, reader, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("upload blob %s: %w", name, err)
	}
	return nil
}

func (a *azure) Exists(ctx context.Context, key string) (bool, error) {
	name, err := a.blobName(key)
	if err != nil {
		return false, err
	}

	_, err = a.container.NewBlobClient(name).GetProperties(ctx, nil)
	switch {
	case err == nil:
		return true, nil
	case bloberror.HasCode(err, bloberror.BlobNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("stat blob %s: %w", name, err)
	}
}

func (a *azure) Delete(ctx context.Context, key string) error {
	name, err := a.blobName(key)
	if err != nil {
		return err
	}

	_, err = a.container.NewBlobClient(name).Delete(ctx, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete blob %s: %w", name, err)
	}
	return nil
}

func (a *azure) blobName(key string) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if a.prefix == "" {
		return clean, nil
	}
	return a.prefix + "/" + clean, nil
}

// CleanKey normalizes key and rejects keys that are empty, absolute, or
// climb out of the container with "..".
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}

type disabled struct{}

func (disabled) Start(*lifecycle.Coordinator) error { return nil }

func (disabled) Upload(context.Context, string, io.Reader, string) error { return ErrDisabled }

func (disabled) Exists(context.Context, string) (bool, error) { return false, ErrDisabled }

func (disabled) Delete(context.Context, string) error { return ErrDisabled }
