// Package assets transforms entity images and archives accepted results.
package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zxlitianshu/Kekari-agent/pkg/client"
)

// Transformation outcomes.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrTransformFailed reports a transformation the service could not complete.
var ErrTransformFailed = errors.New("asset transformation failed")

// Result is the outcome of a transformation.
type Result struct {
	AssetRef string `json:"asset_ref"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Transformer applies a natural-language instruction to an image.
type Transformer interface {
	Transform(ctx context.Context, assetRef, instruction string) (Result, error)
}

type transformRequest struct {
	ImageURL    string `json:"image_url"`
	Instruction string `json:"instruction"`
}

type remote struct {
	client *client.Client
	logger *slog.Logger
}

// NewTransformer creates a Transformer backed by the configured service.
func NewTransformer(cfg *client.Config, logger *slog.Logger) Transformer {
	return &remote{
		client: client.New(cfg),
		logger: logger.With("system", "transform"),
	}
}

// Transform returns ErrTransformFailed when the service answers with an
// error status or without an asset, so callers never mistake a failed
// result for a usable artifact.
func (r *remote) Transform(ctx context.Context, assetRef, instruction string) (Result, error) {
	var res Result
	err := r.client.Post(ctx, "/transform", transformRequest{
		ImageURL:    assetRef,
		Instruction: instruction,
	}, &res)
	if err != nil {
		return Result{}, fmt.Errorf("transform: %w", err)
	}

	if res.Status == "" && res.AssetRef != "" {
		res.Status = StatusSuccess
	}
	if res.Status != StatusSuccess || res.AssetRef == "" {
		if res.Error == "" {
			res.Error = "no asset returned"
		}
		res.Status = StatusError
		return res, fmt.Errorf("%w: %s", ErrTransformFailed, res.Error)
	}

	r.logger.InfoContext(ctx, "asset transformed", "source", assetRef, "result", res.AssetRef)
	return res, nil
}
