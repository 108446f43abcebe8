// Package publishing pushes ready entities to the live storefront, subject
// to a publish policy.
package publishing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/pkg/client"
)

// ErrPublishFailed reports a publish the service rejected.
var ErrPublishFailed = errors.New("publish failed")

// Result is the outcome of publishing one entity.
type Result struct {
	Success bool   `json:"success"`
	LiveRef string `json:"live_ref,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Publisher pushes an entity, with its effective images, to the live system.
type Publisher interface {
	Publish(ctx context.Context, e catalog.Entity) (Result, error)
}

type publishRequest struct {
	Entity catalog.Entity `json:"entity"`
}

type remote struct {
	client *client.Client
	logger *slog.Logger
}

// New creates a Publisher backed by the configured service.
func New(cfg *Config, logger *slog.Logger) Publisher {
	return &remote{
		client: client.New(&cfg.Config),
		logger: logger.With("system", "publishing"),
	}
}

func (r *remote) Publish(ctx context.Context, e catalog.Entity) (Result, error) {
	var res Result
	if err := r.client.Post(ctx, "/publish", publishRequest{Entity: e}, &res); err != nil {
		return Result{}, fmt.Errorf("publish %s: %w", e.SKU, err)
	}

	if !res.Success {
		if res.Error == "" {
			res.Error = "rejected"
		}
		return res, fmt.Errorf("%w: %s: %s", ErrPublishFailed, e.SKU, res.Error)
	}

	r.logger.InfoContext(ctx, "entity published", "sku", e.SKU, "live_ref", res.LiveRef)
	return res, nil
}
