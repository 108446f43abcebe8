package catalog

import (
	"context"

	"github.com/zxlitianshu/Kekari-agent/pkg/pagination"
)

// Archiver copies a committed asset into durable blob storage and returns
// the storage key it was written under.
type Archiver interface {
	Archive(ctx context.Context, sku string, m Modification) (string, error)
}

// CommitResult reports the outcome of Commit. Duplicate is true when the
// modification had already been committed and nothing changed.
type CommitResult struct {
	Record    *ReadyEntityRecord
	Duplicate bool
}

// System defines the durable publish-ready store. Keys are SKUs.
// Get, Put, ListKeys, and Delete form the raw key-value contract; Put
// is a compare-and-swap on Version and returns ErrConflict on a lost race.
// Commit, Ensure, and MarkPublished are read-modify-write operations that
// retry a conflict once with a fresh read before returning ErrConflict.
type System interface {
	Handler() *Handler

	Get(ctx context.Context, sku string) (*ReadyEntityRecord, error)
	Put(ctx context.Context, r *ReadyEntityRecord) error
	ListKeys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, sku string) error

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[ReadyEntityRecord], error)

	Commit(ctx context.Context, e Entity, m Modification) (*CommitResult, error)
	Ensure(ctx context.Context, e Entity) (*ReadyEntityRecord, error)
	MarkPublished(ctx context.Context, sku, liveRef string) (*ReadyEntityRecord, error)
}
