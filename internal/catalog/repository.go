package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zxlitianshu/Kekari-agent/internal/events"
	"github.com/zxlitianshu/Kekari-agent/pkg/pagination"
	"github.com/zxlitianshu/Kekari-agent/pkg/query"
	"github.com/zxlitianshu/Kekari-agent/pkg/repository"
)

// maxAttempts bounds read-modify-write: the first try plus one retry.
const maxAttempts = 2

type repo struct {
	db         *sql.DB
	projection *query.ProjectionMap
	archiver   Archiver
	events     events.Publisher
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a ready entity repository implementing the System interface.
// archiver and publisher may be nil.
func New(
	db *sql.DB,
	driver string,
	archiver Archiver,
	publisher events.Publisher,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		projection: newProjection(driver),
		archiver:   archiver,
		events:     publisher,
		logger:     logger.With("system", "catalog"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Get(ctx context.Context, sku string) (*ReadyEntityRecord, error) {
	if err := validateSKU(sku); err != nil {
		return nil, err
	}

	q := `SELECT ` + columns + ` FROM ready_entities WHERE sku = $1`
	rec, err := repository.QueryOne(ctx, r.db, q, []any{sku}, scanRecord)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrConflict)
	}
	return &rec, nil
}

func (r *repo) Put(ctx context.Context, rec *ReadyEntityRecord) error {
	if err := validateSKU(rec.SKU); err != nil {
		return err
	}
	rec.Snapshot.SKU = rec.SKU

	snapshot, mods, liveRef, publishedAt, err := recordArgs(rec)
	if err != nil {
		return err
	}

	ts := now()

	if rec.Version == 0 {
		q := `
			INSERT INTO ready_entities (sku, title, category, snapshot, modifications, live_ref, published_at, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

		_, err := r.db.ExecContext(ctx, q,
			rec.SKU, rec.Snapshot.Title, rec.Snapshot.Category,
			snapshot, mods, liveRef, publishedAt,
			int64(1), ts, ts,
		)
		if err != nil {
			return repository.MapError(err, ErrNotFound, ErrConflict)
		}

		rec.Version = 1
		rec.CreatedAt = ts
		rec.UpdatedAt = ts
		return nil
	}

	q := `
		UPDATE ready_entities
		SET title = $1, category = $2, snapshot = $3, modifications = $4,
			live_ref = $5, published_at = $6, version = $7, updated_at = $8
		WHERE sku = $9 AND version = $10`

	err = repository.ExecExpectOne(ctx, r.db, q,
		rec.Snapshot.Title, rec.Snapshot.Category, snapshot, mods,
		liveRef, publishedAt, rec.Version+1, ts,
		rec.SKU, rec.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConflict
		}
		return err
	}

	rec.Version++
	rec.UpdatedAt = ts
	return nil
}

func (r *repo) ListKeys(ctx context.Context) ([]string, error) {
	keys, err := repository.QueryMany(
		ctx, r.db,
		`SELECT sku FROM ready_entities ORDER BY created_at, sku`,
		nil,
		func(s repository.Scanner) (string, error) {
			var sku string
			err := s.Scan(&sku)
			return sku, err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("list ready entity keys: %w", err)
	}
	return keys, nil
}

func (r *repo) Delete(ctx context.Context, sku string) error {
	if err := validateSKU(sku); err != nil {
		return err
	}

	err := repository.ExecExpectOne(ctx, r.db, `DELETE FROM ready_entities WHERE sku = $1`, sku)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrConflict)
	}

	r.logger.Info("ready entity deleted", "sku", sku)
	r.emit(ctx, events.NewEvent(events.RecordDeleted, sku, nil))
	return nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[ReadyEntityRecord], error) {
	page.Normalize(r.pagination)

	qb := query.NewBuilder(r.projection, defaultSort).
		WhereSearch(page.Search, "SKU", "Title", "Category")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count ready entities: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	records, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("query ready entities: %w", err)
	}

	result := pagination.NewPageResult(records, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Commit(ctx context.Context, e Entity, m Modification) (*CommitResult, error) {
	if existing, err := r.Get(ctx, e.SKU); err == nil && existing.HasModification(m.ID) {
		return &CommitResult{Record: existing, Duplicate: true}, nil
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
	}
	if m.StorageKey == "" && r.archiver != nil {
		key, err := r.archiver.Archive(ctx, e.SKU, m)
		if err != nil {
			r.logger.Warn("asset archive failed", "sku", e.SKU, "modification", m.ID, "error", err)
		} else {
			m.StorageKey = key
		}
	}

	duplicate := false
	rec, created, err := r.update(ctx, e, func(rec *ReadyEntityRecord) bool {
		if rec.HasModification(m.ID) {
			duplicate = true
			return false
		}
		rec.Modifications = append(rec.Modifications, m)
		return true
	})
	if err != nil {
		return nil, err
	}

	if created {
		r.emit(ctx, events.NewEvent(events.RecordCreated, rec.SKU, nil))
	}
	if !duplicate {
		r.logger.Info("modification committed", "sku", rec.SKU, "modification", m.ID, "count", len(rec.Modifications))
		r.emit(ctx, events.NewEvent(events.ArtifactCommitted, rec.SKU, map[string]any{
			"modification_id": m.ID.String(),
			"asset_ref":       m.AssetRef,
			"storage_key":     m.StorageKey,
		}))
	}

	return &CommitResult{Record: rec, Duplicate: duplicate}, nil
}

func (r *repo) Ensure(ctx context.Context, e Entity) (*ReadyEntityRecord, error) {
	rec, created, err := r.update(ctx, e, func(*ReadyEntityRecord) bool { return false })
	if err != nil {
		return nil, err
	}
	if created {
		r.logger.Info("ready entity created", "sku", rec.SKU)
		r.emit(ctx, events.NewEvent(events.RecordCreated, rec.SKU, nil))
	}
	return rec, nil
}

func (r *repo) MarkPublished(ctx context.Context, sku, liveRef string) (*ReadyEntityRecord, error) {
	rec, err := repository.Retry(ctx, maxAttempts, retryable,
		func(attempt int, err error) {
			r.logger.Warn("publish state conflict, retrying", "sku", sku, "attempt", attempt, "error", err)
		},
		func(int) (*ReadyEntityRecord, error) {
			current, err := r.Get(ctx, sku)
			if err != nil {
				return nil, err
			}
			current.Published = &PublishState{LiveRef: liveRef, PublishedAt: now()}
			if err := r.Put(ctx, current); err != nil {
				return nil, err
			}
			return current, nil
		},
	)
	if err != nil {
		return nil, err
	}

	r.emit(ctx, events.NewEvent(events.RecordPublished, sku, map[string]any{"live_ref": liveRef}))
	return rec, nil
}

// update performs a read-modify-write on the record for e.SKU, creating it
// from e when absent. mutate reports whether the record changed; creation
// is always written. A lost compare-and-swap is retried once.
func (r *repo) update(
	ctx context.Context,
	e Entity,
	mutate func(*ReadyEntityRecord) bool,
) (*ReadyEntityRecord, bool, error) {
	if err := validateSKU(e.SKU); err != nil {
		return nil, false, err
	}

	type outcome struct {
		rec     *ReadyEntityRecord
		created bool
	}

	out, err := repository.Retry(ctx, maxAttempts, retryable,
		func(attempt int, err error) {
			r.logger.Warn("ready entity write conflict", "sku", e.SKU, "attempt", attempt, "error", err)
		},
		func(int) (outcome, error) {
			rec, err := r.Get(ctx, e.SKU)
			created := false
			switch {
			case errors.Is(err, ErrNotFound):
				rec = NewRecord(e)
				created = true
			case err != nil:
				return outcome{}, err
			}

			if changed := mutate(rec); !changed && !created {
				return outcome{rec: rec}, nil
			}
			if err := r.Put(ctx, rec); err != nil {
				return outcome{}, err
			}
			return outcome{rec: rec, created: created}, nil
		},
	)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, false, fmt.Errorf("%w: sku %s", ErrConflict, e.SKU)
		}
		return nil, false, err
	}
	return out.rec, out.created, nil
}

// retryable reports whether a failed read-modify-write should be repeated
// with a fresh read.
func retryable(err error) bool {
	return errors.Is(err, ErrConflict) || repository.IsTransient(err)
}

func (r *repo) emit(ctx context.Context, e events.Event) {
	if r.events == nil {
		return
	}
	if id := events.SessionFromContext(ctx); id != "" {
		e = e.WithSession(id)
	}
	if err := r.events.Publish(ctx, e); err != nil {
		r.logger.Warn("event publish failed", "type", e.Type, "error", err)
	}
}

func validateSKU(sku string) error {
	if strings.TrimSpace(sku) == "" {
		return ErrInvalidSKU
	}
	return nil
}
