package prompts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/zxlitianshu/Kekari-agent/pkg/pagination"
	"github.com/zxlitianshu/Kekari-agent/pkg/query"
	"github.com/zxlitianshu/Kekari-agent/pkg/repository"
)

// instructionsTTL bounds how long another replica's override change can go
// unseen. Changes made through this repo invalidate immediately.
const instructionsTTL = 30 * time.Second

type repo struct {
	db           *sql.DB
	projection   *query.ProjectionMap
	instructions *cache.Cache
	logger       *slog.Logger
	pagination   pagination.Config
}

// New creates a prompt repository implementing the System interface.
// Effective instructions are cached per stage since the classifier reads
// them on every model call.
func New(db *sql.DB, driver string, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:           db,
		projection:   newProjection(driver),
		instructions: cache.New(instructionsTTL, 2*instructionsTTL),
		logger:       logger.With("system", "prompts"),
		pagination:   pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Prompt], error) {
	page.Normalize(r.pagination)

	qb := filters.Apply(
		query.NewBuilder(r.projection, defaultSort).
			WhereSearch(page.Search, "Name", "Description"),
	)
	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count prompts: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanPrompt)
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	q, args := query.NewBuilder(r.projection).BuildSingle("ID", id)

	p, err := repository.QueryOne(ctx, r.db, q, args, scanPrompt)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

// Instructions returns the active override for stage, falling back to the
// built-in default when none is active.
func (r *repo) Instructions(ctx context.Context, stage Stage) (string, error) {
	if v, ok := r.instructions.Get(string(stage)); ok {
		return v.(string), nil
	}

	q := `SELECT instructions FROM prompts WHERE stage = $1 AND active = TRUE LIMIT 1`
	text, err := repository.QueryOne(ctx, r.db, q, []any{stage}, func(s repository.Scanner) (string, error) {
		var v string
		err := s.Scan(&v)
		return v, err
	})

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if text, err = Instructions(stage); err != nil {
			return "", err
		}
	case err != nil:
		return "", fmt.Errorf("load instructions for %s: %w", stage, err)
	}

	r.instructions.SetDefault(string(stage), text)
	return text, nil
}

func (r *repo) Spec(_ context.Context, stage Stage) (string, error) {
	return Spec(stage)
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Prompt, error) {
	if err := cmd.check(); err != nil {
		return nil, err
	}

	q := `
		INSERT INTO prompts(id, name, stage, instructions, description, active)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		` + returning

	return r.mutate(ctx, "prompt created", func(tx *sql.Tx) (Prompt, error) {
		return repository.QueryOne(ctx, tx, q,
			[]any{uuid.New(), cmd.Name, cmd.Stage, cmd.Instructions, cmd.Description}, scanPrompt)
	})
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Prompt, error) {
	if err := CreateCommand(cmd).check(); err != nil {
		return nil, err
	}

	q := `
		UPDATE prompts
		SET name = $1, stage = $2, instructions = $3, description = $4
		WHERE id = $5
		` + returning

	p, err := r.mutate(ctx, "prompt updated", func(tx *sql.Tx) (Prompt, error) {
		return repository.QueryOne(ctx, tx, q,
			[]any{cmd.Name, cmd.Stage, cmd.Instructions, cmd.Description, id}, scanPrompt)
	})
	if err == nil {
		// Moving an active prompt to another stage changes both stages.
		r.instructions.Flush()
	}
	return p, err
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.mutate(ctx, "prompt deleted", func(tx *sql.Tx) (Prompt, error) {
		q := `DELETE FROM prompts WHERE id = $1 ` + returning
		return repository.QueryOne(ctx, tx, q, []any{id}, scanPrompt)
	})
	return err
}

// Activate makes id the stage's only active prompt.
func (r *repo) Activate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	return r.mutate(ctx, "prompt activated", func(tx *sql.Tx) (Prompt, error) {
		findQ, findArgs := query.NewBuilder(r.projection).BuildSingle("ID", id)
		target, err := repository.QueryOne(ctx, tx, findQ, findArgs, scanPrompt)
		if err != nil {
			return Prompt{}, err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE prompts SET active = FALSE WHERE stage = $1 AND active = TRUE`,
			target.Stage,
		); err != nil {
			return Prompt{}, fmt.Errorf("deactivate current: %w", err)
		}

		q := `UPDATE prompts SET active = TRUE WHERE id = $1 ` + returning
		return repository.QueryOne(ctx, tx, q, []any{id}, scanPrompt)
	})
}

func (r *repo) Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	return r.mutate(ctx, "prompt deactivated", func(tx *sql.Tx) (Prompt, error) {
		q := `UPDATE prompts SET active = FALSE WHERE id = $1 ` + returning
		return repository.QueryOne(ctx, tx, q, []any{id}, scanPrompt)
	})
}

// mutate runs fn in a transaction, maps storage errors to domain errors,
// and drops the cached instructions of the affected stage.
func (r *repo) mutate(ctx context.Context, msg string, fn func(*sql.Tx) (Prompt, error)) (*Prompt, error) {
	p, err := repository.WithTx(ctx, r.db, fn)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.instructions.Delete(string(p.Stage))
	r.logger.Info(msg, "id", p.ID, "name", p.Name, "stage", p.Stage, "active", p.Active)
	return &p, nil
}
