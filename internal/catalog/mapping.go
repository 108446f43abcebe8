package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/zxlitianshu/Kekari-agent/pkg/query"
	"github.com/zxlitianshu/Kekari-agent/pkg/repository"
)

const columns = `sku, title, category, snapshot, modifications, live_ref, published_at, version, created_at, updated_at`

func newProjection(driver string) *query.ProjectionMap {
	return query.
		NewProjectionMap(query.DialectFor(driver), "ready_entities", "r").
		Project("sku", "SKU").
		Project("title", "Title").
		Project("category", "Category").
		Project("snapshot", "Snapshot").
		Project("modifications", "Modifications").
		Project("live_ref", "LiveRef").
		Project("published_at", "PublishedAt").
		Project("version", "Version").
		Project("created_at", "CreatedAt").
		Project("updated_at", "UpdatedAt")
}

var defaultSort = query.SortField{
	Field:      "UpdatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for ready entity listings.
// Category uses exact matching; Title uses case-insensitive contains matching.
type Filters struct {
	Category *string `json:"category,omitempty"`
	Title    *string `json:"title,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Category", f.Category).
		WhereContains("Title", f.Title)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if c := values.Get("category"); c != "" {
		f.Category = &c
	}
	if t := values.Get("title"); t != "" {
		f.Title = &t
	}
	return f
}

func scanRecord(s repository.Scanner) (ReadyEntityRecord, error) {
	var (
		r             ReadyEntityRecord
		title         string
		category      string
		snapshot      []byte
		modifications []byte
		liveRef       sql.NullString
		publishedAt   sql.NullTime
	)

	err := s.Scan(
		&r.SKU,
		&title,
		&category,
		&snapshot,
		&modifications,
		&liveRef,
		&publishedAt,
		&r.Version,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return r, err
	}

	if err := json.Unmarshal(snapshot, &r.Snapshot); err != nil {
		return r, fmt.Errorf("decode snapshot %s: %w", r.SKU, err)
	}
	if err := json.Unmarshal(modifications, &r.Modifications); err != nil {
		return r, fmt.Errorf("decode modifications %s: %w", r.SKU, err)
	}
	if r.Modifications == nil {
		r.Modifications = []Modification{}
	}
	if liveRef.Valid {
		r.Published = &PublishState{LiveRef: liveRef.String}
		if publishedAt.Valid {
			r.Published.PublishedAt = publishedAt.Time.UTC()
		}
	}

	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

// recordArgs returns the encoded columns shared by insert and update.
func recordArgs(r *ReadyEntityRecord) (snapshot, modifications string, liveRef, publishedAt any, err error) {
	snap, err := json.Marshal(r.Snapshot)
	if err != nil {
		return "", "", nil, nil, fmt.Errorf("encode snapshot: %w", err)
	}

	mods := r.Modifications
	if mods == nil {
		mods = []Modification{}
	}
	encoded, err := json.Marshal(mods)
	if err != nil {
		return "", "", nil, nil, fmt.Errorf("encode modifications: %w", err)
	}

	if r.Published != nil {
		liveRef = r.Published.LiveRef
		publishedAt = r.Published.PublishedAt.UTC()
	}
	return string(snap), string(encoded), liveRef, publishedAt, nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
