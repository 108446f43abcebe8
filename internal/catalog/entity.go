// Package catalog implements catalog entities and the durable publish-ready
// store. A ReadyEntityRecord wraps an entity snapshot together with the
// ordered history of image modifications the user accepted for it.
package catalog

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entity is a catalog item identified by its SKU. Attributes may be
// overridden locally without touching the source catalog.
type Entity struct {
	SKU             string   `json:"sku"`
	Title           string   `json:"title,omitempty"`
	Category        string   `json:"category,omitempty"`
	Material        string   `json:"material,omitempty"`
	Color           string   `json:"color,omitempty"`
	Scene           string   `json:"scene,omitempty"`
	Characteristics string   `json:"characteristics,omitempty"`
	Weight          *float64 `json:"weight,omitempty"`
	Length          *float64 `json:"length,omitempty"`
	Width           *float64 `json:"width,omitempty"`
	Height          *float64 `json:"height,omitempty"`
	PrimaryImage    string   `json:"primary_image,omitempty"`
	Images          []string `json:"images,omitempty"`
}

// ImageRef returns the image a transformation should start from.
func (e Entity) ImageRef() string {
	if e.PrimaryImage != "" {
		return e.PrimaryImage
	}
	if len(e.Images) > 0 {
		return e.Images[0]
	}
	return ""
}

// Attribute returns the textual attribute named by field, lower-cased.
// Unknown fields return "".
func (e Entity) Attribute(field string) string {
	var v string
	switch field {
	case "sku":
		v = e.SKU
	case "title":
		v = e.Title
	case "category":
		v = e.Category
	case "material":
		v = e.Material
	case "color":
		v = e.Color
	case "scene":
		v = e.Scene
	case "characteristics":
		v = e.Characteristics
	}
	return strings.ToLower(strings.TrimSpace(v))
}

// Measure returns the numeric attribute named by field.
func (e Entity) Measure(field string) (float64, bool) {
	var p *float64
	switch field {
	case "weight":
		p = e.Weight
	case "length":
		p = e.Length
	case "width":
		p = e.Width
	case "height":
		p = e.Height
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Clone returns a deep copy of e.
func (e Entity) Clone() Entity {
	c := e
	c.Images = slices.Clone(e.Images)
	c.Weight = cloneFloat(e.Weight)
	c.Length = cloneFloat(e.Length)
	c.Width = cloneFloat(e.Width)
	c.Height = cloneFloat(e.Height)
	return c
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Dedupe returns entities with duplicate SKUs removed, keeping first
// occurrences in their original order.
func Dedupe(entities []Entity) []Entity {
	seen := make(map[string]struct{}, len(entities))
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		key := strings.ToUpper(e.SKU)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Modification is one accepted image transformation.
type Modification struct {
	ID             uuid.UUID `json:"id"`
	AssetRef       string    `json:"asset_ref"`
	StorageKey     string    `json:"storage_key,omitempty"`
	Instruction    string    `json:"instruction"`
	Valid          bool      `json:"valid"`
	ValidationNote string    `json:"validation_note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// PublishState records the last successful publish of a record.
type PublishState struct {
	LiveRef     string    `json:"live_ref"`
	PublishedAt time.Time `json:"published_at"`
}

// ReadyEntityRecord is the durable, publish-ready snapshot of an entity.
// Version is the compare-and-swap token; zero means not yet stored.
type ReadyEntityRecord struct {
	SKU           string         `json:"sku"`
	Snapshot      Entity         `json:"snapshot"`
	Modifications []Modification `json:"modifications"`
	Published     *PublishState  `json:"published,omitempty"`
	Version       int64          `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewRecord wraps a snapshot of e in an unsaved record.
func NewRecord(e Entity) *ReadyEntityRecord {
	return &ReadyEntityRecord{
		SKU:           e.SKU,
		Snapshot:      e.Clone(),
		Modifications: []Modification{},
	}
}

// HasModification reports whether a modification with id was already committed.
func (r *ReadyEntityRecord) HasModification(id uuid.UUID) bool {
	return slices.ContainsFunc(r.Modifications, func(m Modification) bool {
		return m.ID == id
	})
}

// Latest returns the most recent valid modification, if any.
func (r *ReadyEntityRecord) Latest() (Modification, bool) {
	for i := len(r.Modifications) - 1; i >= 0; i-- {
		if r.Modifications[i].Valid {
			return r.Modifications[i], true
		}
	}
	return Modification{}, false
}

// EffectiveImages lists the newest valid modification's asset first,
// followed by every original image. Originals are never dropped.
func (r *ReadyEntityRecord) EffectiveImages() []string {
	originals := make([]string, 0, len(r.Snapshot.Images)+1)
	if r.Snapshot.PrimaryImage != "" {
		originals = append(originals, r.Snapshot.PrimaryImage)
	}
	originals = append(originals, r.Snapshot.Images...)

	images := make([]string, 0, len(originals)+1)
	if m, ok := r.Latest(); ok {
		images = append(images, m.AssetRef)
	}
	for _, img := range originals {
		if img != "" && !slices.Contains(images, img) {
			images = append(images, img)
		}
	}
	return images
}

// EffectiveEntity returns the snapshot with its images replaced by EffectiveImages.
func (r *ReadyEntityRecord) EffectiveEntity() Entity {
	e := r.Snapshot.Clone()
	images := r.EffectiveImages()
	e.PrimaryImage = ""
	e.Images = images
	if len(images) > 0 {
		e.PrimaryImage = images[0]
	}
	return e
}
