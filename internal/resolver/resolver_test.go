package resolver_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"testing"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/classify"
	"github.com/zxlitianshu/Kekari-agent/internal/classify/classifytest"
	"github.com/zxlitianshu/Kekari-agent/internal/resolver"
	"github.com/zxlitianshu/Kekari-agent/internal/sessions"
)

func ptr(f float64) *float64 { return &f }

func candidates() []catalog.Entity {
	return []catalog.Entity{
		{SKU: "CH-RED-1", Title: "Oak chair", Category: "Chair", Color: "Red", Material: "Oak", Weight: ptr(2.5)},
		{SKU: "CH-BLU-2", Title: "Oak chair", Category: "Chair", Color: "Blue", Material: "Oak", Weight: ptr(3.0)},
		{SKU: "TB-OAK-3", Title: "Dining table", Category: "Table", Color: "Natural", Material: "Oak", Weight: ptr(12)},
		{SKU: "LMP4", Title: "Desk lamp", Category: "Lamp", Color: "Dark Red", Material: "Metal"},
	}
}

func newResolver(c classify.Classifier) *resolver.Resolver {
	return resolver.New(c, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestResolveTiers(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		history   []sessions.Turn
		wantSKUs  []string
		wantTier  resolver.Tier
	}{
		{"exact sku any case", "change the background of ch-red-1", nil, []string{"CH-RED-1"}, resolver.TierExactSKU},
		{"sku beats attributes", "ch-blu-2 not the red one", nil, []string{"CH-BLU-2"}, resolver.TierExactSKU},
		{"sku next to han text", "上架CH-BLU-2", nil, []string{"CH-BLU-2"}, resolver.TierExactSKU},
		{"color and category", "the blue chair", nil, []string{"CH-BLU-2"}, resolver.TierCharacteristic},
		{"color alone", "the red one", nil, []string{"CH-RED-1"}, resolver.TierCharacteristic},
		{"longest phrase wins", "the dark red one", nil, []string{"LMP4"}, resolver.TierCharacteristic},
		{"explicit pair", "color: blue", nil, []string{"CH-BLU-2"}, resolver.TierCharacteristic},
		{"natural weight", "the 2.5 kg one", nil, []string{"CH-RED-1"}, resolver.TierCharacteristic},
		{"weight tolerance", "weight: 2.55", nil, []string{"CH-RED-1"}, resolver.TierCharacteristic},
		{"shared material", "the oak ones", nil, []string{"CH-RED-1", "CH-BLU-2", "TB-OAK-3"}, resolver.TierCharacteristic},
		{"characteristic before ordinal", "the second red one", nil, []string{"CH-RED-1"}, resolver.TierCharacteristic},
		{"ordinal word", "the second one", nil, []string{"CH-BLU-2"}, resolver.TierOrdinal},
		{"ordinal suffix", "the 3rd", nil, []string{"TB-OAK-3"}, resolver.TierOrdinal},
		{"hash ordinal", "#1 please", nil, []string{"CH-RED-1"}, resolver.TierOrdinal},
		{"last", "the last one", nil, []string{"LMP4"}, resolver.TierOrdinal},
		{"several ordinals", "the first and third", nil, []string{"CH-RED-1", "TB-OAK-3"}, resolver.TierOrdinal},
		{"chinese ordinal", "第三个", nil, []string{"TB-OAK-3"}, resolver.TierOrdinal},
		{"chinese last", "最后一个", nil, []string{"LMP4"}, resolver.TierOrdinal},
		{
			"deictic from history", "make it brighter",
			[]sessions.Turn{
				{Role: sessions.RoleUser, Content: "show me chairs"},
				{Role: sessions.RoleAssistant, Content: "Here is the new image for CH-BLU-2. Keep it?"},
			},
			[]string{"CH-BLU-2"}, resolver.TierOrdinal,
		},
		{
			"plural deictic", "publish these",
			[]sessions.Turn{{Role: sessions.RoleAssistant, Content: "I found CH-RED-1 and LMP4."}},
			[]string{"CH-RED-1", "LMP4"}, resolver.TierOrdinal,
		},
		{"category", "the chairs", nil, []string{"CH-RED-1", "CH-BLU-2"}, resolver.TierCategory},
		{"category before all", "all the tables", nil, []string{"TB-OAK-3"}, resolver.TierCategory},
		{"all", "all of them", nil, []string{"CH-RED-1", "CH-BLU-2", "TB-OAK-3", "LMP4"}, resolver.TierAll},
		{"all chinese", "全部上架", nil, []string{"CH-RED-1", "CH-BLU-2", "TB-OAK-3", "LMP4"}, resolver.TierAll},
		{"loose fallback", "color: dark", nil, []string{"LMP4"}, resolver.TierFallback},
		{"loose fallback combined", "material: met, weight: 1", nil, nil, resolver.TierNone},
		{"ordinal out of range", "the tenth one", nil, nil, resolver.TierNone},
		{
			"ambiguous deictic", "make it brighter",
			[]sessions.Turn{{Role: sessions.RoleAssistant, Content: "I found CH-RED-1 and CH-BLU-2."}},
			nil, resolver.TierNone,
		},
		{"nothing", "hello there", nil, nil, resolver.TierNone},
	}

	r := newResolver(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(context.Background(), tt.utterance, candidates(), tt.history)
			if !slices.Equal(got.SelectedSKUs, tt.wantSKUs) {
				t.Errorf("Resolve(%q) skus = %v, want %v", tt.utterance, got.SelectedSKUs, tt.wantSKUs)
			}
			if got.Tier != tt.wantTier {
				t.Errorf("Resolve(%q) tier = %v, want %v", tt.utterance, got.Tier, tt.wantTier)
			}
			if got.Empty() && got.Confidence != 0 {
				t.Errorf("Resolve(%q) confidence = %v on empty result", tt.utterance, got.Confidence)
			}
		})
	}
}

func TestResolveCharacteristicOutranksRecency(t *testing.T) {
	cands := []catalog.Entity{{SKU: "A", Color: "black"}, {SKU: "B", Color: "yellow"}}
	history := []sessions.Turn{{Role: sessions.RoleAssistant, Content: "A is a great pick."}}

	got := newResolver(nil).Resolve(context.Background(), "the yellow one", cands, history)
	if !slices.Equal(got.SelectedSKUs, []string{"B"}) {
		t.Errorf("Resolve() skus = %v, want [B]", got.SelectedSKUs)
	}
	if got.Confidence < 0.7 {
		t.Errorf("Resolve() confidence = %v, want >= 0.7", got.Confidence)
	}
}

func TestResolveSingleCandidateDeictic(t *testing.T) {
	only := candidates()[2:3]
	got := newResolver(nil).Resolve(context.Background(), "这个换成白色背景", only, nil)
	if !slices.Equal(got.SelectedSKUs, []string{"TB-OAK-3"}) {
		t.Errorf("Resolve() skus = %v, want [TB-OAK-3]", got.SelectedSKUs)
	}
}

func TestResolveEmpty(t *testing.T) {
	r := newResolver(nil)
	if got := r.Resolve(context.Background(), "the first one", nil, nil); !got.Empty() {
		t.Errorf("Resolve() with no candidates = %v, want empty", got.SelectedSKUs)
	}
	if got := r.Resolve(context.Background(), "   ", candidates(), nil); !got.Empty() {
		t.Errorf("Resolve() with blank utterance = %v, want empty", got.SelectedSKUs)
	}
}

func TestResolveWithinScope(t *testing.T) {
	shown := candidates()[:3]
	known := candidates()[3:]

	tests := []struct {
		name      string
		utterance string
		scope     resolver.Scope
		wantSKUs  []string
	}{
		{"ordinal indexes shown list", "the last one", resolver.Scope{Shown: shown, Known: known}, []string{"TB-OAK-3"}},
		{"everything covers shown list", "all of them", resolver.Scope{Shown: shown, Known: known}, []string{"CH-RED-1", "CH-BLU-2", "TB-OAK-3"}},
		{"sku reaches known", "lmp4 please", resolver.Scope{Shown: shown, Known: known}, []string{"LMP4"}},
		{"attribute reaches known", "the dark red one", resolver.Scope{Shown: shown, Known: known}, []string{"LMP4"}},
		{"known listed when nothing shown", "the first one", resolver.Scope{Known: known}, []string{"LMP4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newResolver(nil).ResolveWithin(context.Background(), tt.utterance, tt.scope, nil)
			if !slices.Equal(got.SelectedSKUs, tt.wantSKUs) {
				t.Errorf("ResolveWithin(%q) skus = %v, want %v", tt.utterance, got.SelectedSKUs, tt.wantSKUs)
			}
		})
	}
}

func TestResolveDoesNotMutate(t *testing.T) {
	in := candidates()
	want := candidates()
	newResolver(nil).Resolve(context.Background(), "the blue chair", in, nil)
	if !reflect.DeepEqual(in, want) {
		t.Error("Resolve() modified its candidates")
	}
}

func TestResolveAssisted(t *testing.T) {
	fake := &classifytest.Fake{
		SelectFunc: func(in classify.SelectInput) (classify.SelectDecision, error) {
			if len(in.Candidates) != 4 {
				t.Errorf("Select() got %d candidates, want 4", len(in.Candidates))
			}
			return classify.SelectDecision{
				SelectedSKUs: []string{"ch-blu-2"},
				Tier:         2,
				Confidence:   0.82,
				Reasoning:    "the comfortable one is blue",
			}, nil
		},
	}

	got := newResolver(fake).Resolve(context.Background(), "the comfy one", candidates(), nil)
	if !slices.Equal(got.SelectedSKUs, []string{"CH-BLU-2"}) {
		t.Errorf("Resolve() skus = %v, want [CH-BLU-2]", got.SelectedSKUs)
	}
	if !got.Assisted {
		t.Error("Resolve() Assisted = false, want true")
	}
	if got.Confidence != 0.82 {
		t.Errorf("Resolve() confidence = %v, want 0.82", got.Confidence)
	}
}

func TestResolveAssistedSkippedWhenDeterministic(t *testing.T) {
	fake := &classifytest.Fake{}
	newResolver(fake).Resolve(context.Background(), "the second one", candidates(), nil)
	if n := fake.Calls("Select"); n != 0 {
		t.Errorf("Select() called %d times, want 0", n)
	}
}

func TestResolveAssistedFailureFallsThrough(t *testing.T) {
	fake := &classifytest.Fake{
		SelectFunc: func(classify.SelectInput) (classify.SelectDecision, error) {
			return classify.SelectDecision{}, errors.New("timeout")
		},
	}
	got := newResolver(fake).Resolve(context.Background(), "colour: dark", candidates(), nil)
	if got.Tier != resolver.TierFallback {
		t.Errorf("Resolve() tier = %v, want %v", got.Tier, resolver.TierFallback)
	}
	if fake.Calls("Select") != 1 {
		t.Errorf("Select() calls = %d, want 1", fake.Calls("Select"))
	}
}

func TestValidateSelection(t *testing.T) {
	tests := []struct {
		name    string
		d       classify.SelectDecision
		wantErr bool
	}{
		{"valid", classify.SelectDecision{SelectedSKUs: []string{"LMP4"}, Tier: 3, Confidence: 0.9}, false},
		{"empty", classify.SelectDecision{Tier: 3, Confidence: 0.9}, true},
		{"unknown sku", classify.SelectDecision{SelectedSKUs: []string{"LMP4", "NOPE"}, Tier: 3, Confidence: 0.9}, true},
		{"low confidence", classify.SelectDecision{SelectedSKUs: []string{"LMP4"}, Tier: 3, Confidence: 0.69}, true},
		{"confidence above one", classify.SelectDecision{SelectedSKUs: []string{"LMP4"}, Tier: 3, Confidence: 1.2}, true},
		{"tier one", classify.SelectDecision{SelectedSKUs: []string{"LMP4"}, Tier: 1, Confidence: 0.9}, true},
		{"tier six", classify.SelectDecision{SelectedSKUs: []string{"LMP4"}, Tier: 6, Confidence: 0.9}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.ValidateSelection(tt.d, candidates())
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSelection() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSelectionDedupes(t *testing.T) {
	d := classify.SelectDecision{SelectedSKUs: []string{"lmp4", "LMP4", "tb-oak-3"}, Tier: 5, Confidence: 1}
	got, err := resolver.ValidateSelection(d, candidates())
	if err != nil {
		t.Fatalf("ValidateSelection() error = %v", err)
	}
	if !slices.Equal(got.SelectedSKUs, []string{"LMP4", "TB-OAK-3"}) {
		t.Errorf("ValidateSelection() skus = %v, want [LMP4 TB-OAK-3]", got.SelectedSKUs)
	}
}
