package resolver

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/language"
)

// measureTolerance is the accepted difference for numeric attributes.
const measureTolerance = 0.1

var (
	textFields    = []string{"color", "material", "scene"}
	numericFields = map[string]bool{"weight": true, "length": true, "width": true, "height": true}

	explicitKey = regexp.MustCompile(`(?i)\b(colou?r|material|scene|category|weight|length|width|height|sku)\s*[:：=]`)
	leadingNum  = regexp.MustCompile(`^\d+(?:\.\d+)?`)
	naturalKg   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:kg|kgs|kilograms?|公斤|千克)`)
)

type attribute struct {
	field  string
	value  string
	number float64
}

func (a attribute) matches(e catalog.Entity) bool {
	if numericFields[a.field] {
		v, ok := e.Measure(a.field)
		return ok && math.Abs(v-a.number) <= measureTolerance+1e-9
	}
	return e.Attribute(a.field) == a.value
}

type attributes struct {
	named      []attribute
	categories []string
}

func (a attributes) hasField(field string) bool {
	return slices.ContainsFunc(a.named, func(x attribute) bool {
		return x.field == field
	})
}

// exactSKU selects candidates whose SKU appears as a token of the utterance.
func exactSKU(utterance string, candidates []catalog.Entity) (Result, bool) {
	tokens := tokenize(utterance)
	skus := selectWhere(candidates, func(e catalog.Entity) bool {
		return slices.ContainsFunc(tokens, func(t string) bool {
			return strings.EqualFold(t, e.SKU)
		})
	})
	if len(skus) == 0 {
		return Result{}, false
	}
	return Result{
		SelectedSKUs: skus,
		Reasoning:    "SKU named directly",
		Confidence:   confidenceExact,
		Tier:         TierExactSKU,
	}, true
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		if unicode.Is(unicode.Han, r) {
			return true
		}
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	})
	out := make([]string, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f)
		if t := strings.Trim(f, "-_"); t != f && t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseAttributes extracts the attributes an utterance names, both as
// explicit "field: value" pairs and as natural phrases drawn from the
// candidates' own attribute values.
func parseAttributes(text string, candidates []catalog.Entity) attributes {
	var attrs attributes

	locs := explicitKey.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		field := text[loc[2]:loc[3]]
		if field == "colour" {
			field = "color"
		}
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		value := strings.Trim(text[loc[1]:end], " \t\n,;，；。.")
		if value == "" || field == "sku" {
			continue
		}
		switch {
		case field == "category":
			attrs.categories = appendUnique(attrs.categories, value)
		case numericFields[field]:
			n, err := strconv.ParseFloat(leadingNum.FindString(value), 64)
			if err != nil {
				continue
			}
			attrs.named = append(attrs.named, attribute{field: field, value: value, number: n})
		default:
			attrs.named = append(attrs.named, attribute{field: field, value: value})
		}
	}

	for _, field := range textFields {
		if attrs.hasField(field) {
			continue
		}
		var found []string
		for _, v := range vocabulary(candidates, field) {
			if containsPhrase(text, v) {
				found = append(found, v)
			}
		}
		for _, v := range longest(found) {
			attrs.named = append(attrs.named, attribute{field: field, value: v})
		}
	}

	if !attrs.hasField("weight") {
		if m := naturalKg.FindStringSubmatch(text); m != nil {
			if n, err := strconv.ParseFloat(m[1], 64); err == nil {
				attrs.named = append(attrs.named, attribute{field: "weight", value: m[1], number: n})
			}
		}
	}

	for _, c := range vocabulary(candidates, "category") {
		if slices.Contains(attrs.categories, c) {
			continue
		}
		if slices.ContainsFunc(categoryForms(c), func(f string) bool { return containsPhrase(text, f) }) {
			attrs.categories = append(attrs.categories, c)
		}
	}

	return attrs
}

func vocabulary(candidates []catalog.Entity, field string) []string {
	var vs []string
	for _, e := range candidates {
		if v := e.Attribute(field); v != "" && !slices.Contains(vs, v) {
			vs = append(vs, v)
		}
	}
	return vs
}

// longest drops phrases contained in another matched phrase, so "dark red"
// is not also read as "red".
func longest(phrases []string) []string {
	var out []string
	for _, p := range phrases {
		if !slices.ContainsFunc(phrases, func(q string) bool {
			return q != p && strings.Contains(q, p)
		}) {
			out = append(out, p)
		}
	}
	return out
}

// categoryForms returns the singular and plural spellings of a category.
func categoryForms(c string) []string {
	if language.HasHan(c) {
		return []string{c}
	}
	forms := []string{c, c + "s", c + "es"}
	if strings.HasSuffix(c, "y") {
		forms = append(forms, strings.TrimSuffix(c, "y")+"ies")
	}
	if strings.HasSuffix(c, "s") && len(c) > 1 {
		forms = append(forms, strings.TrimSuffix(c, "s"))
	}
	return forms
}

// containsPhrase matches phrase at word boundaries. Han phrases match as
// plain substrings since Han text has no word separators.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	if language.HasHan(phrase) {
		return strings.Contains(text, phrase)
	}
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], phrase)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(phrase)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	if unicode.Is(unicode.Han, r) {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// characteristic selects candidates matching every named attribute. A named
// category narrows the match but never qualifies on its own.
func characteristic(attrs attributes, candidates []catalog.Entity) (Result, bool) {
	if len(attrs.named) == 0 {
		return Result{}, false
	}
	skus := selectWhere(candidates, func(e catalog.Entity) bool {
		for _, a := range attrs.named {
			if !a.matches(e) {
				return false
			}
		}
		return len(attrs.categories) == 0 || slices.Contains(attrs.categories, e.Attribute("category"))
	})
	if len(skus) == 0 {
		return Result{}, false
	}

	parts := make([]string, 0, len(attrs.named))
	for _, a := range attrs.named {
		parts = append(parts, a.field+"="+a.value)
	}
	return Result{
		SelectedSKUs: skus,
		Reasoning:    "matched " + strings.Join(parts, ", "),
		Confidence:   confidenceCharacteristic,
		Tier:         TierCharacteristic,
	}, true
}

// categoryWide selects every candidate in the named categories when no
// other attribute qualifies the reference.
func categoryWide(attrs attributes, candidates []catalog.Entity) (Result, bool) {
	if len(attrs.named) > 0 || len(attrs.categories) == 0 {
		return Result{}, false
	}
	skus := selectWhere(candidates, func(e catalog.Entity) bool {
		return slices.Contains(attrs.categories, e.Attribute("category"))
	})
	if len(skus) == 0 {
		return Result{}, false
	}
	return Result{
		SelectedSKUs: skus,
		Reasoning:    "every candidate in " + strings.Join(attrs.categories, ", "),
		Confidence:   confidenceCategory,
		Tier:         TierCategory,
	}, true
}

var (
	allEnglish = regexp.MustCompile(`\b(all|everything|every one|all of them|each of them)\b`)
	allChinese = []string{"全部", "所有", "全都", "都要"}
)

func everything(text string, candidates []catalog.Entity) (Result, bool) {
	if !allEnglish.MatchString(text) && !slices.ContainsFunc(allChinese, func(p string) bool {
		return strings.Contains(text, p)
	}) {
		return Result{}, false
	}
	return Result{
		SelectedSKUs: selectWhere(candidates, func(catalog.Entity) bool { return true }),
		Reasoning:    "every candidate",
		Confidence:   confidenceAll,
		Tier:         TierAll,
	}, true
}

var fallbackHints = []struct {
	field string
	re    *regexp.Regexp
}{
	{"color", regexp.MustCompile(`(?i)colou?r\s*[:：]\s*(\w+)`)},
	{"material", regexp.MustCompile(`(?i)material\s*[:：]\s*(\w+)`)},
	{"category", regexp.MustCompile(`(?i)category\s*[:：]\s*([^,\n]+)`)},
	{"weight", regexp.MustCompile(`(?i)weight\s*[:：]\s*([\d.]+)`)},
	{"sku", regexp.MustCompile(`(?i)sku\s*[:：]\s*([A-Z0-9]+)`)},
}

// fallback is the last resort: loose "field: value" hints where textual
// values match as substrings. Every hint must match.
func fallback(utterance string, candidates []catalog.Entity) (Result, bool) {
	type hint struct {
		field, value string
	}
	var hints []hint
	for _, h := range fallbackHints {
		if m := h.re.FindStringSubmatch(utterance); m != nil {
			hints = append(hints, hint{h.field, strings.ToLower(strings.TrimSpace(m[1]))})
		}
	}
	if len(hints) == 0 {
		return Result{}, false
	}

	skus := selectWhere(candidates, func(e catalog.Entity) bool {
		for _, h := range hints {
			switch h.field {
			case "sku":
				if !strings.EqualFold(e.SKU, h.value) {
					return false
				}
			case "weight":
				want, err := strconv.ParseFloat(h.value, 64)
				got, ok := e.Measure("weight")
				if err != nil || !ok || math.Abs(got-want) > measureTolerance+1e-9 {
					return false
				}
			default:
				if !strings.Contains(e.Attribute(h.field), h.value) {
					return false
				}
			}
		}
		return true
	})
	if len(skus) == 0 {
		return Result{}, false
	}
	return Result{
		SelectedSKUs: skus,
		Reasoning:    fmt.Sprintf("loose match on %d hint(s)", len(hints)),
		Confidence:   confidenceFallback,
		Tier:         TierFallback,
	}, true
}
