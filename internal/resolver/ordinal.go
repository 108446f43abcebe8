package resolver

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/sessions"
)

// last is the position marker for "the last one".
const last = -1

var (
	ordinalWords = map[string]int{
		"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
		"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
		"last": last,
	}
	chineseDigits = map[rune]int{
		'一': 1, '二': 2, '两': 2, '三': 3, '四': 4, '五': 5,
		'六': 6, '七': 7, '八': 8, '九': 9,
	}

	ordinalWord    = regexp.MustCompile(`\b(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth|last)\b`)
	ordinalSuffix  = regexp.MustCompile(`\b(\d+)(?:st|nd|rd|th)\b`)
	ordinalNumber  = regexp.MustCompile(`(?:#\s*|\bnumber\s+|\bno\.\s*)(\d+)\b`)
	ordinalChinese = regexp.MustCompile(`第\s*([一二两三四五六七八九十\d]+)\s*(?:个|款|件|项|张)?`)
	ordinalLastZh  = regexp.MustCompile(`最后`)

	deicticSingular = regexp.MustCompile(`\b(this one|that one|this|that|it)\b|这个|那个|这款|那款|这件|那件|它`)
	deicticPlural   = regexp.MustCompile(`\b(these|those)\b|这些|那些|它们`)
)

type position struct {
	at    int
	index int
}

// ordinal resolves positional references ("the second one", "第三个") and
// deictic ones ("this one") against the candidate order.
func ordinal(text string, candidates []catalog.Entity, history []sessions.Turn) (Result, bool) {
	positions := ordinalPositions(text)
	if len(positions) > 0 {
		var skus []string
		for _, p := range positions {
			idx := p.index
			if idx == last {
				idx = len(candidates)
			}
			if idx < 1 || idx > len(candidates) {
				continue
			}
			skus = appendUnique(skus, candidates[idx-1].SKU)
		}
		if len(skus) > 0 {
			return Result{
				SelectedSKUs: skus,
				Reasoning:    "positional reference",
				Confidence:   confidenceOrdinal,
				Tier:         TierOrdinal,
			}, true
		}
		return Result{}, false
	}

	plural := deicticPlural.MatchString(text)
	if !plural && !deicticSingular.MatchString(text) {
		return Result{}, false
	}

	if len(candidates) == 1 {
		return Result{
			SelectedSKUs: []string{candidates[0].SKU},
			Reasoning:    "only candidate in context",
			Confidence:   confidenceOrdinal,
			Tier:         TierOrdinal,
		}, true
	}

	mentioned := lastMentioned(candidates, history)
	if len(mentioned) == 0 || (!plural && len(mentioned) != 1) {
		return Result{}, false
	}
	return Result{
		SelectedSKUs: mentioned,
		Reasoning:    "referenced from the previous turn",
		Confidence:   confidenceOrdinal,
		Tier:         TierOrdinal,
	}, true
}

// ordinalPositions returns the 1-based positions named in text, in the
// order they appear. Unparseable numbers are skipped.
func ordinalPositions(text string) []position {
	var out []position

	for _, m := range ordinalWord.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, position{at: m[0], index: ordinalWords[text[m[2]:m[3]]]})
	}
	for _, re := range []*regexp.Regexp{ordinalSuffix, ordinalNumber} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if n, err := strconv.Atoi(text[m[2]:m[3]]); err == nil {
				out = append(out, position{at: m[0], index: n})
			}
		}
	}
	for _, m := range ordinalChinese.FindAllStringSubmatchIndex(text, -1) {
		if n, ok := parseChineseNumber(text[m[2]:m[3]]); ok {
			out = append(out, position{at: m[0], index: n})
		}
	}
	for _, m := range ordinalLastZh.FindAllStringIndex(text, -1) {
		out = append(out, position{at: m[0], index: last})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].at < out[j].at })
	return out
}

// parseChineseNumber handles Arabic digits and Chinese numerals up to 99.
func parseChineseNumber(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	runes := []rune(s)
	switch len(runes) {
	case 1:
		if runes[0] == '十' {
			return 10, true
		}
		n, ok := chineseDigits[runes[0]]
		return n, ok
	case 2:
		if runes[0] == '十' {
			n, ok := chineseDigits[runes[1]]
			return 10 + n, ok
		}
		if runes[1] == '十' {
			n, ok := chineseDigits[runes[0]]
			return n * 10, ok
		}
	case 3:
		tens, ok1 := chineseDigits[runes[0]]
		ones, ok2 := chineseDigits[runes[2]]
		if runes[1] == '十' && ok1 && ok2 {
			return tens*10 + ones, true
		}
	}
	return 0, false
}

// lastMentioned returns the candidates named in the most recent turn that
// names any, in candidate order.
func lastMentioned(candidates []catalog.Entity, history []sessions.Turn) []string {
	for i := len(history) - 1; i >= 0; i-- {
		tokens := tokenize(history[i].Content)
		skus := selectWhere(candidates, func(e catalog.Entity) bool {
			for _, t := range tokens {
				if strings.EqualFold(t, e.SKU) {
					return true
				}
			}
			return false
		})
		if len(skus) > 0 {
			return skus
		}
	}
	return nil
}
