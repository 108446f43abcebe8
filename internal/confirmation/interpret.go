package confirmation

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/zxlitianshu/Kekari-agent/internal/classify"
)

var (
	// Affirmations that contain a negative keyword; matched before it.
	affirmEnglish = regexp.MustCompile(`\b(no problem|no worries|not bad)\b`)
	affirmChinese = []string{"不错", "没问题", "不要紧"}

	positiveEnglish = regexp.MustCompile(`\b(yes|yeah|yep|ok|okay|incorporate|add it|save it|use it)\b`)
	negativeEnglish = regexp.MustCompile(`\b(no|nope|keep (the )?original|discard|don't use|do not use)\b`)
	publishEnglish  = regexp.MustCompile(`\b(list|publish)\b`)

	positiveChinese = []string{"确认", "可以", "好", "是"}
	negativeChinese = []string{"不要", "算了", "不"}
	publishChinese  = []string{"上架", "发布"}

	fillerEnglish = map[string]bool{
		"please": true, "it": true, "and": true, "the": true, "this": true, "that": true,
		"one": true, "then": true, "also": true, "too": true, "now": true, "thanks": true,
		"thank": true, "you": true, "go": true, "ahead": true, "a": true, "image": true,
		"change": true, "version": true, "new": true, "on": true, "to": true, "store": true,
		"but": true, "original": true, "anyway": true, "instead": true, "just": true,
	}
	fillerChinese = []string{"的", "吧", "了", "呢", "啊", "请", "一下", "这个", "它", "并且", "并", "然后", "就", "吗", "原图", "图", "但"}
)

// Interpret is the keyword pre-pass. It answers only when the reply
// consists of confirmation keywords and filler; anything more, such as a
// follow-up request, is left for the classifier.
func Interpret(utterance string) (Decision, bool) {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return Decision{}, false
	}

	rest := text
	affirm := matchAll(&rest, affirmEnglish, affirmChinese)
	negative := matchAll(&rest, negativeEnglish, negativeChinese)
	positive := matchAll(&rest, positiveEnglish, positiveChinese) || affirm
	publish := matchAll(&rest, publishEnglish, publishChinese)

	if !residueIsFiller(rest) {
		return Decision{}, false
	}

	switch {
	case negative && publish:
		return Decision{Label: RejectButPublish}, true
	case negative:
		return Decision{Label: Reject}, true
	case positive && publish:
		return Decision{Label: AcceptAndPublish}, true
	case positive:
		return Decision{Label: AcceptOnly}, true
	default:
		return Decision{}, false
	}
}

// matchAll reports whether any keyword occurs in *text and blanks every
// occurrence so the residue can be inspected.
func matchAll(text *string, english *regexp.Regexp, chinese []string) bool {
	found := false
	if english.MatchString(*text) {
		found = true
		*text = english.ReplaceAllString(*text, " ")
	}
	for _, k := range chinese {
		if strings.Contains(*text, k) {
			found = true
			*text = strings.ReplaceAll(*text, k, " ")
		}
	}
	return found
}

func residueIsFiller(rest string) bool {
	for _, f := range fillerChinese {
		rest = strings.ReplaceAll(rest, f, " ")
	}
	words := strings.FieldsFunc(rest, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	for _, w := range words {
		if !fillerEnglish[w] {
			return false
		}
	}
	return true
}

// Request is the context needed to interpret a confirmation reply.
type Request struct {
	Utterance   string
	SKU         string
	Instruction string
	History     []classify.Message
}

// Decide interprets a reply with the keyword pre-pass and, failing that,
// the classifier. A classifier failure yields Ambiguous along with the
// error for the caller to log.
func Decide(ctx context.Context, c classify.Classifier, req Request) (Decision, error) {
	if d, ok := Interpret(req.Utterance); ok {
		return d, nil
	}
	if c == nil {
		return Decision{Label: Ambiguous}, nil
	}

	out, err := c.Confirm(ctx, classify.ConfirmInput{
		Utterance:   req.Utterance,
		SKU:         req.SKU,
		Instruction: req.Instruction,
		History:     req.History,
	})
	if err != nil {
		return Decision{Label: Ambiguous}, err
	}

	d := Decision{Label: Normalize(out.Label), FollowUp: strings.TrimSpace(out.FollowUp)}
	if d.Label == Ambiguous {
		d.FollowUp = ""
	}
	return d, nil
}
