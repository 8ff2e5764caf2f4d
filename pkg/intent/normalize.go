package intent

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds s into the canonical matching form.
func Normalize(s string) string {
	// cases.Caser is stateful, so one is created per call.
	s = cases.Lower(language.Und).String(norm.NFKC.String(s))

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsControl(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(foldKana(r))
	}
	return b.String()
}

// foldKana maps katakana to the equivalent hiragana.
func foldKana(r rune) rune {
	if r >= 'ァ' && r <= 'ヶ' {
		return r - ('ァ' - 'ぁ')
	}
	return r
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) || r == 'ー'
}

func hasCJK(s string) bool {
	for _, r := range s {
		if isCJK(r) {
			return true
		}
	}
	return false
}

// isWordRune reports whether r belongs to a whitespace-delimited word.
func isWordRune(r rune) bool {
	return (unicode.IsLetter(r) || unicode.IsDigit(r)) && !isCJK(r)
}

type hit int

const (
	hitNone hit = iota
	hitPartial
	hitWhole
)

// find locates a normalized keyword inside a normalized input.
// CJK keywords match by containment; Latin keywords need a word start to
// count as whole.
func find(input, keyword string) hit {
	if keyword == "" || !strings.Contains(input, keyword) {
		return hitNone
	}
	if hasCJK(keyword) {
		if utf8.RuneCountInString(keyword) >= 2 {
			return hitWhole
		}
		return hitPartial
	}
	for offset := 0; offset < len(input); {
		idx := strings.Index(input[offset:], keyword)
		if idx < 0 {
			break
		}
		at := offset + idx
		if at == 0 {
			return hitWhole
		}
		prev, _ := utf8.DecodeLastRuneInString(input[:at])
		if !isWordRune(prev) {
			return hitWhole
		}
		_, size := utf8.DecodeRuneInString(input[at:])
		offset = at + size
	}
	return hitPartial
}

// containsWord reports whether a normalized keyword occurs in input as a
// whole word: bounded on both sides for Latin text, by containment for CJK.
func containsWord(input, keyword string) bool {
	if keyword == "" || !strings.Contains(input, keyword) {
		return false
	}
	if hasCJK(keyword) {
		return true
	}
	for offset := 0; offset < len(input); {
		idx := strings.Index(input[offset:], keyword)
		if idx < 0 {
			return false
		}
		at := offset + idx
		end := at + len(keyword)
		startOK := at == 0
		if !startOK {
			prev, _ := utf8.DecodeLastRuneInString(input[:at])
			startOK = !isWordRune(prev)
		}
		endOK := end == len(input)
		if !endOK {
			next, _ := utf8.DecodeRuneInString(input[end:])
			endOK = !isWordRune(next)
		}
		if startOK && endOK {
			return true
		}
		_, size := utf8.DecodeRuneInString(input[at:])
		offset = at + size
	}
	return false
}
