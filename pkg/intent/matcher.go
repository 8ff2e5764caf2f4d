package intent

import (
	"github.com/aretw0/kiosk/pkg/domain"
)

const (
	// DefaultHigh is the confidence at or above which a match is direct.
	DefaultHigh = 0.75
	// DefaultLow is the confidence at or above which a match is ambiguous.
	DefaultLow = 0.35

	weightExact   = 1.0
	weightWhole   = 0.8
	weightPartial = 0.4
	weightExtra   = 0.25
)

// Result is the verdict of matching input against a choice set.
type Result struct {
	Kind       domain.MatchKind
	Choice     domain.Choice
	Confidence float64
}

// Matched reports whether a choice was selected (direct or ambiguous).
func (r Result) Matched() bool {
	return r.Kind == domain.MatchDirect || r.Kind == domain.MatchAmbiguous
}

// Matcher scores free text against choices.
// It holds no mutable state and is safe for concurrent use.
type Matcher struct {
	high float64
	low  float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThresholds sets the direct (high) and ambiguous (low) thresholds.
// Values are clamped to [0,1]; a low above high is lowered to high.
func WithThresholds(high, low float64) Option {
	return func(m *Matcher) {
		m.high = clamp(high)
		m.low = clamp(low)
	}
}

// New creates a Matcher with the default thresholds.
func New(opts ...Option) *Matcher {
	m := &Matcher{high: DefaultHigh, low: DefaultLow}
	for _, opt := range opts {
		opt(m)
	}
	if m.low > m.high {
		m.low = m.high
	}
	return m
}

// Thresholds returns the configured high and low thresholds.
func (m *Matcher) Thresholds() (high, low float64) {
	return m.high, m.low
}

// Match selects the best choice for input.
func (m *Matcher) Match(input string, choices []domain.Choice) Result {
	none := Result{Kind: domain.MatchNone}

	text := Normalize(input)
	if text == "" || len(choices) == 0 {
		return none
	}

	best := -1
	bestScore := 0.0
	for i, c := range choices {
		score, excluded := Score(text, c)
		if excluded {
			continue
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return none
	}

	res := Result{Choice: choices[best], Confidence: bestScore}
	switch {
	case bestScore >= m.high:
		res.Kind = domain.MatchDirect
	case bestScore >= m.low:
		res.Kind = domain.MatchAmbiguous
	default:
		return Result{Kind: domain.MatchNone, Confidence: bestScore}
	}
	return res
}

// Score computes the confidence of a single choice for an already
// normalized input, and whether one of its exclude keywords was hit.
func Score(text string, c domain.Choice) (float64, bool) {
	for _, ex := range c.ExcludeKeywords {
		if excludes(text, Normalize(ex)) {
			return 0, true
		}
	}

	if t := Normalize(c.Text); t != "" && t == text {
		return weightExact, false
	}

	best := 0.0
	hits := 0
	seen := make(map[string]bool, len(c.Keywords))
	for _, kw := range c.Keywords {
		k := Normalize(kw)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true

		var w float64
		switch {
		case k == text:
			w = weightExact
		default:
			switch find(text, k) {
			case hitWhole:
				w = weightWhole
			case hitPartial:
				w = weightPartial
			}
		}
		if w == 0 {
			continue
		}
		hits++
		if w > best {
			best = w
		}
	}
	if hits == 0 {
		return 0, false
	}
	return clamp(best + weightExtra*float64(hits-1)), false
}

// excludes matches exclusion keywords from a word start, so "withdraw"
// also excludes "withdrawal".
func excludes(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	if hasCJK(keyword) {
		return find(text, keyword) != hitNone
	}
	return find(text, keyword) == hitWhole
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
