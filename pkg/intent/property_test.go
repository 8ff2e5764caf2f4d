package intent

import (
	"fmt"
	"slices"
	"testing"

	"github.com/aretw0/kiosk/pkg/domain"
	"pgregory.net/rapid"
)

func genChoices(t *rapid.T) []domain.Choice {
	n := rapid.IntRange(0, 5).Draw(t, "n")
	words := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{3,8}`), n*2, n*2, rapid.ID[string]).Draw(t, "words")
	choices := make([]domain.Choice, n)
	for i := range choices {
		choices[i] = domain.Choice{
			ID:       fmt.Sprintf("c%d", i),
			Text:     fmt.Sprintf("Choice %d", i),
			Keywords: []string{words[2*i], words[2*i+1]},
			Next:     fmt.Sprintf("n%d", i),
		}
	}
	return choices
}

func TestProperty_BlankInputNeverMatches(t *testing.T) {
	m := New()
	rapid.Check(t, func(t *rapid.T) {
		choices := genChoices(t)
		blank := rapid.StringMatching(`[ \t\n。、！？.,!?]*`).Draw(t, "blank")
		if res := m.Match(blank, choices); res.Kind != domain.MatchNone {
			t.Fatalf("blank input %q matched %v", blank, res)
		}
	})
}

func TestProperty_ResultIsDeclaredAndQualified(t *testing.T) {
	m := New()
	rapid.Check(t, func(t *rapid.T) {
		choices := genChoices(t)
		if len(choices) > 0 {
			i := rapid.IntRange(0, len(choices)-1).Draw(t, "excluded")
			choices[i].ExcludeKeywords = []string{rapid.StringMatching(`[a-z]{3,6}`).Draw(t, "exclude")}
		}
		input := rapid.StringMatching(`[a-z ]{0,40}`).Draw(t, "input")

		res := m.Match(input, choices)
		if res.Confidence < 0 || res.Confidence > 1 {
			t.Fatalf("confidence out of range: %v", res.Confidence)
		}
		if !res.Matched() {
			return
		}
		idx := slices.IndexFunc(choices, func(c domain.Choice) bool { return c.ID == res.Choice.ID })
		if idx < 0 {
			t.Fatalf("matched undeclared choice %q", res.Choice.ID)
		}
		if _, excluded := Score(Normalize(input), choices[idx]); excluded {
			t.Fatalf("matched excluded choice %q for %q", res.Choice.ID, input)
		}
	})
}

func TestProperty_ExactKeywordIsDirect(t *testing.T) {
	m := New()
	rapid.Check(t, func(t *rapid.T) {
		choices := genChoices(t)
		if len(choices) == 0 {
			return
		}
		i := rapid.IntRange(0, len(choices)-1).Draw(t, "choice")
		kw := choices[i].Keywords[rapid.IntRange(0, 1).Draw(t, "kw")]

		res := m.Match(kw, choices)
		if res.Kind != domain.MatchDirect {
			t.Fatalf("exact keyword %q gave %v", kw, res.Kind)
		}
		// Another choice can only win if it scores the same and comes first.
		if res.Choice.ID != choices[i].ID {
			first := slices.IndexFunc(choices, func(c domain.Choice) bool { return c.ID == res.Choice.ID })
			if first > i {
				t.Fatalf("later choice %q beat exact match %q", res.Choice.ID, choices[i].ID)
			}
		}
	})
}
