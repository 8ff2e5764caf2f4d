package tui

import (
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders bot messages as markdown using
// glamour. Wrapping is disabled so long Japanese lines are left to the terminal.
func NewRenderer() (func(string) (string, error), error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(0),
	)
	if err != nil {
		return nil, err
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}, nil
}
