package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/kiosk/internal/presentation/graph"
	"github.com/aretw0/kiosk/internal/validator"
	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/flow"
	"github.com/aretw0/kiosk/pkg/ports"
)

// LoadDocument fetches and decodes a flow document without the loader's
// fallback and without integrity checks, so a broken document can still be
// summarized and drawn.
func LoadDocument(ctx context.Context, source ports.Source) (*domain.FlowDocument, error) {
	data, err := source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch flow: %w", err)
	}
	raw, err := flow.Parse(data)
	if err != nil {
		return nil, err
	}
	doc, err := flow.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode flow: %w", err)
	}
	return doc, nil
}

// RunValidate reports per-language reachability and every integrity problem
// of the document behind source.
func RunValidate(ctx context.Context, w io.Writer, source ports.Source, entryNodeID string) error {
	doc, err := LoadDocument(ctx, source)
	if err != nil {
		return err
	}
	for _, line := range validator.Summary(doc, entryNodeID) {
		fmt.Fprintln(w, line)
	}
	if err := validator.ValidateDocument(doc, entryNodeID); err != nil {
		return err
	}
	fmt.Fprintln(w, "Flow is valid! ✅")
	return nil
}

// RunGraph writes the Mermaid diagram of one language flow.
func RunGraph(w io.Writer, doc *domain.FlowDocument, language, entryNodeID string) error {
	lf, err := doc.Language(language)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, graph.GenerateMermaid(lf, entryNodeID, nil))
	return err
}
