package ports

import (
	"context"

	"github.com/aretw0/kiosk/pkg/domain"
)

// Converter transforms an untyped raw document into a FlowDocument.
// Implementations do not need to validate referential integrity; the loader does.
type Converter interface {
	Convert(ctx context.Context, raw map[string]any) (*domain.FlowDocument, error)
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(ctx context.Context, raw map[string]any) (*domain.FlowDocument, error)

// Convert calls f.
func (f ConverterFunc) Convert(ctx context.Context, raw map[string]any) (*domain.FlowDocument, error) {
	return f(ctx, raw)
}
