package flow

import (
	_ "embed"
	"sync"

	"github.com/aretw0/kiosk/pkg/domain"
)

//go:embed fallback.json
var fallbackSource []byte

var (
	fallbackOnce sync.Once
	fallbackDoc  *domain.FlowDocument
)

// Fallback returns the built-in banking flow for Japanese and English.
// It is used whenever the configured source cannot be converted.
// Each call returns an independent copy.
func Fallback() *domain.FlowDocument {
	fallbackOnce.Do(func() {
		doc, err := Load(fallbackSource)
		if err != nil {
			// The embedded document is covered by tests; failing here is a build defect.
			panic("flow: invalid built-in fallback: " + err.Error())
		}
		fallbackDoc = doc
	})
	return Clone(fallbackDoc)
}

// FallbackSource returns the raw bytes of the built-in flow.
func FallbackSource() []byte {
	out := make([]byte, len(fallbackSource))
	copy(out, fallbackSource)
	return out
}
