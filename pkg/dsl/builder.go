package dsl

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/kiosk/internal/validator"
	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/flow"
)

// Builder manages the document construction.
type Builder struct {
	version   string
	storeName string
	order     []string
	languages map[string]*LanguageBuilder
}

// New creates a new document builder.
func New() *Builder {
	return &Builder{
		languages: make(map[string]*LanguageBuilder),
	}
}

// Store sets the store name shown in banners and /info.
func (b *Builder) Store(name string) *Builder {
	b.storeName = name
	return b
}

// Version sets the document version.
func (b *Builder) Version(v string) *Builder {
	b.version = v
	return b
}

// Language returns the builder of one language flow, creating it on first use.
func (b *Builder) Language(code string) *LanguageBuilder {
	if lb, ok := b.languages[code]; ok {
		return lb
	}
	lb := &LanguageBuilder{
		code:     code,
		settings: flow.DefaultSettings(),
		nodes:    make(map[string]*NodeBuilder),
	}
	b.languages[code] = lb
	b.order = append(b.order, code)
	return lb
}

// Build assembles the document and checks its integrity.
func (b *Builder) Build() (*domain.FlowDocument, error) {
	doc := &domain.FlowDocument{
		Version:   b.version,
		StoreName: b.storeName,
		Languages: make(map[string]*domain.LanguageFlow, len(b.languages)),
	}
	for _, code := range b.order {
		doc.Languages[code] = b.languages[code].build()
	}
	if err := validator.ValidateDocument(doc, domain.EntryNodeID); err != nil {
		return nil, fmt.Errorf("invalid flow: %w", err)
	}
	return doc, nil
}

// Source builds the document and encodes it as a JSON flow source.
func (b *Builder) Source() ([]byte, error) {
	doc, err := b.Build()
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// LanguageBuilder configures the graph of one language.
type LanguageBuilder struct {
	code      string
	selection bool
	settings  domain.Settings
	nodes     map[string]*NodeBuilder
}

// Add creates a new node in the language graph.
// If the node already exists, it returns the existing builder.
func (l *LanguageBuilder) Add(id string) *NodeBuilder {
	if nb, ok := l.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{node: domain.Node{ID: id}}
	l.nodes[id] = nb
	return nb
}

// Settings replaces the kiosk parameters of the language.
func (l *LanguageBuilder) Settings(s domain.Settings) *LanguageBuilder {
	l.settings = s
	return l
}

// SelectsLanguage marks the flow as starting with a language choice.
func (l *LanguageBuilder) SelectsLanguage() *LanguageBuilder {
	l.selection = true
	return l
}

func (l *LanguageBuilder) build() *domain.LanguageFlow {
	lf := &domain.LanguageFlow{
		LanguageSelection: l.selection,
		Settings:          l.settings,
		Nodes:             make(map[string]*domain.Node, len(l.nodes)),
	}
	for id, nb := range l.nodes {
		n := nb.Build()
		lf.Nodes[id] = &n
	}
	return lf
}
