package flow

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/kiosk/internal/validator"
	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrEmptySource is returned when a source holds no document.
var ErrEmptySource = errors.New("empty flow source")

// DefaultSettings are applied before the settings of a source are decoded.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		AutoStopSeconds: 3,
		VoiceSpeed:      1.0,
		QRExpiryMinutes: 30,
	}
}

// Load parses, normalizes and validates a raw source.
func Load(data []byte) (*domain.FlowDocument, error) {
	raw, err := Parse(data)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateDocument(doc, domain.EntryNodeID); err != nil {
		return nil, err
	}
	return doc, nil
}

// Parse reads a JSON or YAML source into an untyped document.
func Parse(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse flow source: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptySource
	}
	return raw, nil
}

// Decode normalizes an untyped document into a FlowDocument.
//
// Accepted shapes: a {version, storeName, languages} wrapper or a map keyed
// directly by language code. Nodes may be a map keyed by id or a list of
// nodes carrying their id. Missing node types are inferred and a few legacy
// type names are mapped. Decode does not check referential integrity.
func Decode(raw map[string]any) (*domain.FlowDocument, error) {
	doc := &domain.FlowDocument{Languages: make(map[string]*domain.LanguageFlow)}

	langs := raw
	if wrapped, ok := raw["languages"]; ok {
		m, ok := asMap(wrapped)
		if !ok {
			return nil, fmt.Errorf("decode flow: languages must be an object, got %T", wrapped)
		}
		langs = m

		var meta struct {
			Version   string `json:"version"`
			StoreName string `json:"storeName"`
		}
		if err := decode(raw, &meta); err != nil {
			return nil, fmt.Errorf("decode flow metadata: %w", err)
		}
		doc.Version, doc.StoreName = meta.Version, meta.StoreName
	}

	for code, v := range langs {
		m, ok := asMap(v)
		if !ok {
			// Scalars next to language keys are document metadata.
			continue
		}
		lf, err := decodeLanguage(m)
		if err != nil {
			return nil, fmt.Errorf("decode flow language %q: %w", code, err)
		}
		doc.Languages[code] = lf
	}

	if len(doc.Languages) == 0 {
		return nil, &domain.IntegrityError{Reason: "document has no languages"}
	}
	return doc, nil
}

func decodeLanguage(m map[string]any) (*domain.LanguageFlow, error) {
	lf := &domain.LanguageFlow{
		Settings: DefaultSettings(),
		Nodes:    make(map[string]*domain.Node),
	}

	var head struct {
		LanguageSelection bool `json:"languageSelection"`
	}
	if err := decode(m, &head); err != nil {
		return nil, err
	}
	lf.LanguageSelection = head.LanguageSelection

	if s, ok := m["settings"]; ok && s != nil {
		if err := decode(s, &lf.Settings); err != nil {
			return nil, fmt.Errorf("settings: %w", err)
		}
	}

	nodes, err := nodeMaps(m["nodes"])
	if err != nil {
		return nil, err
	}
	for id, nm := range nodes {
		node, err := decodeNode(id, nm)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", id, err)
		}
		lf.Nodes[id] = node
	}
	return lf, nil
}

// nodeMaps accepts nodes as a map keyed by id or as a list.
func nodeMaps(v any) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any)
	switch nodes := v.(type) {
	case nil:
		return nil, errors.New("missing nodes")
	case []any:
		for i, item := range nodes {
			m, ok := asMap(item)
			if !ok {
				return nil, fmt.Errorf("node #%d must be an object, got %T", i, item)
			}
			id, _ := m["id"].(string)
			if id == "" {
				return nil, fmt.Errorf("node #%d has no id", i)
			}
			out[id] = m
		}
	default:
		m, ok := asMap(v)
		if !ok {
			return nil, fmt.Errorf("nodes must be an object or a list, got %T", v)
		}
		for id, item := range m {
			nm, ok := asMap(item)
			if !ok {
				return nil, fmt.Errorf("node %q must be an object, got %T", id, item)
			}
			out[id] = nm
		}
	}
	return out, nil
}

func decodeNode(id string, m map[string]any) (*domain.Node, error) {
	var n domain.Node
	if err := decode(m, &n); err != nil {
		return nil, err
	}
	if n.ID == "" {
		n.ID = id
	}
	n.Type = inferType(&n)
	for i := range n.Choices {
		c := &n.Choices[i]
		if c.ID == "" {
			c.ID = fmt.Sprintf("choice_%d", i+1)
		}
		if c.Text == "" {
			c.Text = c.ID
		}
	}
	return &n, nil
}

func inferType(n *domain.Node) domain.NodeType {
	switch strings.ToLower(strings.TrimSpace(string(n.Type))) {
	case "message", "text", "info":
		return domain.NodeTypeMessage
	case "choice", "select", "buttons", "menu":
		return domain.NodeTypeChoice
	case "input", "form", "text_input":
		return domain.NodeTypeInput
	case "confirmation", "confirm":
		return domain.NodeTypeConfirmation
	case "":
		switch {
		case len(n.Choices) > 0:
			return domain.NodeTypeChoice
		case n.Field != "":
			return domain.NodeTypeInput
		default:
			return domain.NodeTypeMessage
		}
	}
	return n.Type
}

// decode maps semi-structured input onto the json-tagged domain types.
// Scalars are weakly converted and comma separated strings become lists.
func decode(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

// Clone returns a deep copy of a document.
func Clone(doc *domain.FlowDocument) *domain.FlowDocument {
	if doc == nil {
		return nil
	}
	out := &domain.FlowDocument{
		Version:   doc.Version,
		StoreName: doc.StoreName,
		Languages: make(map[string]*domain.LanguageFlow, len(doc.Languages)),
	}
	for code, lf := range doc.Languages {
		if lf == nil {
			continue
		}
		c := &domain.LanguageFlow{
			LanguageSelection: lf.LanguageSelection,
			Settings:          lf.Settings,
			Nodes:             make(map[string]*domain.Node, len(lf.Nodes)),
		}
		for id, n := range lf.Nodes {
			if n == nil {
				continue
			}
			nc := *n
			nc.Choices = make([]domain.Choice, len(n.Choices))
			for i, ch := range n.Choices {
				ch.Keywords = slices.Clone(ch.Keywords)
				ch.ExcludeKeywords = slices.Clone(ch.ExcludeKeywords)
				nc.Choices[i] = ch
			}
			if n.Choices == nil {
				nc.Choices = nil
			}
			c.Nodes[id] = &nc
		}
		out.Languages[code] = c
	}
	return out
}
