package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// EntryNodeID is the node every conversation starts at.
const EntryNodeID = "start"

// DefaultQRNodeID is the node that displays the transaction receipt.
const DefaultQRNodeID = "qr_code_display"

// FlowDocument maps a language code to its dialogue graph.
// It is immutable once published; reloads replace it wholesale.
type FlowDocument struct {
	Version   string                   `json:"version,omitempty" yaml:"version,omitempty"`
	StoreName string                   `json:"storeName,omitempty" yaml:"storeName,omitempty"`
	Languages map[string]*LanguageFlow `json:"languages" yaml:"languages"`
}

// LanguageFlow is the dialogue graph of a single language.
type LanguageFlow struct {
	LanguageSelection bool             `json:"languageSelection,omitempty" yaml:"languageSelection,omitempty"`
	Settings          Settings         `json:"settings" yaml:"settings"`
	Nodes             map[string]*Node `json:"nodes" yaml:"nodes"`
}

// Settings holds the per-language kiosk parameters.
type Settings struct {
	AutoStopSeconds int     `json:"autoStopSeconds" yaml:"autoStopSeconds"`
	VoiceSpeed      float64 `json:"voiceSpeed" yaml:"voiceSpeed"`
	QRPassword      string  `json:"qrPassword" yaml:"qrPassword"`
	QRExpiryMinutes int     `json:"qrExpiryMinutes" yaml:"qrExpiryMinutes"`
	QRNodeID        string  `json:"qrNodeId,omitempty" yaml:"qrNodeId,omitempty"`
}

// ReceiptNode returns the id of the node that shows the receipt.
func (s Settings) ReceiptNode() string {
	if s.QRNodeID != "" {
		return s.QRNodeID
	}
	return DefaultQRNodeID
}

// Language returns the flow of the given language.
func (d *FlowDocument) Language(lang string) (*LanguageFlow, error) {
	if d == nil {
		return nil, &LanguageError{Language: lang}
	}
	flow, ok := d.Languages[lang]
	if !ok || flow == nil {
		return nil, &LanguageError{Language: lang}
	}
	return flow, nil
}

// LanguageCodes returns the available languages in a stable order.
func (d *FlowDocument) LanguageCodes() []string {
	if d == nil {
		return nil
	}
	codes := make([]string, 0, len(d.Languages))
	for code := range d.Languages {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Fingerprint returns a content hash of the document.
// Two documents with the same fingerprint are structurally equal.
func (d *FlowDocument) Fingerprint() string {
	if d == nil {
		return ""
	}
	// encoding/json sorts map keys, which makes the encoding canonical.
	data, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Node returns the node with the given id.
func (f *LanguageFlow) Node(id string) (*Node, bool) {
	if f == nil || id == "" {
		return nil, false
	}
	n, ok := f.Nodes[id]
	return n, ok && n != nil
}

// InputFor finds the input node that captures the given field.
// Used when the originating node of a field was not recorded.
func (f *LanguageFlow) InputFor(field string) (*Node, bool) {
	ids := make([]string, 0, len(f.Nodes))
	for id := range f.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := f.Nodes[id]
		if n != nil && n.Type == NodeTypeInput && n.Field == field {
			return n, true
		}
	}
	return nil, false
}

// NodeIDs returns the node ids in a stable order.
func (f *LanguageFlow) NodeIDs() []string {
	ids := make([]string, 0, len(f.Nodes))
	for id := range f.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
