package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/aretw0/kiosk/pkg/domain"
)

// Frame is one JSON line written by the JSONHandler.
type Frame struct {
	Type    string          `json:"type"`
	View    *domain.View    `json:"view,omitempty"`
	Records []domain.Record `json:"records,omitempty"`
	Message string          `json:"message,omitempty"`
}

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
//
// Each input line is either a Command object or a JSON string / raw text,
// which is treated as free text.
type JSONHandler struct {
	Reader  *bufio.Reader
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Output(ctx context.Context, view *domain.View, fresh []domain.Record) error {
	return h.Encoder.Encode(Frame{Type: "view", View: view, Records: fresh})
}

func (h *JSONHandler) Input(ctx context.Context) (Command, error) {
	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return Command{}, err
	}
	text = strings.TrimSpace(text)

	var cmd Command
	if err := json.Unmarshal([]byte(text), &cmd); err == nil && cmd.Action != "" {
		cmd.Value, err = SanitizeInput(cmd.Value)
		return cmd, err
	}

	var val string
	if err := json.Unmarshal([]byte(text), &val); err == nil {
		text = val
	}
	clean, err := SanitizeInput(text)
	if err != nil {
		return Command{}, err
	}
	return Command{Action: ActionText, Value: clean}, nil
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(Frame{Type: "notice", Message: msg})
}
