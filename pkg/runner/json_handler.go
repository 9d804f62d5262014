package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/aretw0/itpbot"
)

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
// Each reply is one JSON object; each input line is a JSON string, a {"text": "..."}
// object, or plain text.
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

func (h *JSONHandler) Output(ctx context.Context, reply *itpbot.Reply) error {
	return h.Encoder.Encode(reply)
}

func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	for {
		line, err := h.Reader.ReadString('\n')
		text := strings.TrimSpace(line)
		if text != "" {
			return decodeInput(text), nil
		}
		if err != nil {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
}

func decodeInput(line string) string {
	var s string
	if err := json.Unmarshal([]byte(line), &s); err == nil {
		return s
	}
	var msg struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(line), &msg); err == nil && msg.Text != "" {
		return msg.Text
	}
	return line
}
