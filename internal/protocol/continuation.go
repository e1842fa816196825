package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"
)

// ModelParams replays the generation parameters of the paused exchange so the
// host can resume with the connection the operator originally approved.
type ModelParams struct {
	Model       string   `json:"model,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Attachment is one stabilized upload included with a message. Data is
// base64-encoded on the wire.
type Attachment struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	Data   []byte `json:"data"`
}

// Continuation is the payload of a continue-after-confirmation request.
type Continuation struct {
	ConfirmationID string      `json:"confirmation_id"`
	ToolCallID     string      `json:"tool_call_id"`
	Approved       bool        `json:"approved"`
	Params         ModelParams `json:"params"`

	// Arguments replaces the originally proposed tool arguments when the
	// operator modified them. Spliced in raw so the host sees the operator's
	// exact JSON.
	Arguments json.RawMessage `json:"-"`
}

// MarshalBody renders the continuation request body.
func (c Continuation) MarshalBody() ([]byte, error) {
	if c.ConfirmationID == "" {
		return nil, fmt.Errorf("continuation requires a confirmation id")
	}
	body, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal continuation: %w", err)
	}
	if len(c.Arguments) == 0 {
		return body, nil
	}
	body, err = sjson.SetRawBytes(body, "arguments", c.Arguments)
	if err != nil {
		return nil, fmt.Errorf("splice continuation arguments: %w", err)
	}
	return body, nil
}
