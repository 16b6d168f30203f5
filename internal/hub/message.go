package hub

import (
	"encoding/json"
	"errors"
)

// Message is the payload handed to a subscriber: either a batch of lines or
// a catch-up failure.
type Message struct {
	Lines []string
	Err   string
}

// LinesMessage wraps a batch. A nil batch encodes as an empty list.
func LinesMessage(lines []string) Message {
	return Message{Lines: lines}
}

// ErrorMessage reports a failed catch-up read.
func ErrorMessage(err error) Message {
	if err == nil {
		err = errors.New("unknown error")
	}
	return Message{Err: err.Error()}
}

// IsError reports whether the message carries a failure instead of lines.
func (m Message) IsError() bool {
	return m.Err != ""
}

type linesPayload struct {
	Lines []string `json:"lines"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// MarshalJSON encodes {"lines":[...]} or {"error":"..."}.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.IsError() {
		return json.Marshal(errorPayload{Error: m.Err})
	}
	lines := m.Lines
	if lines == nil {
		lines = []string{}
	}
	return json.Marshal(linesPayload{Lines: lines})
}

// UnmarshalJSON accepts either payload shape.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Lines []string `json:"lines"`
		Error *string  `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Error != nil {
		*m = Message{Err: *raw.Error}
		return nil
	}
	if raw.Lines == nil {
		raw.Lines = []string{}
	}
	*m = Message{Lines: raw.Lines}
	return nil
}
