package fmrest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var errMissingMessages = errors.New(`missing "messages" array`)

// Message is a (code, text) pair reported by the Data API.
// Code 0 means OK.
type Message struct {
	Code int    `json:"code"`
	Text string `json:"text"`
}

// UnmarshalJSON reads the wire shape {"code":"<int>","text"|"message":"..."}.
// The code must be a string holding an integer.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code    *string `json:"code"`
		Text    *string `json:"text"`
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Code == nil {
		return errors.New(`message: missing "code"`)
	}
	code, err := strconv.Atoi(*raw.Code)
	if err != nil {
		return fmt.Errorf("message: code %q is not an integer: %w", *raw.Code, err)
	}

	m.Code = code
	switch {
	case raw.Text != nil:
		m.Text = *raw.Text
	case raw.Message != nil:
		m.Text = *raw.Message
	default:
		m.Text = ""
	}
	return nil
}

// MarshalJSON writes the code back as a string, matching the wire format.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code string `json:"code"`
		Text string `json:"text"`
	}{Code: strconv.Itoa(m.Code), Text: m.Text})
}

func (m Message) String() string {
	return fmt.Sprintf("%d: %s", m.Code, m.Text)
}

// MessageResponse is the body of a rejected call.
type MessageResponse struct {
	Messages []Message `json:"messages"`
}

// UnmarshalJSON requires the messages array to be present.
func (r *MessageResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		Messages *[]Message `json:"messages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Messages == nil {
		return errMissingMessages
	}
	r.Messages = *raw.Messages
	return nil
}

// Envelope is the decoded form of every successful Data API body.
//
// Response is nil when the body carried no "response" object. AuthToken is
// never read from the body; the pipeline fills it from response headers.
type Envelope[T any] struct {
	AuthToken string    `json:"-"`
	Response  *T        `json:"response,omitempty"`
	Messages  []Message `json:"messages"`
}

// UnmarshalJSON decodes "response" (optional) and "messages" (required).
// Unknown keys are ignored.
func (e *Envelope[T]) UnmarshalJSON(data []byte) error {
	var raw struct {
		Response json.RawMessage `json:"response"`
		Messages *[]Message      `json:"messages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Messages == nil {
		return errMissingMessages
	}

	var resp *T
	if len(raw.Response) > 0 && string(raw.Response) != "null" {
		resp = new(T)
		if err := json.Unmarshal(raw.Response, resp); err != nil {
			return fmt.Errorf("response: %w", err)
		}
	}

	e.Response = resp
	e.Messages = *raw.Messages
	if e.Messages == nil {
		e.Messages = []Message{}
	}
	return nil
}

// WithAuthToken returns a copy of e carrying token.
func (e Envelope[T]) WithAuthToken(token string) Envelope[T] {
	e.AuthToken = token
	return e
}

// FirstMessage returns the first message, or a zero Message when there are none.
func (e Envelope[T]) FirstMessage() Message {
	if len(e.Messages) == 0 {
		return Message{}
	}
	return e.Messages[0]
}
