// Package proxywire is the JSON wire protocol between the console engine and
// the proxy. Headers travel as ordered [name, value] pairs so duplicates and
// ordering survive the trip, and binary bodies are base64-encoded to survive
// the text-safe channel.
package proxywire

import (
	"encoding/base64"
	"fmt"
	"unicode/utf8"

	"the-dev-tools/apiconsole/pkg/model/mcall"

	"github.com/goccy/go-json"
)

const (
	EncodingText   = "text"
	EncodingBase64 = "base64"
)

// Pair is one (name, value) header pair, serialized as a two-element JSON
// array.
type Pair struct {
	Name  string
	Value string
}

func (p Pair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{p.Name, p.Value})
}

func (p *Pair) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 2 {
		return fmt.Errorf("proxywire: header pair must have 2 elements, got %d", len(arr))
	}
	p.Name = arr[0]
	p.Value = arr[1]
	return nil
}

// Envelope is the outbound payload: the request the proxy performs on the
// client's behalf.
type Envelope struct {
	Method       string  `json:"method"`
	URL          string  `json:"url"`
	Headers      []Pair  `json:"headers"`
	Body         *string `json:"body"`
	BodyEncoding *string `json:"bodyEncoding"`
}

// Response is the inbound payload. The proxy copies status, statusText, and
// every header verbatim; it never interprets or filters.
type Response struct {
	Status       int     `json:"status"`
	StatusText   string  `json:"statusText"`
	Headers      []Pair  `json:"headers"`
	Body         *string `json:"body"`
	BodyEncoding string  `json:"bodyEncoding"`
	TimingMs     int64   `json:"timingMs"`
}

// NewEnvelope serializes a draft for transport. Bodies that are not valid
// UTF-8 are base64-encoded.
func NewEnvelope(draft mcall.RequestDraft) Envelope {
	env := Envelope{
		Method:  draft.Method,
		URL:     draft.URL,
		Headers: make([]Pair, len(draft.Headers)),
	}
	for i, h := range draft.Headers {
		env.Headers[i] = Pair{Name: h.Key, Value: h.Value}
	}
	if len(draft.Body) > 0 {
		body, encoding := encodeBody(draft.Body)
		env.Body = &body
		env.BodyEncoding = &encoding
	}
	return env
}

// RequestDraft reconstructs the draft a proxy should execute.
func (e Envelope) RequestDraft() (mcall.RequestDraft, error) {
	draft := mcall.RequestDraft{
		Method:  e.Method,
		URL:     e.URL,
		Headers: make([]mcall.Header, len(e.Headers)),
	}
	for i, p := range e.Headers {
		draft.Headers[i] = mcall.Header{Key: p.Name, Value: p.Value}
	}
	if e.Body != nil {
		encoding := EncodingText
		if e.BodyEncoding != nil {
			encoding = *e.BodyEncoding
		}
		body, err := decodeBody(*e.Body, encoding)
		if err != nil {
			return mcall.RequestDraft{}, err
		}
		draft.Body = body
	}
	return draft, nil
}

// NewResponse builds a wire response from raw response data.
func NewResponse(status int, statusText string, headers []Pair, body []byte, timingMs int64) Response {
	resp := Response{
		Status:       status,
		StatusText:   statusText,
		Headers:      headers,
		BodyEncoding: EncodingText,
		TimingMs:     timingMs,
	}
	if len(body) > 0 {
		encoded, encoding := encodeBody(body)
		resp.Body = &encoded
		resp.BodyEncoding = encoding
	}
	return resp
}

// DecodeBody returns the transport-decoded body bytes.
func (r Response) DecodeBody() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	return decodeBody(*r.Body, r.BodyEncoding)
}

func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func encodeBody(body []byte) (string, string) {
	if utf8.Valid(body) {
		return string(body), EncodingText
	}
	return base64.StdEncoding.EncodeToString(body), EncodingBase64
}

func decodeBody(body, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingBase64:
		return base64.StdEncoding.DecodeString(body)
	case EncodingText, "":
		return []byte(body), nil
	default:
		return nil, fmt.Errorf("proxywire: unknown body encoding %q", encoding)
	}
}
