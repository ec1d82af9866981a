//nolint:revive // exported
package mcall

import (
	"the-dev-tools/apiconsole/pkg/idwrap"
)

// Operation is one documented endpoint: method + path template + declared
// parameters. It comes out of the description pipeline already normalized;
// this package never parses description documents.
type Operation struct {
	ID          idwrap.IDWrap `json:"id"`
	Name        string        `json:"name"`
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	Description string        `json:"description"`
	Headers     []HeaderDecl  `json:"headers,omitempty"`
	Queries     []QueryDecl   `json:"queries,omitempty"`
	Body        *BodyDecl     `json:"body,omitempty"`
}

// Server is a base URL entry, possibly templated.
type Server struct {
	ID          idwrap.IDWrap `json:"id"`
	URL         string        `json:"url"`
	Description string        `json:"description"`
}

type HeaderDecl struct {
	Key          string  `json:"key"`
	Value        string  `json:"value"`
	Description  string  `json:"description"`
	Enabled      bool    `json:"enabled"`
	DisplayOrder float32 `json:"order"`
}

func (h HeaderDecl) IsEnabled() bool {
	return h.Enabled
}

type QueryDecl struct {
	Key          string  `json:"key"`
	Value        string  `json:"value"`
	Description  string  `json:"description"`
	Enabled      bool    `json:"enabled"`
	DisplayOrder float32 `json:"order"`
}

func (q QueryDecl) IsEnabled() bool {
	return q.Enabled
}

// BodyDecl carries the body template and its declared media type. The media
// type is never inferred from content.
type BodyDecl struct {
	MediaType string `json:"media_type"`
	Template  string `json:"template"`
	Binary    []byte `json:"binary,omitempty"`
}

// Header is one resolved (name, value) pair on a draft. Duplicates are
// allowed and order is preserved end to end.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Query struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RequestDraft is a fully resolved request, immutable once handed to the
// execution client. A new draft is built per send.
type RequestDraft struct {
	Method      string   `json:"method"`
	URL         string   `json:"url"`
	Headers     []Header `json:"headers"`
	Body        []byte   `json:"body,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
}

// Clone returns a deep copy so callers can keep mutating declaration slices
// without touching an already assembled draft.
func (d RequestDraft) Clone() RequestDraft {
	out := d
	out.Headers = make([]Header, len(d.Headers))
	copy(out.Headers, d.Headers)
	if d.Body != nil {
		out.Body = make([]byte, len(d.Body))
		copy(out.Body, d.Body)
	}
	return out
}
