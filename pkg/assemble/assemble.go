// Package assemble combines an operation, a server, the session variables,
// and the auth state into an immutable request draft. Later edits to the
// variable map or auth state never affect a draft that already exists.
package assemble

import (
	"fmt"
	"net/url"
	"strings"

	"the-dev-tools/apiconsole/pkg/auth"
	"the-dev-tools/apiconsole/pkg/errmap"
	"the-dev-tools/apiconsole/pkg/model/mauth"
	"the-dev-tools/apiconsole/pkg/model/mcall"
	"the-dev-tools/apiconsole/pkg/varsub"

	"connectrpc.com/connect"
)

const (
	HeaderContentType  = "Content-Type"
	MimeJSON           = "application/json"
	MimeXML            = "application/xml"
	MimeTextPlain      = "text/plain"
	MimeFormUrlEncoded = "application/x-www-form-urlencoded"
	MimeOctetStream    = "application/octet-stream"
)

// Result carries the draft plus the variables that were read while
// building it.
type Result struct {
	Draft    mcall.RequestDraft
	ReadVars map[string]string
}

// Assemble resolves every templated field and merges auth mutations. It
// fails with an invalid_request error when the final URL is not an absolute
// URL; no partial draft is ever returned.
func Assemble(op mcall.Operation, srv mcall.Server, vars varsub.VarMap, authState mauth.Auth) (mcall.RequestDraft, error) {
	res, err := AssembleWithTracking(op, srv, vars, authState)
	if err != nil {
		return mcall.RequestDraft{}, err
	}
	return res.Draft, nil
}

func AssembleWithTracking(op mcall.Operation, srv mcall.Server, vars varsub.VarMap, authState mauth.Auth) (*Result, error) {
	tracker := varsub.NewTracker(vars)

	// Base URL first, then the path template, both against the same map.
	baseURL := tracker.Substitute(srv.URL)
	path := tracker.Substitute(op.Path)
	rawURL := joinURL(baseURL, path)

	// Headers and query params resolve independently, declaration order kept.
	headers := make([]mcall.Header, 0, len(op.Headers)+2)
	for _, h := range op.Headers {
		if !h.Enabled {
			continue
		}
		headers = append(headers, mcall.Header{
			Key:   tracker.Substitute(h.Key),
			Value: tracker.Substitute(h.Value),
		})
	}

	queries := make([]mcall.Query, 0, len(op.Queries))
	for _, q := range op.Queries {
		if !q.Enabled {
			continue
		}
		queries = append(queries, mcall.Query{
			Key:   tracker.Substitute(q.Key),
			Value: tracker.Substitute(q.Value),
		})
	}

	var body []byte
	contentType := ""
	if op.Body != nil {
		contentType = op.Body.MediaType
		switch {
		case len(op.Body.Binary) > 0:
			body = op.Body.Binary
			if contentType == "" {
				contentType = MimeOctetStream
			}
		case op.Body.Template != "":
			body = []byte(tracker.Substitute(op.Body.Template))
		}
	}

	// Auth mutations merge after everything templated; on a header name
	// collision the auth value wins by position.
	mutation := auth.Resolve(authState)
	headers = append(headers, mutation.Headers...)
	queries = append(queries, mutation.Queries...)

	rawURL = appendQueries(rawURL, queries)

	if err := validateAbsoluteURL(rawURL); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument,
			errmap.New(errmap.CodeInvalidRequest, fmt.Sprintf("invalid request URL %q", rawURL), err))
	}

	if contentType != "" && !hasHeader(headers, HeaderContentType) {
		headers = append(headers, mcall.Header{Key: HeaderContentType, Value: contentType})
	}

	return &Result{
		Draft: mcall.RequestDraft{
			Method:      op.Method,
			URL:         rawURL,
			Headers:     headers,
			Body:        body,
			ContentType: contentType,
		},
		ReadVars: tracker.GetReadVars(),
	}, nil
}

// joinURL concatenates a base URL and a path without doubling slashes.
func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	switch {
	case strings.HasSuffix(base, "/") && strings.HasPrefix(path, "/"):
		return base + path[1:]
	case !strings.HasSuffix(base, "/") && !strings.HasPrefix(path, "/"):
		return base + "/" + path
	default:
		return base + path
	}
}

// appendQueries adds query params in declaration order. url.Values.Encode
// sorts keys, which would break the deterministic-order contract, so the
// string is built by hand.
func appendQueries(rawURL string, queries []mcall.Query) string {
	if len(queries) == 0 {
		return rawURL
	}
	var b strings.Builder
	b.WriteString(rawURL)
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	for _, q := range queries {
		b.WriteString(sep)
		b.WriteString(url.QueryEscape(q.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(q.Value))
		sep = "&"
	}
	return b.String()
}

func validateAbsoluteURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func hasHeader(headers []mcall.Header, key string) bool {
	for _, h := range headers {
		if strings.EqualFold(h.Key, key) {
			return true
		}
	}
	return false
}
