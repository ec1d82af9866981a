// Package proxyclient executes request drafts, normally by delegating to a
// same-origin proxy that performs the outbound call and echoes back the full
// response. Any received HTTP status, including 4xx/5xx, is a successful
// execution here; only transport-level problems become errors.
package proxyclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"the-dev-tools/apiconsole/pkg/auth"
	"the-dev-tools/apiconsole/pkg/auth/digest"
	"the-dev-tools/apiconsole/pkg/compress"
	"the-dev-tools/apiconsole/pkg/errmap"
	"the-dev-tools/apiconsole/pkg/model/mauth"
	"the-dev-tools/apiconsole/pkg/model/mcall"
	"the-dev-tools/apiconsole/pkg/model/mexec"
	"the-dev-tools/apiconsole/pkg/proxywire"

	"golang.org/x/net/html/charset"
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TimeoutDefault bounds the whole round trip (proxy dispatch + remote call +
// response transfer) when the caller sets none.
const TimeoutDefault = 60 * time.Second

const (
	headerContentType     = "Content-Type"
	headerContentEncoding = "Content-Encoding"
	mimeJSON              = "application/json"
)

// Options configure a single execution.
type Options struct {
	// ProxyURL is the same-origin proxy endpoint. Empty means a direct call,
	// which a browser sandbox may refuse for cross-origin targets.
	ProxyURL string
	Timeout  time.Duration
}

type Client struct {
	http HttpClient
}

func New() *Client {
	// The outer context deadline bounds the round trip; the inner client
	// carries no timeout of its own.
	return &Client{http: &http.Client{}}
}

func NewWithHTTP(h HttpClient) *Client {
	return &Client{http: h}
}

// Execute performs one send. The returned error, when non-nil, is always an
// errmap-coded transport failure; it never encodes an HTTP status.
func (c *Client) Execute(ctx context.Context, draft mcall.RequestDraft, opts Options) (mexec.ProxyResponse, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = TimeoutDefault
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if opts.ProxyURL == "" {
		return c.executeDirect(ctx, draft)
	}
	return c.executeProxied(ctx, draft, opts.ProxyURL)
}

// ExecuteWithAuth runs Execute and, for an active digest state, the 401
// challenge handshake: one unauthenticated send, then at most one resend
// with the computed Authorization header. A second 401 is returned as-is.
func (c *Client) ExecuteWithAuth(ctx context.Context, draft mcall.RequestDraft, authState mauth.Auth, opts Options) (mexec.ProxyResponse, error) {
	resp, err := c.Execute(ctx, draft, opts)
	if err != nil {
		return mexec.ProxyResponse{}, err
	}
	if !auth.WantsDigest(authState) || resp.Status != http.StatusUnauthorized {
		return resp, nil
	}

	challengeValue, ok := findHeader(resp.Headers, digest.HeaderChallenge)
	if !ok {
		return resp, nil
	}
	ch, err := digest.ParseChallenge(challengeValue)
	if err != nil {
		// Absent or malformed challenge: surface the original 401.
		return resp, nil
	}
	answer, err := digest.Answer(ch, authState.Digest.Username, authState.Digest.Password, draft.Method, requestURI(draft.URL))
	if err != nil {
		return resp, nil
	}

	retry := draft.Clone()
	retry.Headers = append(retry.Headers, mcall.Header{Key: auth.HeaderAuthorization, Value: answer})
	return c.Execute(ctx, retry, opts)
}

func (c *Client) executeProxied(ctx context.Context, draft mcall.RequestDraft, proxyURL string) (mexec.ProxyResponse, error) {
	payload, err := proxywire.Marshal(proxywire.NewEnvelope(draft))
	if err != nil {
		return mexec.ProxyResponse{}, errmap.MapRequestError(draft.Method, draft.URL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, proxyURL, bytes.NewReader(payload))
	if err != nil {
		return mexec.ProxyResponse{}, errmap.MapRequestError(draft.Method, draft.URL, err)
	}
	req.Header.Set(headerContentType, mimeJSON)

	resp, err := c.http.Do(req)
	if err != nil {
		return mexec.ProxyResponse{}, errmap.MapRequestError(draft.Method, draft.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return mexec.ProxyResponse{}, errmap.MapRequestError(draft.Method, draft.URL, err)
	}

	// Anything but a well-formed wire response from the proxy is a transport
	// failure, not an in-band result.
	var wire proxywire.Response
	if resp.StatusCode != http.StatusOK {
		return mexec.ProxyResponse{}, errmap.New(errmap.CodeNetworkFailure,
			fmt.Sprintf("proxy returned status %d", resp.StatusCode), nil)
	}
	if err := proxywire.Unmarshal(raw, &wire); err != nil {
		return mexec.ProxyResponse{}, errmap.New(errmap.CodeNetworkFailure, "proxy returned a malformed response", err)
	}

	body, err := wire.DecodeBody()
	if err != nil {
		return mexec.ProxyResponse{}, errmap.New(errmap.CodeNetworkFailure, "proxy response body could not be decoded", err)
	}

	headers := make([]mcall.Header, len(wire.Headers))
	for i, p := range wire.Headers {
		headers[i] = mcall.Header{Key: p.Name, Value: p.Value}
	}

	body, err = normalizeBody(body, headers)
	if err != nil {
		return mexec.ProxyResponse{}, errmap.MapRequestError(draft.Method, draft.URL, err)
	}

	return mexec.ProxyResponse{
		Status:     wire.Status,
		StatusText: wire.StatusText,
		Headers:    headers,
		Body:       body,
		TimingMs:   wire.TimingMs,
	}, nil
}

func (c *Client) executeDirect(ctx context.Context, draft mcall.RequestDraft) (mexec.ProxyResponse, error) {
	var bodyReader io.Reader
	if len(draft.Body) > 0 {
		bodyReader = bytes.NewReader(draft.Body)
	}
	req, err := http.NewRequestWithContext(ctx, draft.Method, draft.URL, bodyReader)
	if err != nil {
		return mexec.ProxyResponse{}, errmap.MapRequestError(draft.Method, draft.URL, err)
	}
	for _, h := range draft.Headers {
		req.Header.Add(h.Key, h.Value)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if isCrossOriginBlocked(err) {
			return mexec.ProxyResponse{}, errmap.New(errmap.CodeCrossOriginBlocked, "", err)
		}
		return mexec.ProxyResponse{}, errmap.MapRequestError(draft.Method, draft.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return mexec.ProxyResponse{}, errmap.MapRequestError(draft.Method, draft.URL, err)
	}
	lapse := time.Since(start)

	headers := convertHeaders(resp.Header)
	body, err = normalizeBody(body, headers)
	if err != nil {
		return mexec.ProxyResponse{}, errmap.MapRequestError(draft.Method, draft.URL, err)
	}

	return mexec.ProxyResponse{
		Status:     resp.StatusCode,
		StatusText: statusText(resp.Status, resp.StatusCode),
		Headers:    headers,
		Body:       body,
		TimingMs:   lapse.Milliseconds(),
	}, nil
}

// normalizeBody undoes Content-Encoding compression and converts the body
// to UTF-8 when the Content-Type names a charset.
func normalizeBody(body []byte, headers []mcall.Header) ([]byte, error) {
	if encoding, ok := findHeader(headers, headerContentEncoding); ok {
		decompressed, err := compress.DecompressWithContentEncodeStr(body, strings.ToLower(encoding))
		if err != nil {
			return nil, err
		}
		body = decompressed
	}

	if contentType, ok := findHeader(headers, headerContentType); ok && contentType != "" {
		reader, err := charset.NewReader(bytes.NewReader(body), contentType)
		if err == nil {
			converted, err := io.ReadAll(reader)
			if err != nil {
				return nil, err
			}
			body = converted
		}
	}
	return body, nil
}

func convertHeaders(h http.Header) []mcall.Header {
	result := make([]mcall.Header, 0, len(h))
	for key, values := range h {
		for _, value := range values {
			result = append(result, mcall.Header{Key: key, Value: value})
		}
	}
	return result
}

func findHeader(headers []mcall.Header, key string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}
	return "", false
}

// requestURI extracts path?query from an absolute URL for the digest A2 hash.
func requestURI(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	uri := u.EscapedPath()
	if uri == "" {
		uri = "/"
	}
	if u.RawQuery != "" {
		uri += "?" + u.RawQuery
	}
	return uri
}

func statusText(status string, code int) string {
	if text, found := strings.CutPrefix(status, fmt.Sprintf("%d ", code)); found {
		return text
	}
	return http.StatusText(code)
}

// isCrossOriginBlocked recognizes the opaque failure a browser runtime
// reports when its same-origin policy refuses a direct call. Under wasm the
// fetch layer hides the real cause, so only the known phrasings are matched.
func isCrossOriginBlocked(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "cors") ||
		strings.Contains(lower, "failed to fetch") ||
		strings.Contains(lower, "networkerror when attempting to fetch")
}
