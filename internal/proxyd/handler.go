package proxyd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"the-dev-tools/apiconsole/pkg/model/mcall"
	"the-dev-tools/apiconsole/pkg/proxywire"
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Handler accepts a proxywire envelope, performs the outbound request, and
// returns the full response verbatim. It never interprets or filters
// response headers; Set-Cookie and friends travel back untouched.
type Handler struct {
	client HttpClient
	logger *slog.Logger
	cfg    Config
}

func NewHandler(client HttpClient, logger *slog.Logger, cfg Config) *Handler {
	return &Handler{client: client, logger: logger, cfg: cfg}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "only POST is accepted")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	var env proxywire.Envelope
	if err := proxywire.Unmarshal(payload, &env); err != nil {
		writeError(w, http.StatusBadRequest, "malformed envelope")
		return
	}
	draft, err := env.RequestDraft()
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed envelope body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
	defer cancel()

	outbound, err := buildOutbound(ctx, draft)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid outbound request")
		return
	}

	start := time.Now()
	resp, err := h.client.Do(outbound)
	if err != nil {
		h.logger.Warn("outbound request failed", "method", draft.Method, "url", draft.URL, "error", err)
		writeError(w, http.StatusBadGateway, "outbound request failed")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		writeError(w, http.StatusBadGateway, "outbound response could not be read")
		return
	}
	timing := time.Since(start).Milliseconds()

	pairs := make([]proxywire.Pair, 0, len(resp.Header))
	for key, values := range resp.Header {
		for _, value := range values {
			pairs = append(pairs, proxywire.Pair{Name: key, Value: value})
		}
	}

	wire := proxywire.NewResponse(resp.StatusCode, statusText(resp), pairs, body, timing)
	out, err := proxywire.Marshal(wire)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not encode response")
		return
	}

	h.logger.Info("proxied request", "method", draft.Method, "url", draft.URL, "status", resp.StatusCode, "timing_ms", timing)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func buildOutbound(ctx context.Context, draft mcall.RequestDraft) (*http.Request, error) {
	var body io.Reader
	if len(draft.Body) > 0 {
		body = bytes.NewReader(draft.Body)
	}
	req, err := http.NewRequestWithContext(ctx, draft.Method, draft.URL, body)
	if err != nil {
		return nil, err
	}
	for _, hd := range draft.Headers {
		req.Header.Add(hd.Key, hd.Value)
	}
	return req, nil
}

// statusText strips the numeric prefix Go prepends to resp.Status.
func statusText(resp *http.Response) string {
	if text, found := strings.CutPrefix(resp.Status, fmt.Sprintf("%d ", resp.StatusCode)); found {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":` + quote(message) + `}`))
}

func quote(s string) string {
	out, _ := proxywire.Marshal(s)
	return string(out)
}
