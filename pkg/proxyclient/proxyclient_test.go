package proxyclient_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"the-dev-tools/apiconsole/pkg/errmap"
	"the-dev-tools/apiconsole/pkg/model/mauth"
	"the-dev-tools/apiconsole/pkg/model/mcall"
	"the-dev-tools/apiconsole/pkg/proxyclient"
	"the-dev-tools/apiconsole/pkg/proxywire"

	"github.com/stretchr/testify/require"
)

// fakeProxy implements the wire protocol: it decodes the envelope and echoes
// back a canned response without performing any outbound call.
func fakeProxy(t *testing.T, wire proxywire.Response, gotEnvelope *proxywire.Envelope) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if gotEnvelope != nil {
			require.NoError(t, proxywire.Unmarshal(raw, gotEnvelope))
		}
		payload, err := proxywire.Marshal(wire)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
	}))
}

func TestExecuteProxied(t *testing.T) {
	var got proxywire.Envelope
	wire := proxywire.NewResponse(201, "Created",
		[]proxywire.Pair{
			{Name: "Content-Type", Value: "application/json"},
			{Name: "Set-Cookie", Value: "a=1"},
			{Name: "Set-Cookie", Value: "b=2"},
		},
		[]byte(`{"id":7}`), 42)
	srv := fakeProxy(t, wire, &got)
	defer srv.Close()

	draft := mcall.RequestDraft{
		Method:  "POST",
		URL:     "https://remote.test/items",
		Headers: []mcall.Header{{Key: "X-Trace", Value: "t1"}},
		Body:    []byte(`{"name":"x"}`),
	}

	client := proxyclient.New()
	resp, err := client.Execute(context.Background(), draft, proxyclient.Options{ProxyURL: srv.URL})
	require.NoError(t, err)

	require.Equal(t, "POST", got.Method)
	require.Equal(t, "https://remote.test/items", got.URL)
	require.Equal(t, []proxywire.Pair{{Name: "X-Trace", Value: "t1"}}, got.Headers)

	require.Equal(t, 201, resp.Status)
	require.Equal(t, "Created", resp.StatusText)
	require.Equal(t, `{"id":7}`, string(resp.Body))
	require.Equal(t, int64(42), resp.TimingMs)
	// Duplicate headers come through in order.
	require.Equal(t, []mcall.Header{
		{Key: "Content-Type", Value: "application/json"},
		{Key: "Set-Cookie", Value: "a=1"},
		{Key: "Set-Cookie", Value: "b=2"},
	}, resp.Headers)
}

func TestExecuteProxiedErrorStatusIsSuccess(t *testing.T) {
	wire := proxywire.NewResponse(404, "Not Found", nil, []byte("missing"), 10)
	srv := fakeProxy(t, wire, nil)
	defer srv.Close()

	client := proxyclient.New()
	resp, err := client.Execute(context.Background(),
		mcall.RequestDraft{Method: "GET", URL: "https://remote.test/gone"},
		proxyclient.Options{ProxyURL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, 404, resp.Status)
	require.Equal(t, "missing", string(resp.Body))
}

func TestExecuteProxiedProxyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "proxy exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := proxyclient.New()
	_, err := client.Execute(context.Background(),
		mcall.RequestDraft{Method: "GET", URL: "https://remote.test/"},
		proxyclient.Options{ProxyURL: srv.URL})
	require.Error(t, err)
	require.Equal(t, errmap.CodeNetworkFailure, errmap.CodeOf(err))
}

func TestExecuteProxiedMalformedWire(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not json"))
	}))
	defer srv.Close()

	client := proxyclient.New()
	_, err := client.Execute(context.Background(),
		mcall.RequestDraft{Method: "GET", URL: "https://remote.test/"},
		proxyclient.Options{ProxyURL: srv.URL})
	require.Error(t, err)
	require.Equal(t, errmap.CodeNetworkFailure, errmap.CodeOf(err))
}

func TestExecuteDirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "token", r.Header.Get("X-Auth"))
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	client := proxyclient.New()
	resp, err := client.Execute(context.Background(),
		mcall.RequestDraft{
			Method:  "GET",
			URL:     srv.URL,
			Headers: []mcall.Header{{Key: "X-Auth", Value: "token"}},
		}, proxyclient.Options{})
	require.NoError(t, err)
	require.Equal(t, 200, resp.Status)
	require.Equal(t, "OK", resp.StatusText)
	require.Equal(t, "hello", string(resp.Body))
	require.GreaterOrEqual(t, resp.TimingMs, int64(0))
}

func TestExecuteDirectDecompressesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte("compressed payload"))
		_ = zw.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	// DisableCompression keeps the stdlib transport from transparently
	// stripping Content-Encoding before we see it.
	client := proxyclient.NewWithHTTP(&http.Client{
		Transport: &http.Transport{DisableCompression: true},
	})
	resp, err := client.Execute(context.Background(),
		mcall.RequestDraft{Method: "GET", URL: srv.URL}, proxyclient.Options{})
	require.NoError(t, err)
	require.Equal(t, "compressed payload", string(resp.Body))
}

func TestExecuteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	client := proxyclient.New()
	_, err := client.Execute(context.Background(),
		mcall.RequestDraft{Method: "GET", URL: srv.URL},
		proxyclient.Options{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	require.Equal(t, errmap.CodeTimeout, errmap.CodeOf(err))
}

func TestExecuteCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	client := proxyclient.New()
	_, err := client.Execute(ctx,
		mcall.RequestDraft{Method: "GET", URL: srv.URL}, proxyclient.Options{})
	require.Error(t, err)
	require.Equal(t, errmap.CodeCancelled, errmap.CodeOf(err))
}

func TestExecuteUnreachable(t *testing.T) {
	// Reserve a port, then close it so the connect is refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	client := proxyclient.New()
	_, err := client.Execute(context.Background(),
		mcall.RequestDraft{Method: "GET", URL: target}, proxyclient.Options{})
	require.Error(t, err)
	require.Equal(t, errmap.CodeNetworkFailure, errmap.CodeOf(err))
}

func TestExecuteWithAuthDigestHandshake(t *testing.T) {
	const challenge = `Digest realm="api", nonce="xyz", qop="auth", algorithm=MD5`

	var calls int
	var retryAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") == "" {
			w.Header().Set("WWW-Authenticate", challenge)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		retryAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("granted"))
	}))
	defer srv.Close()

	state := mauth.Auth{
		Kind:   mauth.KindDigest,
		Digest: mauth.Digest{Active: true, Username: "user", Password: "pass"},
	}

	client := proxyclient.New()
	draft := mcall.RequestDraft{Method: "GET", URL: srv.URL + "/protected"}
	resp, err := client.ExecuteWithAuth(context.Background(), draft, state, proxyclient.Options{})
	require.NoError(t, err)
	require.Equal(t, 200, resp.Status)
	require.Equal(t, "granted", string(resp.Body))
	require.Equal(t, 2, calls)
	require.Contains(t, retryAuth, `username="user"`)
	require.Contains(t, retryAuth, `uri="/protected"`)
	// The original draft stays untouched.
	require.Empty(t, draft.Headers)
}

func TestExecuteWithAuthSecondUnauthorizedStops(t *testing.T) {
	const challenge = `Digest realm="api", nonce="xyz", qop="auth", algorithm=MD5`

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("WWW-Authenticate", challenge)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	state := mauth.Auth{
		Kind:   mauth.KindDigest,
		Digest: mauth.Digest{Active: true, Username: "user", Password: "bad"},
	}

	client := proxyclient.New()
	resp, err := client.ExecuteWithAuth(context.Background(),
		mcall.RequestDraft{Method: "GET", URL: srv.URL}, state, proxyclient.Options{})
	require.NoError(t, err)
	require.Equal(t, 401, resp.Status)
	require.Equal(t, 2, calls)
}

func TestExecuteWithAuthMalformedChallenge(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	state := mauth.Auth{
		Kind:   mauth.KindDigest,
		Digest: mauth.Digest{Active: true, Username: "u", Password: "p"},
	}

	client := proxyclient.New()
	resp, err := client.ExecuteWithAuth(context.Background(),
		mcall.RequestDraft{Method: "GET", URL: srv.URL}, state, proxyclient.Options{})
	require.NoError(t, err)
	require.Equal(t, 401, resp.Status)
	require.Equal(t, 1, calls)
}

func TestExecuteWithAuthNonDigestPassesThrough(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := proxyclient.New()
	resp, err := client.ExecuteWithAuth(context.Background(),
		mcall.RequestDraft{Method: "GET", URL: srv.URL}, mauth.Auth{}, proxyclient.Options{})
	require.NoError(t, err)
	require.Equal(t, 401, resp.Status)
	require.Equal(t, 1, calls)
}
