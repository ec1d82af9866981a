// Package digest implements the client side of HTTP digest authentication:
// parsing a WWW-Authenticate challenge and computing the Authorization
// response value (RFC 7616, falling back to RFC 2617 when the server sends
// no qop).
package digest

import (
	"crypto/md5"  //nolint:gosec // digest auth mandates MD5
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

const (
	// Scheme is the auth-scheme token on both challenge and response.
	Scheme = "Digest"
	// HeaderChallenge is where servers carry the challenge on a 401.
	HeaderChallenge = "WWW-Authenticate"

	AlgorithmMD5    = "MD5"
	AlgorithmSHA256 = "SHA-256"

	qopAuth = "auth"
)

var (
	ErrNotDigest          = errors.New("digest: challenge is not a Digest challenge")
	ErrMissingRealm       = errors.New("digest: challenge has no realm")
	ErrMissingNonce       = errors.New("digest: challenge has no nonce")
	ErrUnsupportedAlgo    = errors.New("digest: unsupported algorithm")
	ErrUnsupportedQop     = errors.New("digest: unsupported qop")
	ErrMissingCredentials = errors.New("digest: username and password required")
)

// Challenge is a parsed WWW-Authenticate: Digest header.
type Challenge struct {
	Realm     string
	Nonce     string
	Opaque    string
	Algorithm string
	Qop       []string
	Stale     bool
}

// ParseChallenge parses the value of a WWW-Authenticate header. A malformed
// or non-Digest value returns an error; callers then surface the original
// 401 without retrying.
func ParseChallenge(headerValue string) (Challenge, error) {
	trimmed := strings.TrimSpace(headerValue)
	if len(trimmed) < len(Scheme) || !strings.EqualFold(trimmed[:len(Scheme)], Scheme) {
		return Challenge{}, ErrNotDigest
	}
	rest := strings.TrimSpace(trimmed[len(Scheme):])

	ch := Challenge{Algorithm: AlgorithmMD5}
	for _, part := range splitParams(rest) {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.Trim(strings.TrimSpace(value), `"`)
		switch key {
		case "realm":
			ch.Realm = value
		case "nonce":
			ch.Nonce = value
		case "opaque":
			ch.Opaque = value
		case "algorithm":
			ch.Algorithm = value
		case "qop":
			for _, q := range strings.Split(value, ",") {
				if q = strings.TrimSpace(q); q != "" {
					ch.Qop = append(ch.Qop, q)
				}
			}
		case "stale":
			ch.Stale = strings.EqualFold(value, "true")
		}
	}
	if ch.Realm == "" {
		return Challenge{}, ErrMissingRealm
	}
	if ch.Nonce == "" {
		return Challenge{}, ErrMissingNonce
	}
	return ch, nil
}

// splitParams splits a comma-separated parameter list, respecting quoted
// strings (a nonce may contain commas).
func splitParams(s string) []string {
	var parts []string
	var b strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			b.WriteByte(c)
		case c == ',' && !inQuotes:
			if p := strings.TrimSpace(b.String()); p != "" {
				parts = append(parts, p)
			}
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	if p := strings.TrimSpace(b.String()); p != "" {
		parts = append(parts, p)
	}
	return parts
}

// Answer computes the Authorization header value for a challenge. The uri
// argument is the request-uri (path plus query), not the absolute URL.
func Answer(ch Challenge, username, password, method, uri string) (string, error) {
	if username == "" && password == "" {
		return "", ErrMissingCredentials
	}

	newHash, err := hasherFor(ch.Algorithm)
	if err != nil {
		return "", err
	}
	h := func(data string) string {
		hh := newHash()
		hh.Write([]byte(data))
		return hex.EncodeToString(hh.Sum(nil))
	}

	ha1 := h(username + ":" + ch.Realm + ":" + password)
	ha2 := h(method + ":" + uri)

	useQop := false
	for _, q := range ch.Qop {
		if q == qopAuth {
			useQop = true
			break
		}
	}
	if !useQop && len(ch.Qop) > 0 {
		// Server demands qop but not one we speak (e.g. auth-int only).
		return "", ErrUnsupportedQop
	}

	var b strings.Builder
	fmt.Fprintf(&b, `%s username=%q, realm=%q, nonce=%q, uri=%q`, Scheme, username, ch.Realm, ch.Nonce, uri)

	if useQop {
		cnonce, err := newCnonce()
		if err != nil {
			return "", err
		}
		const nc = "00000001"
		response := h(ha1 + ":" + ch.Nonce + ":" + nc + ":" + cnonce + ":" + qopAuth + ":" + ha2)
		fmt.Fprintf(&b, `, response=%q, qop=%s, nc=%s, cnonce=%q`, response, qopAuth, nc, cnonce)
	} else {
		// RFC 2617 compatibility mode.
		response := h(ha1 + ":" + ch.Nonce + ":" + ha2)
		fmt.Fprintf(&b, `, response=%q`, response)
	}

	fmt.Fprintf(&b, `, algorithm=%s`, ch.Algorithm)
	if ch.Opaque != "" {
		fmt.Fprintf(&b, `, opaque=%q`, ch.Opaque)
	}
	return b.String(), nil
}

func hasherFor(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case AlgorithmMD5, "":
		return md5.New, nil
	case AlgorithmSHA256:
		return sha256.New, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgo, algorithm)
	}
}

func newCnonce() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
