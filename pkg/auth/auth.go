// Package auth turns the current auth editing state into request mutations:
// headers and search params to merge into a draft. Resolution is pure; the
// digest handshake (which needs a server round trip) lives with the
// execution client.
package auth

import (
	"encoding/base64"
	"fmt"
	"time"

	"the-dev-tools/apiconsole/pkg/model/mauth"
	"the-dev-tools/apiconsole/pkg/model/mcall"

	"github.com/golang-jwt/jwt/v5"
)

const (
	HeaderAuthorization = "Authorization"
	SchemeBasic         = "Basic"
	SchemeBearer        = "Bearer"
)

// Mutation is the set of request changes an auth variant contributes.
type Mutation struct {
	Headers []mcall.Header
	Queries []mcall.Query
}

func (m Mutation) Empty() bool {
	return len(m.Headers) == 0 && len(m.Queries) == 0
}

// Resolve produces the mutation for the current variant. Inactive variants
// and kinds with no upfront header (none, digest) contribute nothing.
func Resolve(a mauth.Auth) Mutation {
	switch a.Kind {
	case mauth.KindBasic:
		if !a.Basic.Active {
			return Mutation{}
		}
		return Mutation{Headers: []mcall.Header{{
			Key:   HeaderAuthorization,
			Value: BasicValue(a.Basic.Username, a.Basic.Password),
		}}}
	case mauth.KindBearer:
		if !a.Bearer.Active || a.Bearer.Token == "" {
			return Mutation{}
		}
		return Mutation{Headers: []mcall.Header{{
			Key:   HeaderAuthorization,
			Value: fmt.Sprintf("%s %s", SchemeBearer, a.Bearer.Token),
		}}}
	case mauth.KindOAuth2:
		// The token exchange is an explicit user action that writes
		// GeneratedToken; here we only attach whatever is stored.
		if !a.OAuth2.Active || a.OAuth2.GeneratedToken == "" {
			return Mutation{}
		}
		return Mutation{Headers: []mcall.Header{{
			Key:   HeaderAuthorization,
			Value: fmt.Sprintf("%s %s", SchemeBearer, a.OAuth2.GeneratedToken),
		}}}
	default:
		return Mutation{}
	}
}

// WantsDigest reports whether the execution layer should run the 401
// challenge handshake for this state.
func WantsDigest(a mauth.Auth) bool {
	return a.Kind == mauth.KindDigest && a.Digest.Active
}

func BasicValue(username, password string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return fmt.Sprintf("%s %s", SchemeBasic, encoded)
}

// TokenExpiry extracts the exp claim from a stored OAuth2 token without
// verifying the signature. Purely informational, for the UI to flag a stale
// token before the user sends with it.
func TokenExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
