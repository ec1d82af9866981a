//nolint:revive // exported
package mauth

// Kind selects which auth variant is current. Switching kinds never clears
// the other variants' stored fields, so toggling back and forth preserves
// prior input.
type Kind int8

const (
	KindNone   Kind = 0
	KindBasic  Kind = 1
	KindDigest Kind = 2
	KindBearer Kind = 3
	KindOAuth2 Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBasic:
		return "basic"
	case KindDigest:
		return "digest"
	case KindBearer:
		return "bearer"
	case KindOAuth2:
		return "oauthTwo"
	default:
		return "unknown"
	}
}

type Basic struct {
	Active   bool   `json:"active"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type Digest struct {
	Active   bool   `json:"active"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type Bearer struct {
	Active bool   `json:"active"`
	Token  string `json:"token"`
}

// OAuth2 stores the endpoints the UI needs to run a token flow plus whatever
// token that flow (an explicit user action) last wrote. The engine only ever
// attaches GeneratedToken; it never runs the exchange itself.
type OAuth2 struct {
	Active         bool   `json:"active"`
	GeneratedToken string `json:"generated_token"`
	DiscoveryURL   string `json:"discovery_url"`
	AuthURL        string `json:"auth_url"`
	AccessTokenURL string `json:"access_token_url"`
	ClientID       string `json:"client_id"`
	ClientSecret   string `json:"client_secret"`
	Scope          string `json:"scope"`
}

// Auth is the full auth editing state: one current Kind, all variant configs
// retained side by side.
type Auth struct {
	Kind   Kind   `json:"kind"`
	Basic  Basic  `json:"basic"`
	Digest Digest `json:"digest"`
	Bearer Bearer `json:"bearer"`
	OAuth2 OAuth2 `json:"oauth2"`
}

// SetKind is a pure state transition: only the discriminant changes.
func (a Auth) SetKind(k Kind) Auth {
	a.Kind = k
	return a
}
