package valueobjects

import (
	"fmt"
	"time"
)

// AuthMethod is the declared credential scheme of a provider.
type AuthMethod string

const (
	AuthMethodNone   AuthMethod = "none"
	AuthMethodAPIKey AuthMethod = "apiKey"
	AuthMethodBasic  AuthMethod = "basic"
	AuthMethodBearer AuthMethod = "bearer"
	AuthMethodOAuth2 AuthMethod = "oauth2"
	AuthMethodCustom AuthMethod = "custom"
)

// StaleTokenWindow is how close to expiry a token is treated as expired,
// so a refresh happens before the backend rejects the request.
const StaleTokenWindow = 5 * time.Minute

// OAuth2Tokens is the mutable token state of an oauth2 auth record. Tokens
// are refreshed in place and persisted through a caller-supplied callback.
type OAuth2Tokens struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
}

// IsStale reports whether the access token is within StaleTokenWindow of
// expiry at the given instant. Tokens without an expiry never go stale.
func (t *OAuth2Tokens) IsStale(now time.Time) bool {
	if t == nil || t.ExpiresAt == nil {
		return false
	}
	return now.Add(StaleTokenWindow).After(*t.ExpiresAt)
}

// Auth is the canonical credential record. Exactly one variant's fields are
// populated, selected by Method. The *Ref fields resolve against an external
// secret store, never against this package.
type Auth struct {
	Method AuthMethod `json:"method"`

	// apiKey
	APIKey string `json:"apiKey,omitempty"`

	// basic
	UsernameRef string `json:"usernameRef,omitempty"`
	PasswordRef string `json:"passwordRef,omitempty"`

	// bearer
	TokenRef string `json:"tokenRef,omitempty"`

	// oauth2
	OAuth2 *OAuth2Tokens `json:"oauth2,omitempty"`
}

// Validate checks the record against a declared auth method.
func (a *Auth) Validate(method AuthMethod) error {
	switch method {
	case AuthMethodNone:
		return nil
	case AuthMethodAPIKey:
		if a == nil || a.APIKey == "" {
			return fmt.Errorf("apiKey auth requires a non-empty key")
		}
	case AuthMethodBasic:
		if a == nil || a.UsernameRef == "" || a.PasswordRef == "" {
			return fmt.Errorf("basic auth requires both usernameRef and passwordRef")
		}
	case AuthMethodBearer:
		if a == nil || a.TokenRef == "" {
			return fmt.Errorf("bearer auth requires a tokenRef")
		}
	case AuthMethodOAuth2:
		if a == nil || a.OAuth2 == nil || a.OAuth2.AccessToken == "" {
			return fmt.Errorf("oauth2 auth requires an access token")
		}
	case AuthMethodCustom:
		return nil
	default:
		return fmt.Errorf("unknown auth method %q", method)
	}
	return nil
}

// Clone returns a deep copy so auth records can be handed out defensively.
func (a *Auth) Clone() *Auth {
	if a == nil {
		return nil
	}
	out := *a
	if a.OAuth2 != nil {
		tokens := *a.OAuth2
		if a.OAuth2.ExpiresAt != nil {
			exp := *a.OAuth2.ExpiresAt
			tokens.ExpiresAt = &exp
		}
		tokens.Scopes = append([]string(nil), a.OAuth2.Scopes...)
		out.OAuth2 = &tokens
	}
	return &out
}
