// Package valueobjects holds the immutable vocabulary of the data source
// layer: access methods, provider types, capabilities, auth records and the
// resource URI grammar. Everything here is a pure value; there is no mutable
// state and no I/O.
package valueobjects

import (
	"fmt"
)

// AccessMethod says who owns a backend integration: this process (bb) or an
// external Model-Context-Protocol server (mcp).
type AccessMethod string

const (
	AccessMethodBB  AccessMethod = "bb"
	AccessMethodMCP AccessMethod = "mcp"
)

// ParseAccessMethod parses the wire form of an access method.
func ParseAccessMethod(s string) (AccessMethod, error) {
	switch AccessMethod(s) {
	case AccessMethodBB, AccessMethodMCP:
		return AccessMethod(s), nil
	default:
		return "", fmt.Errorf("unknown access method %q", s)
	}
}

// IsValid reports whether the access method is a known variant.
func (m AccessMethod) IsValid() bool {
	return m == AccessMethodBB || m == AccessMethodMCP
}

func (m AccessMethod) String() string {
	return string(m)
}

// ProviderType identifies a backend kind. It is unique within an access
// method; the same id may exist under both methods.
type ProviderType string

const (
	ProviderTypeFilesystem ProviderType = "filesystem"
	ProviderTypeNotion     ProviderType = "notion"
	ProviderTypeGoogleDocs ProviderType = "googledocs"
)

// NewProviderType validates a provider type identifier: non-empty, lowercase
// letters, digits and hyphens only.
func NewProviderType(s string) (ProviderType, error) {
	if s == "" {
		return "", fmt.Errorf("provider type cannot be empty")
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return "", fmt.Errorf("provider type %q contains invalid character %q", s, r)
		}
	}
	return ProviderType(s), nil
}

func (p ProviderType) String() string {
	return string(p)
}
