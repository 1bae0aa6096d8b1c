package valueobjects

import (
	"fmt"
	"strings"
)

// URIParts are the four components of a resource URI:
// <accessMethod>+<providerType>+<connectionName>://<resourcePath>
type URIParts struct {
	AccessMethod   AccessMethod
	ProviderType   ProviderType
	ConnectionName string
	ResourcePath   string
}

// ParseURI splits a resource URI into its parts. The resource path is
// returned verbatim; provider-specific path validation happens in the
// accessors.
func ParseURI(uri string) (URIParts, error) {
	idx := strings.Index(uri, "://")
	if idx < 0 {
		return URIParts{}, fmt.Errorf("missing :// separator in %q", uri)
	}

	prefix := uri[:idx]
	path := uri[idx+len("://"):]

	segments := strings.Split(prefix, "+")
	if len(segments) != 3 {
		return URIParts{}, fmt.Errorf("prefix %q must have exactly three +-separated segments", prefix)
	}

	method, err := ParseAccessMethod(segments[0])
	if err != nil {
		return URIParts{}, err
	}
	pt, err := NewProviderType(segments[1])
	if err != nil {
		return URIParts{}, err
	}
	if segments[2] == "" {
		return URIParts{}, fmt.Errorf("connection name cannot be empty in %q", uri)
	}

	return URIParts{
		AccessMethod:   method,
		ProviderType:   pt,
		ConnectionName: segments[2],
		ResourcePath:   path,
	}, nil
}

// BuildURI constructs a resource URI from its parts.
func BuildURI(method AccessMethod, pt ProviderType, connectionName, resourcePath string) string {
	return fmt.Sprintf("%s+%s+%s://%s", method, pt, Slugify(connectionName), resourcePath)
}

// URIPrefix returns the prefix (through "://") for the given identity.
func URIPrefix(method AccessMethod, pt ProviderType, connectionName string) string {
	return fmt.Sprintf("%s+%s+%s://", method, pt, Slugify(connectionName))
}

// HasAccessMethodPrefix reports whether the string already starts with a
// known access method tag followed by "+". Such strings are treated as
// fully-qualified URIs and returned unchanged by URI constructors.
func HasAccessMethodPrefix(s string) bool {
	return strings.HasPrefix(s, string(AccessMethodBB)+"+") ||
		strings.HasPrefix(s, string(AccessMethodMCP)+"+")
}

// ResourcePathForPrefix extracts the resource path of a URI that must carry
// the given prefix. The bool result is false when the URI belongs to a
// different connection.
func ResourcePathForPrefix(uri, prefix string) (string, bool) {
	if !strings.HasPrefix(uri, prefix) {
		return "", false
	}
	return uri[len(prefix):], true
}

// Slugify lowercases a connection name and replaces everything outside
// [a-z0-9-] with hyphens, collapsing runs. Connection names appear inside
// URI prefixes and must stay unambiguous there.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
