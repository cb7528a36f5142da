package domain

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// URIStatus classifies a member of a URI equivalence class.
type URIStatus string

// Available URI statuses.
const (
	// URIStatusCanonical is the preferred member of a class.
	URIStatusCanonical URIStatus = "canonical"

	// URIStatusURN is a non-URL identifier (DOI, ISBN) acting as root.
	URIStatusURN URIStatus = "urn"

	// URIStatusSnapshot is an archived copy of another member.
	URIStatusSnapshot URIStatus = "snapshot"

	// URIStatusAlt is a known-equivalent alternate.
	URIStatusAlt URIStatus = "alt"

	// URIStatusUnknown has not been classified yet.
	URIStatusUnknown URIStatus = "unknown"
)

// IsValid returns true if the status is recognised.
func (s URIStatus) IsValid() bool {
	switch s {
	case URIStatusCanonical, URIStatusURN, URIStatusSnapshot, URIStatusAlt, URIStatusUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s URIStatus) String() string {
	return string(s)
}

// URI is one member of an equivalence class of URIs denoting the same
// logical resource. A class is identified by its root: the single member
// whose CanonicalID is nil. Every other member points directly at the root.
type URI struct {
	// ID is the unique identifier.
	ID int64

	// URI is the normalized URI string. Unique across the store.
	URI string

	// Status classifies the member.
	Status URIStatus

	// CanonicalID points at the class root. Nil for the root itself.
	CanonicalID *int64
}

// IsRoot reports whether this member is the root of its class.
func (u URI) IsRoot() bool {
	return u.CanonicalID == nil
}

// RootID returns the ID of the class root.
func (u URI) RootID() int64 {
	if u.CanonicalID == nil {
		return u.ID
	}
	return *u.CanonicalID
}

// VariantPolicy decides the status of a new variant added with
// URIStatusUnknown to a class whose root is not a URN.
type VariantPolicy string

// Available variant policies.
const (
	// VariantPolicyDefer records the new URL as an alternate and leaves
	// the canonical choice to an operator.
	VariantPolicyDefer VariantPolicy = "defer"

	// VariantPolicyPreferNew makes the new URL canonical.
	VariantPolicyPreferNew VariantPolicy = "prefer_new"
)

// IsValid returns true if the policy is recognised.
func (p VariantPolicy) IsValid() bool {
	return p == VariantPolicyDefer || p == VariantPolicyPreferNew
}

const archivePrefix = "https://web.archive.org/web/"

// IsArchiveURL reports whether u is a Wayback Machine snapshot URL.
func IsArchiveURL(u string) bool {
	return strings.HasPrefix(u, archivePrefix)
}

// ArchivedURL returns the original URL wrapped by a Wayback Machine
// snapshot URL, or "" if u is not one.
func ArchivedURL(u string) string {
	if !IsArchiveURL(u) {
		return ""
	}
	// https://web.archive.org/web/<timestamp>/<original>
	parts := strings.SplitN(u, "/", 6)
	if len(parts) < 6 {
		return ""
	}
	original, err := url.PathUnescape(parts[5])
	if err != nil {
		return parts[5]
	}
	return original
}

// IsHTTPURL reports whether s looks like an http or https URL.
func IsHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// RootStatus returns the status an identifier takes when it starts a
// class of its own: canonical for http(s) URLs, urn for anything else.
func RootStatus(uri string) URIStatus {
	if IsHTTPURL(uri) {
		return URIStatusCanonical
	}
	return URIStatusURN
}

// trackingParams are query parameters that never change the resource.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"dclid":   true,
	"msclkid": true,
	"mc_cid":  true,
	"mc_eid":  true,
	"igshid":  true,
	"ref_src": true,
	"_ga":     true,
	"yclid":   true,
}

var duplicateSlashes = regexp.MustCompile(`/{2,}`)

// NormalizeURL canonicalises a URL so that equal resources produce equal
// strings. For http(s) URLs it lowercases scheme and host, drops default
// ports, fragments and tracking parameters, sorts the query, collapses
// repeated slashes and strips a trailing slash. Other schemes (urn:, doi:,
// file:) are only trimmed. The result is idempotent.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty URL", ErrInvalidInput)
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		return "", fmt.Errorf("%w: missing scheme in %q", ErrInvalidInput, s)
	}
	if scheme != "http" && scheme != "https" {
		return s, nil
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidInput, s)
	}

	u.Scheme = scheme
	u.Host = normalizeHost(scheme, u.Hostname(), u.Port())
	u.Fragment = ""
	u.RawFragment = ""
	u.ForceQuery = false

	// Work on the escaped form so that %2F and friends stay distinct.
	escaped := decodeUnreserved(u.EscapedPath())
	// Archive paths embed a full URL whose "//" must survive.
	if u.Host != "web.archive.org" {
		escaped = duplicateSlashes.ReplaceAllString(escaped, "/")
	}
	if len(escaped) > 1 {
		escaped = strings.TrimSuffix(escaped, "/")
	}
	if escaped == "" {
		escaped = "/"
	}
	path, err := url.PathUnescape(escaped)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	u.Path = path
	u.RawPath = ""
	if u.EscapedPath() != escaped {
		u.RawPath = escaped
	}

	query := u.Query()
	for key := range query {
		lower := strings.ToLower(key)
		if trackingParams[lower] || strings.HasPrefix(lower, "utm_") {
			query.Del(key)
		}
	}
	// Encode sorts by key.
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// decodeUnreserved decodes percent-escapes of unreserved characters and
// uppercases the hex digits of the others.
func decodeUnreserved(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if c, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				if isUnreserved(byte(c)) {
					b.WriteByte(byte(c))
				} else {
					b.WriteByte('%')
					b.WriteString(strings.ToUpper(s[i+1 : i+3]))
				}
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return c == '-' || c == '.' || c == '_' || c == '~'
}

func normalizeHost(scheme, host, port string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		return net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}
