package validate

import (
	"net"
	"regexp"
	"strings"
)

var (
	displayName = regexp.MustCompile(`^[A-Za-z0-9]{1,16}$`)

	// RFC 1123 labels, at least one dot or a single label like "localhost"
	hostname = regexp.MustCompile(`^([A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?)(\.[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?)*\.?$`)
)

// IsValidDisplayName reports whether name may be used in game: 1 to 16 ASCII
// letters or digits.
func IsValidDisplayName(name string) bool {
	return displayName.MatchString(name)
}

// IsValidEndpoint reports whether s is an IPv4 address, an IPv6 address or
// a host name.
func IsValidEndpoint(s string) bool {
	if net.ParseIP(strings.Trim(s, "[]")) != nil {
		return true
	}
	if len(s) > 253 {
		return false
	}
	// all-numeric dotted strings are broken IPv4 addresses, not host names
	if strings.Trim(s, "0123456789.") == "" {
		return false
	}
	return hostname.MatchString(s)
}
