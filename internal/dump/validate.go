package dump

import (
	"net"
	"regexp"
	"strconv"
	"strings"
)

var (
	asPathRe    = regexp.MustCompile(`^[0-9{}, ]*$`)
	communityRe = regexp.MustCompile(`^(\d+:\d+( \d+:\d+)*)?$`)
)

// ValidIPv4 reports whether s is a dotted-quad IPv4 address.
func ValidIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}

// ValidASNumber reports whether asn is a usable 2-octet AS number.
func ValidASNumber(asn uint32) bool {
	return asn >= 1 && asn <= 65535
}

// ValidASPath reports whether s looks like an AS path: AS numbers separated
// by spaces, braces and commas. The empty path is valid.
func ValidASPath(s string) bool {
	return asPathRe.MatchString(s)
}

// ValidCommunityList reports whether s is a space-separated list of
// ASN:VALUE pairs. The empty list is valid.
func ValidCommunityList(s string) bool {
	return communityRe.MatchString(s)
}

// ValidPrefix reports whether s is a dotted-quad prefix with a /0 to /32
// mask.
func ValidPrefix(s string) bool {
	addr, maskStr, ok := strings.Cut(s, "/")
	if !ok {
		return false
	}
	mask, err := strconv.Atoi(maskStr)
	if err != nil || mask < 0 || mask > 32 {
		return false
	}
	return ValidIPv4(addr)
}
