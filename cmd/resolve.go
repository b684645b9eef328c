package cmd

import (
	"net"
	"strings"
)

// resolveHostname reverse-resolves an IP address to its name. Anything that
// is not an IP, or does not resolve, is returned unchanged.
func resolveHostname(host string) string {
	if net.ParseIP(host) == nil {
		return host
	}
	names, err := net.LookupAddr(host)
	if err != nil || len(names) == 0 {
		return host
	}
	return strings.TrimSuffix(names[0], ".")
}

// resolveAddr forward-resolves a hostname to its first address. Failures
// leave the name unchanged.
func resolveAddr(host string) string {
	addrs, err := net.LookupHost(host)
	if err != nil || len(addrs) == 0 {
		return host
	}
	return addrs[0]
}
