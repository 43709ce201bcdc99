// Package config provides the endpoint and authority address types used by
// Socket and Authenticator for parsing and formatting transport addresses.
package config

import (
	"fmt"
	"regexp"
)

var authorityPattern = regexp.MustCompile(`^(([0-9.]+)|\[([0-9a-f:.]+)])(:([0-9]{1,5}))?$`)

// Authority is a (host, port) pair with a textual form "host:port"; IPv6
// hosts are bracketed in their textual form.
type Authority struct {
	Host string
	Port uint16
}

// ParseAuthority parses a string of the form "host:port" or "host". Host may
// be a dotted IPv4 address or a bracketed IPv6 address. Parse failure
// returns a non-nil error; callers that need spec.md's "input stream
// exception" surface should wrap this as their own stream error type.
func ParseAuthority(s string) (Authority, error) {
	m := authorityPattern.FindStringSubmatch(s)
	if m == nil {
		return Authority{}, fmt.Errorf("config: invalid authority %q", s)
	}
	host := m[2]
	if host == "" {
		host = m[3]
	}
	var port uint16
	if m[5] != "" {
		var p int
		if _, err := fmt.Sscanf(m[5], "%d", &p); err != nil || p > 65535 {
			return Authority{}, fmt.Errorf("config: invalid authority port %q", s)
		}
		port = uint16(p)
	}
	return Authority{Host: host, Port: port}, nil
}

// String renders the authority back into its "host:port" textual form.
// IPv6 hosts are re-bracketed.
func (a Authority) String() string {
	host := a.Host
	if isIPv6Host(host) {
		host = "[" + host + "]"
	}
	if a.Port == 0 {
		return host
	}
	return fmt.Sprintf("%s:%d", host, a.Port)
}

func isIPv6Host(host string) bool {
	for _, c := range host {
		if c == ':' {
			return true
		}
	}
	return false
}

// ToLocal rewrites a wildcard host ("*" or empty) to "localhost", matching
// the convention the transport uses when a bind address is echoed back as a
// client-facing connect address.
func (a Authority) ToLocal() Authority {
	if a.Host == "" || a.Host == "*" {
		a.Host = "localhost"
	}
	return a
}
