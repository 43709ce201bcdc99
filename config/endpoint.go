package config

import (
	"fmt"
	"regexp"
)

var endpointPattern = regexp.MustCompile(`^((tcp|udp|http|https|inproc)://)?(\[([0-9a-f:.]+)]|([^:]+))(:([0-9]{1,5}))?$`)

// Scheme is the transport scheme portion of an Endpoint.
type Scheme string

const (
	SchemeNone   Scheme = ""
	SchemeTCP    Scheme = "tcp"
	SchemeUDP    Scheme = "udp"
	SchemeHTTP   Scheme = "http"
	SchemeHTTPS  Scheme = "https"
	SchemeInproc Scheme = "inproc"
)

// Endpoint is a transport address of the form scheme://host[:port]. The
// default scheme is empty; host defaults to "localhost" when absent.
type Endpoint struct {
	Scheme Scheme
	Host   string
	Port   uint16
}

// ParseEndpoint parses a string of the form "scheme://host:port", where
// scheme is one of tcp, udp, http, https, inproc (or absent).
func ParseEndpoint(s string) (Endpoint, error) {
	m := endpointPattern.FindStringSubmatch(s)
	if m == nil {
		return Endpoint{}, fmt.Errorf("config: invalid endpoint %q", s)
	}
	host := m[4]
	if host == "" {
		host = m[5]
	}
	if host == "" {
		host = "localhost"
	}
	var port uint16
	if m[7] != "" {
		var p int
		if _, err := fmt.Sscanf(m[7], "%d", &p); err != nil || p > 65535 {
			return Endpoint{}, fmt.Errorf("config: invalid endpoint port %q", s)
		}
		port = uint16(p)
	}
	return Endpoint{Scheme: Scheme(m[2]), Host: host, Port: port}, nil
}

// String renders the endpoint back to its "scheme://host:port" textual
// form. The scheme prefix is omitted when Scheme is SchemeNone.
func (e Endpoint) String() string {
	host := e.Host
	if isIPv6Host(host) {
		host = "[" + host + "]"
	}
	var s string
	if e.Scheme != SchemeNone {
		s = string(e.Scheme) + "://"
	}
	s += host
	if e.Port != 0 {
		s += fmt.Sprintf(":%d", e.Port)
	}
	return s
}

// Authority returns the host:port pair of the endpoint, dropping the
// scheme.
func (e Endpoint) Authority() Authority {
	return Authority{Host: e.Host, Port: e.Port}
}

// ToLocal rewrites a wildcard host ("*" or empty) to "localhost", matching
// the convention used when a bind address of "tcp://*:9000" must be echoed
// back as a connectable client address.
func (e Endpoint) ToLocal() Endpoint {
	if e.Host == "" || e.Host == "*" {
		e.Host = "localhost"
	}
	return e
}
