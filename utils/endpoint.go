package utils

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidalfs/objstore"
)

/*
   Endpoint parlance (see https://www.rfc-editor.org/rfc/rfc3986.html#section-3.2):

       https://storage.example.com:9000
       \___/   \_________________/\___/
         |              |           |
       scheme         host        port

   An endpoint is the authority portion of a service URL, with an optional scheme prefix that only selects
   between TLS and cleartext. Userinfo is not part of an object-storage endpoint; credentials travel in the
   Authorization header, never the URL.
*/

// Endpoint represents a parsed object-storage service endpoint: host, optional port, and whether TLS is used.
type Endpoint struct {
	host   string
	port   uint16
	secure bool
}

var schemeRE = regexp.MustCompile("^[A-Za-z][A-Za-z0-9+.-]*://")

// ParseEndpoint parses raw into an Endpoint. Accepted forms are "host", "host:port", "http://host[:port]", and
// "https://host[:port]". A bare host defaults to TLS unless secureDefault is false. Any other scheme, an empty
// host, userinfo, or a path component is an objstore.ErrInvalidEndpoint.
func ParseEndpoint(raw string, secureDefault bool) (Endpoint, error) {
	if raw == "" {
		return Endpoint{}, objstore.ErrInvalidEndpoint
	}

	secure := secureDefault
	rest := raw
	if m := schemeRE.FindString(raw); m != "" {
		switch strings.ToLower(strings.TrimSuffix(m, "://")) {
		case "https":
			secure = true
		case "http":
			secure = false
		default:
			return Endpoint{}, objstore.ErrInvalidEndpoint
		}
		rest = raw[len(m):]
	}

	// a trailing slash is tolerated, anything further is a caller bug
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" || strings.ContainsAny(rest, "/?#@ ") {
		return Endpoint{}, objstore.ErrInvalidEndpoint
	}

	host := rest
	var port uint16
	if h, p, err := net.SplitHostPort(rest); err == nil {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || n == 0 {
			return Endpoint{}, objstore.ErrInvalidEndpoint
		}
		host = h
		port = uint16(n)
	} else if strings.Count(rest, ":") > 0 && !strings.HasPrefix(rest, "[") {
		// a lone colon with an unparsable port, e.g. "host:" or "host:abc"
		return Endpoint{}, objstore.ErrInvalidEndpoint
	}
	if host == "" {
		return Endpoint{}, objstore.ErrInvalidEndpoint
	}

	return Endpoint{host: strings.ToLower(host), port: port, secure: secure}, nil
}

// Host returns the host portion of an endpoint, without port.
func (e Endpoint) Host() string {
	return e.host
}

// Port returns the port portion of an endpoint, 0 when unset.
func (e Endpoint) Port() uint16 {
	return e.port
}

// Secure reports whether the endpoint uses TLS.
func (e Endpoint) Secure() bool {
	return e.secure
}

// Scheme returns "https" or "http" according to Secure.
func (e Endpoint) Scheme() string {
	if e.secure {
		return "https"
	}
	return "http"
}

// HostPortStr returns a concatenated string of host and port, separated by a colon, ie "host.com:1234". The port
// is omitted when unset, leaving scheme-default port selection to the transport.
func (e Endpoint) HostPortStr() string {
	if e.port != 0 {
		return net.JoinHostPort(e.host, strconv.Itoa(int(e.port)))
	}
	return e.host
}

// String implements fmt.Stringer, returning the full scheme://host[:port] form.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s://%s", e.Scheme(), e.HostPortStr())
}
