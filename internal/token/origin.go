package token

import (
	"net/http"
	"strings"
)

// IssuerFromRequest resolves the canonical site origin used as token issuer:
// the forwarded host set by a proxy, then the configured public URL, then the
// origin the request itself arrived on.
func IssuerFromRequest(r *http.Request, publicURL string) string {
	if host := firstValue(r.Header.Get("X-Forwarded-Host")); host != "" {
		proto := firstValue(r.Header.Get("X-Forwarded-Proto"))
		if proto == "" {
			proto = "https"
		}
		return strings.ToLower(proto) + "://" + host
	}
	if publicURL != "" {
		return strings.TrimRight(publicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// firstValue takes the left-most entry of a comma separated proxy header.
func firstValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
