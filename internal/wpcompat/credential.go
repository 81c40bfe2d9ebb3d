package wpcompat

import "strings"

// HeaderToken is the custom credential header. It takes precedence over
// Authorization when both are sent.
const HeaderToken = "X-Publish-Token"

// ResolveCredential returns the bearer token to verify, looking at the custom
// header first, then the Authorization header, then the batch-level fallback.
// A header that is present decides the outcome even when it carries no usable
// bearer value, so the fallback only applies when both headers are absent.
func ResolveCredential(custom, authorization, fallback string) string {
	if custom = strings.TrimSpace(custom); custom != "" {
		if tok := bearerToken(custom); tok != "" {
			return tok
		}
		return custom
	}
	if authorization = strings.TrimSpace(authorization); authorization != "" {
		return bearerToken(authorization)
	}
	return strings.TrimSpace(fallback)
}

func bearerToken(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
