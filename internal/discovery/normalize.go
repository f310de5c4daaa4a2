package discovery

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// NormalizeURL canonicalizes a URL for dedup: lowercases scheme and host,
// strips the fragment, drops default ports, collapses duplicate slashes in
// the path, and trims a trailing slash on non-root paths. The function is
// idempotent, so normalized URLs compare by string equality.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", eris.New("discovery: empty url")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrap(err, "discovery: parse url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", eris.Errorf("discovery: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", eris.New("discovery: url has no host")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	path := u.Path
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	u.Path = path
	u.RawPath = ""

	return u.String(), nil
}

// sameSite reports whether two hosts belong to the same site, treating a
// leading "www." as insignificant.
func sameSite(a, b string) bool {
	return strings.TrimPrefix(strings.ToLower(a), "www.") ==
		strings.TrimPrefix(strings.ToLower(b), "www.")
}
