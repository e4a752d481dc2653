// Package urlutil holds the URL acceptance policy for user-supplied image and
// info.json URLs. Only absolute HTTP(S) URLs are accepted, everywhere.
package urlutil

import "net/url"

// IsHTTPURL reports whether s is a syntactically valid absolute URL with an
// http or https scheme.
func IsHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
