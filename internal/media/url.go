package media

import (
	"net/url"
	"strings"
)

const PathPrefix = "/media/"

// URL is the public address of a locally hosted object.
func URL(baseURL, key string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return PathPrefix + key
	}
	return baseURL + PathPrefix + key
}

// ParseKey extracts the object key from a URL produced by URL.
func ParseKey(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	path := u.Path
	if path == "" {
		path = raw
	}

	if !strings.HasPrefix(path, PathPrefix) {
		return "", false
	}

	key := strings.TrimPrefix(path, PathPrefix)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}

	return key, true
}
