package security

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Start URL validation errors.
var (
	ErrInvalidURL    = errors.New("invalid URL")
	ErrBlockedScheme = errors.New("URL scheme not allowed")
)

// allowedSchemes are the schemes a watched tab may be opened on.
var allowedSchemes = map[string]bool{
	"http":  true,
	"https": true,
}

// ValidateStartURL checks a START_URLS entry before a tab is opened on it.
// file:, javascript: and data: URLs are rejected; the watcher only has
// meaning on web pages.
func ValidateStartURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, ErrInvalidURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !allowedSchemes[strings.ToLower(parsed.Scheme)] {
		return nil, fmt.Errorf("%w: %q", ErrBlockedScheme, parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return parsed, nil
}

// IsYouTubeHost reports whether host is youtube.com or one of its subdomains.
func IsYouTubeHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == "youtube.com" || strings.HasSuffix(host, ".youtube.com")
}
