package domain

import (
	"net/url"
	"strings"
)

// NormalizeBaseURL trims the operator's input and checks it is an absolute
// http or https URL. A trailing slash is dropped so the application can
// append paths to it.
func NormalizeBaseURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrBaseURLRequired
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidBaseURL
	}
	return strings.TrimSuffix(s, "/"), nil
}
