package provider

import (
	"net/url"
	"strings"
)

var (
	sensitiveFragments = []string{
		"secret",
		"token",
		"password",
		"apikey",
		"clientsecret",
		"accesskey",
		"access_token",
		"refresh_token",
		"sv",
	}

	settingReplacer = strings.NewReplacer("-", "", "_", "", " ", "")
)

const redacted = "REDACTED"

// SanitizeURL redacts credential-bearing query parameters so the URL can be logged.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	query := u.Query()
	changed := false
	for key := range query {
		if isSensitiveKey(key) {
			query.Set(key, redacted)
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// SanitizeAuth returns a copy of the settings with the client secret removed.
func SanitizeAuth(auth AuthSettings) AuthSettings {
	clean := auth
	if clean.ClientSecret != "" {
		clean.ClientSecret = redacted
	}
	clean.Scopes = append([]string(nil), auth.Scopes...)
	return clean
}

func isSensitiveKey(key string) bool {
	normalized := settingReplacer.Replace(strings.ToLower(strings.TrimSpace(key)))
	if normalized == "" {
		return false
	}
	for _, fragment := range sensitiveFragments {
		fragment = settingReplacer.Replace(fragment)
		if fragment == "sv" {
			if normalized == fragment {
				return true
			}
			continue
		}
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}
