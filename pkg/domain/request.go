package domain

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var packageNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// BuildRequest is the immutable input of one pipeline invocation.
type BuildRequest struct {
	URL         string `json:"url" mapstructure:"url"`
	AppName     string `json:"appName" mapstructure:"appName"`
	PackageName string `json:"packageName" mapstructure:"packageName"`

	// ServiceAccountPath optionally points at a google-services.json supplied by the operator.
	// It is staged into the template project before the descriptor rewrite.
	ServiceAccountPath string `json:"serviceAccountPath,omitempty" mapstructure:"serviceAccountPath"`
}

// NewBuildRequest sanitizes and validates the user inputs.
func NewBuildRequest(url, appName, packageName string) (BuildRequest, error) {
	var req BuildRequest
	for _, f := range []struct {
		dst *string
		src string
	}{{&req.URL, url}, {&req.AppName, appName}, {&req.PackageName, packageName}} {
		clean, err := SanitizeField(f.src)
		if err != nil {
			return BuildRequest{}, err
		}
		*f.dst = clean
	}
	if err := req.Validate(); err != nil {
		return BuildRequest{}, err
	}
	return req, nil
}

// WithServiceAccount returns a copy of the request bound to a descriptor file.
func (r BuildRequest) WithServiceAccount(path string) BuildRequest {
	r.ServiceAccountPath = path
	return r
}

// Validate checks every request invariant.
func (r BuildRequest) Validate() error {
	if err := ValidateURL(r.URL); err != nil {
		return err
	}
	if strings.TrimSpace(r.AppName) == "" {
		return ErrInvalidAppName
	}
	if err := ValidatePackageName(r.PackageName); err != nil {
		return err
	}
	if r.ServiceAccountPath != "" && !strings.EqualFold(filepath.Ext(r.ServiceAccountPath), ".json") {
		return fmt.Errorf("%w: %s", ErrInvalidDescriptorPath, filepath.Base(r.ServiceAccountPath))
	}
	return nil
}

// ValidateURL checks that raw can be embedded verbatim in a quoted source literal
// and names a host once normalized.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrInvalidURL
	}
	if i := strings.IndexFunc(raw, unsafeURLRune); i >= 0 {
		r, _ := utf8.DecodeRuneInString(raw[i:])
		return fmt.Errorf("%w: unsupported character %q", ErrInvalidURL, r)
	}
	u, err := url.Parse(NormalizeURL(raw))
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
	}
	return nil
}

func unsafeURLRune(r rune) bool {
	switch r {
	case '\'', '"', '`', '\\':
		return true
	}
	return unicode.IsSpace(r)
}

// ValidatePackageName checks a reverse-DNS package identifier.
func ValidatePackageName(name string) error {
	if !packageNamePattern.MatchString(name) {
		if name == "" {
			return fmt.Errorf("%w: empty", ErrInvalidPackageName)
		}
		return fmt.Errorf("%w: %q", ErrInvalidPackageName, name)
	}
	return nil
}

// Identity derives the sanitized values used by the rewrite steps.
func (r BuildRequest) Identity() Identity {
	normalized := NormalizeURL(r.URL)
	return Identity{
		RegisteredName:    RegisteredName(r.AppName),
		DisplayName:       strings.TrimSpace(r.AppName),
		PackageName:       r.PackageName,
		NormalizedURL:     normalized,
		EscapedURLPattern: EscapeURLPattern(normalized),
	}
}
