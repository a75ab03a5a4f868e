package domain

import "strings"

// FallbackRegisteredName is used when an app name has no alphanumeric characters.
const FallbackRegisteredName = "App"

// Identity is a pure projection of a BuildRequest. It is recomputed on demand and never persisted.
type Identity struct {
	RegisteredName    string `json:"registeredName"`
	DisplayName       string `json:"displayName"`
	PackageName       string `json:"packageName"`
	NormalizedURL     string `json:"normalizedUrl"`
	EscapedURLPattern string `json:"escapedUrlPattern"`
}

// NormalizeURL guarantees an explicit scheme, defaulting to https.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return "https://" + u
}

// RegisteredName keeps only ASCII letters and digits from the display name.
func RegisteredName(appName string) string {
	var b strings.Builder
	for _, r := range appName {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return FallbackRegisteredName
	}
	return b.String()
}

var urlPatternEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`/`, `\/`,
	`$`, `\$`,
	`*`, `\*`,
	`+`, `\+`,
	`?`, `\?`,
	`^`, `\^`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`[`, `\[`,
	`]`, `\]`,
)

// EscapeURLPattern escapes regex metacharacters (and the slash) so the URL
// can be embedded in the manifest's link pattern list.
func EscapeURLPattern(u string) string {
	return urlPatternEscaper.Replace(u)
}
