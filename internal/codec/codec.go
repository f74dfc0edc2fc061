// Package codec holds the small string transforms applied to codespace content
// and user-supplied URLs.
//
// Encode/Decode obscure stored code; they are NOT encryption. Anyone with read
// access to the database can recover the original text.
package codec

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// imageExtensions are the avatar suffixes we accept.
var imageExtensions = []string{".jpeg", ".jpg", ".gif", ".png"}

// Encode returns the standard base64 form of the raw bytes of s.
func Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// Decode reverses Encode. Malformed input is an error rather than a best guess.
func Decode(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("codec: decoding base64: %w", err)
	}
	return string(raw), nil
}

// IsImageURL reports whether the URL path ends with a permitted image extension.
// Query strings and fragments are ignored: "a.png?size=64" is an image.
func IsImageURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Path == "" {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}
