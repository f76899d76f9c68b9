// Package content defines the content types sessions exchange and the helpers
// for the structured bodies the session layer interprets itself.
package content

import (
	"mime"
	"strings"
	"unicode/utf8"
)

// Well-known content types.
const (
	TypeText        = "text/plain"
	TypeOctetStream = "application/octet-stream"
	TypeIsComposing = "application/im-iscomposing+xml"
	TypeXHTML       = "application/xhtml+xml"
)

// Default picks a content type for data sent without one: text when the bytes
// are valid UTF-8, binary otherwise.
func Default(data []byte) string {
	if utf8.Valid(data) {
		return TypeText
	}
	return TypeOctetStream
}

// Base strips parameters and normalizes case, so "Text/Plain; charset=utf-8"
// compares equal to TypeText.
func Base(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mt
}

// Is reports whether contentType has the given base type.
func Is(contentType, want string) bool {
	return Base(contentType) == want
}

// IsText reports whether bodies of contentType should be presented as text.
func IsText(contentType string) bool {
	mt := Base(contentType)
	switch {
	case strings.HasPrefix(mt, "text/"):
		return true
	case strings.HasSuffix(mt, "+xml"), strings.HasSuffix(mt, "+json"):
		return true
	case mt == "application/xml", mt == "application/json":
		return true
	default:
		return false
	}
}
