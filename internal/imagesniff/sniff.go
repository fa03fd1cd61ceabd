// Package imagesniff classifies raw image bytes by magic-byte
// signature. It is the single source of truth for whether downloaded
// icon bytes are acceptable and which MIME type they carry.
package imagesniff

import (
	"bytes"
	"strings"
)

// Format is a recognised binary image format.
type Format int

const (
	Unknown Format = iota
	PNG
	GIF
	JPEG
	ICO
)

var (
	pngSignature  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	gifSignature  = []byte{'G', 'I', 'F', '8'}
	jpegSignature = []byte{0xFF, 0xD8, 0xFF}
	icoSignature  = []byte{0x00, 0x00, 0x01, 0x00}
)

func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case GIF:
		return "gif"
	case JPEG:
		return "jpeg"
	case ICO:
		return "ico"
	default:
		return "unknown"
	}
}

// MIME returns the media type for a format, or "" for Unknown.
func (f Format) MIME() string {
	switch f {
	case PNG:
		return "image/png"
	case GIF:
		return "image/gif"
	case JPEG:
		return "image/jpeg"
	case ICO:
		return "image/x-icon"
	default:
		return ""
	}
}

// Classify inspects the buffer's leading bytes and returns the first
// matching format. An ICO is also recognised when the buffer embeds a
// PNG signature anywhere, since PNG-in-ICO containers are common.
// Empty buffers are always Unknown.
func Classify(data []byte) Format {
	if len(data) == 0 {
		return Unknown
	}
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return PNG
	case bytes.HasPrefix(data, gifSignature):
		return GIF
	case bytes.HasPrefix(data, jpegSignature):
		return JPEG
	case bytes.HasPrefix(data, icoSignature):
		return ICO
	case bytes.Contains(data, pngSignature):
		return ICO
	default:
		return Unknown
	}
}

// ClassifyWithHint is Classify with lenient ICO acceptance: when the
// header matches nothing but the source URL looks like an icon
// (contains "favicon" or ends in ".ico"), the buffer is accepted as
// ICO anyway to tolerate non-conformant servers. A zero-length buffer
// stays Unknown regardless of the hint.
func ClassifyWithHint(data []byte, sourceURL string) Format {
	format := Classify(data)
	if format != Unknown {
		return format
	}
	if len(data) == 0 {
		return Unknown
	}
	if URLHintsIcon(sourceURL) {
		return ICO
	}
	return Unknown
}

// URLHintsIcon reports whether a URL looks like it points at a
// favicon.
func URLHintsIcon(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	return strings.Contains(lower, "favicon") || strings.HasSuffix(lower, ".ico")
}

// IsValid reports whether the buffer classifies as any known image
// format, applying the URL-hint leniency.
func IsValid(data []byte, sourceURL string) bool {
	return ClassifyWithHint(data, sourceURL) != Unknown
}
