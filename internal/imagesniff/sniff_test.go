package imagesniff

import (
	"testing"
)

var (
	pngBytes  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00}
	gifBytes  = []byte("GIF89a trailing")
	jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	icoBytes  = []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00}
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{
			name: "png signature",
			data: pngBytes,
			want: PNG,
		},
		{
			name: "gif signature",
			data: gifBytes,
			want: GIF,
		},
		{
			name: "jpeg signature",
			data: jpegBytes,
			want: JPEG,
		},
		{
			name: "ico header",
			data: icoBytes,
			want: ICO,
		},
		{
			name: "png embedded in ico container",
			data: append([]byte{0x00, 0x00, 0x02, 0x00}, pngBytes...),
			want: ICO,
		},
		{
			name: "empty buffer",
			data: []byte{},
			want: Unknown,
		},
		{
			name: "nil buffer",
			data: nil,
			want: Unknown,
		},
		{
			name: "text content",
			data: []byte("<html><body>404</body></html>"),
			want: Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.data); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify_TrailingGarbage(t *testing.T) {
	garbage := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01, 0x02}

	if got := Classify(append(append([]byte{}, pngBytes...), garbage...)); got != PNG {
		t.Errorf("Classify(png+garbage) = %v, want PNG", got)
	}
	if got := Classify(append(append([]byte{}, gifBytes...), garbage...)); got != GIF {
		t.Errorf("Classify(gif+garbage) = %v, want GIF", got)
	}
	if got := Classify(append(append([]byte{}, jpegBytes...), garbage...)); got != JPEG {
		t.Errorf("Classify(jpeg+garbage) = %v, want JPEG", got)
	}
}

func TestClassifyWithHint(t *testing.T) {
	junk := []byte("definitely not an image")

	tests := []struct {
		name      string
		data      []byte
		sourceURL string
		want      Format
	}{
		{
			name:      "favicon url accepts junk as ico",
			data:      junk,
			sourceURL: "https://example.com/favicon.ico",
			want:      ICO,
		},
		{
			name:      "favicon substring anywhere in url",
			data:      junk,
			sourceURL: "https://example.com/assets/favicon-v2.png",
			want:      ICO,
		},
		{
			name:      "ico extension",
			data:      junk,
			sourceURL: "https://example.com/icons/site.ico",
			want:      ICO,
		},
		{
			name:      "no hint stays unknown",
			data:      junk,
			sourceURL: "https://example.com/logo.png",
			want:      Unknown,
		},
		{
			name:      "empty buffer invalid even with favicon hint",
			data:      []byte{},
			sourceURL: "https://example.com/favicon.ico",
			want:      Unknown,
		},
		{
			name:      "real png wins over hint",
			data:      pngBytes,
			sourceURL: "https://example.com/favicon.ico",
			want:      PNG,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyWithHint(tt.data, tt.sourceURL); got != tt.want {
				t.Errorf("ClassifyWithHint() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormat_MIME(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{PNG, "image/png"},
		{GIF, "image/gif"},
		{JPEG, "image/jpeg"},
		{ICO, "image/x-icon"},
		{Unknown, ""},
	}

	for _, tt := range tests {
		if got := tt.format.MIME(); got != tt.want {
			t.Errorf("%v.MIME() = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid(pngBytes, "") {
		t.Error("IsValid() should accept a valid PNG")
	}
	if IsValid([]byte{}, "https://example.com/favicon.ico") {
		t.Error("IsValid() should reject an empty buffer regardless of URL hint")
	}
	if IsValid([]byte("junk"), "https://example.com/image.png") {
		t.Error("IsValid() should reject junk without an icon hint")
	}
}
