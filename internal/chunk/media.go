package chunk

import (
	"errors"
	"fmt"
	"math"
	"path"
	"strings"
	"unicode/utf8"
)

// DefaultImagePrefix is the storage prefix for document images.
const DefaultImagePrefix = "docs"

// ErrInvalidImagePath is returned when a reference does not follow {prefix}/{doc_id}/images/{filename}.
var ErrInvalidImagePath = errors.New("invalid image path")

// ImagePath builds the storage reference of a document image.
func ImagePath(prefix, docID, filename string) string {
	return fmt.Sprintf("%s/%s/images/%s", strings.Trim(prefix, "/"), docID, filename)
}

// ParseImagePath validates an image reference and returns its doc id and filename.
// Filenames may contain subdirectories but never ".." segments.
func ParseImagePath(prefix, p string) (docID, filename string, err error) {
	prefix = strings.Trim(prefix, "/")
	parts := strings.Split(p, "/")
	if len(parts) < 4 || parts[0] != prefix || parts[1] == "" || parts[2] != "images" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidImagePath, p)
	}
	for _, part := range parts {
		if part == ".." || part == "." {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidImagePath, p)
		}
	}
	filename = strings.Join(parts[3:], "/")
	if filename == "" || path.Clean(filename) != filename {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidImagePath, p)
	}
	return parts[1], filename, nil
}

// FormatTimestamp renders seconds as M:SS, or H:MM:SS from one hour on.
// Negative values clamp to zero.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// DeepLink appends a media fragment so players start at the given second.
func DeepLink(videoURL string, start *float64) string {
	if videoURL == "" {
		return ""
	}
	if start == nil || *start <= 0 {
		return videoURL
	}
	return fmt.Sprintf("%s#t=%d", videoURL, int(*start))
}

// Preview returns at most n runes of text with surrounding whitespace removed.
func Preview(text string, n int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:n]))
}
