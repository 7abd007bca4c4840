// Package chunk defines the retrievable unit shared by the vector index, the row store
// and the retrieval core.
package chunk

import "strings"

// SourceType discriminates document-derived chunks from video-transcript chunks.
type SourceType string

const (
	SourceDocument SourceType = "document"
	SourceVideo    SourceType = "video"
)

// ParseSourceType maps a raw discriminator to a SourceType.
// Empty and unknown values map to SourceDocument.
func ParseSourceType(s string) SourceType {
	switch SourceType(strings.ToLower(strings.TrimSpace(s))) {
	case SourceVideo:
		return SourceVideo
	default:
		return SourceDocument
	}
}

// Section locates a chunk inside a structured document.
type Section struct {
	ID    string
	Title string
	Path  string
}

// Media is the modality-specific part of a chunk.
// It is either DocumentMedia or VideoMedia.
type Media interface {
	SourceType() SourceType
}

// DocumentMedia holds the images attached to a document chunk, in document order.
type DocumentMedia struct {
	ImagePaths []string
}

// SourceType implements Media.
func (DocumentMedia) SourceType() SourceType { return SourceDocument }

// VideoMedia holds the time range and assets of a transcript chunk.
// Start and end are nil when unknown.
type VideoMedia struct {
	StartSeconds *float64
	EndSeconds   *float64
	VideoURL     string
	TxtURL       string
	SrtURL       string
	VttURL       string
}

// SourceType implements Media.
func (VideoMedia) SourceType() SourceType { return SourceVideo }

// Chunk is the unit of retrieval. ID is globally unique and joins the vector index
// with the row store.
type Chunk struct {
	ID      string
	DocID   string
	Section *Section // nil for flat sources
	Text    string
	Source  string
	Media   Media
}

// SourceType returns the discriminator of the chunk's media.
func (c Chunk) SourceType() SourceType {
	if c.Media == nil {
		return SourceDocument
	}
	return c.Media.SourceType()
}

// Video returns the video media when the chunk is a transcript chunk.
func (c Chunk) Video() (VideoMedia, bool) {
	v, ok := c.Media.(VideoMedia)
	return v, ok
}

// Document returns the document media when the chunk is a document chunk.
func (c Chunk) Document() (DocumentMedia, bool) {
	d, ok := c.Media.(DocumentMedia)
	return d, ok
}

// SectionID returns the section id or "" for flat sources.
func (c Chunk) SectionID() string {
	if c.Section == nil {
		return ""
	}
	return c.Section.ID
}

// SectionTitle returns the section title or "" for flat sources.
func (c Chunk) SectionTitle() string {
	if c.Section == nil {
		return ""
	}
	return c.Section.Title
}

// SectionPath returns the section path or "" for flat sources.
func (c Chunk) SectionPath() string {
	if c.Section == nil {
		return ""
	}
	return c.Section.Path
}

// NewSection returns nil when every field is empty so flat sources stay flat.
func NewSection(id, title, path string) *Section {
	if id == "" && title == "" && path == "" {
		return nil
	}
	return &Section{ID: id, Title: title, Path: path}
}
