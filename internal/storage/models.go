package storage

import (
	"encoding/json"
	"time"

	"docqa/internal/chunk"
)

// ChunkRow is the row-store shape of a chunk.
// Empty strings stand for NULL columns. StartSeconds and EndSeconds hold whatever
// the column contained (number, string or nil) and are coerced by readers.
type ChunkRow struct {
	ChunkID      string
	DocID        string
	SectionID    string
	SectionTitle string
	SectionPath  string
	Text         string
	Source       string
	SourceType   string
	StartSeconds any
	EndSeconds   any
	VideoURL     string
	TxtURL       string
	SrtURL       string
	VttURL       string
	ImagePaths   []string
}

// RowFromChunk flattens a chunk into its row-store shape.
func RowFromChunk(c chunk.Chunk) ChunkRow {
	row := ChunkRow{
		ChunkID:      c.ID,
		DocID:        c.DocID,
		SectionID:    c.SectionID(),
		SectionTitle: c.SectionTitle(),
		SectionPath:  c.SectionPath(),
		Text:         c.Text,
		Source:       c.Source,
		SourceType:   string(c.SourceType()),
	}
	if v, ok := c.Video(); ok {
		if v.StartSeconds != nil {
			row.StartSeconds = *v.StartSeconds
		}
		if v.EndSeconds != nil {
			row.EndSeconds = *v.EndSeconds
		}
		row.VideoURL = v.VideoURL
		row.TxtURL = v.TxtURL
		row.SrtURL = v.SrtURL
		row.VttURL = v.VttURL
	}
	if d, ok := c.Document(); ok {
		row.ImagePaths = d.ImagePaths
	}
	return row
}

// Session is a conversation owned by one user.
type Session struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
}

// Message is one turn of a conversation. Metadata carries assistant-side details
// such as citations and confidence.
type Message struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	Metadata  json.RawMessage
	CreatedAt time.Time
}

// Feedback is a user's rating of a message; one per (message, user).
type Feedback struct {
	MessageID string
	UserID    string
	Score     int
}
