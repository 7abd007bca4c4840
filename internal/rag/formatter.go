package rag

import (
	"strings"
	"unicode/utf8"
)

// ContextDelimiter separates formatted chunk blocks.
const ContextDelimiter = "\n---\n"

// formatBlock renders one chunk as "Source: ...\n[Title: ...\n]body\n".
func formatBlock(c ContextChunk) string {
	var b strings.Builder
	b.WriteString("Source: ")
	b.WriteString(c.Source)
	b.WriteString("\n")
	if title := c.SectionTitle(); title != "" {
		b.WriteString("Title: ")
		b.WriteString(title)
		b.WriteString("\n")
	}
	b.WriteString(c.Text)
	b.WriteString("\n")
	return b.String()
}

// Format joins whole chunk blocks until the next one would push the output past
// maxLength characters, delimiters included. It returns the text and the number of
// chunks included; a chunk is never cut.
func Format(chunks []ContextChunk, maxLength int) (string, int) {
	delimLen := utf8.RuneCountInString(ContextDelimiter)

	var (
		b     strings.Builder
		total int
		n     int
	)
	for _, c := range chunks {
		block := formatBlock(c)
		cost := utf8.RuneCountInString(block)
		if n > 0 {
			cost += delimLen
		}
		if total+cost > maxLength {
			break
		}
		if n > 0 {
			b.WriteString(ContextDelimiter)
		}
		b.WriteString(block)
		total += cost
		n++
	}
	return b.String(), n
}
