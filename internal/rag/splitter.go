// Package rag splits decoded messages into chunks, embeds them into an
// in-memory index and answers questions from the closest chunks.
package rag

import (
	"strings"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/sentences"
)

// DefaultChunkSize is the chunk budget in runes.
const DefaultChunkSize = 1024

// Splitter packs whole sentences into chunks of at most ChunkSize runes.
// Sentences longer than the budget are cut at rune boundaries.
type Splitter struct {
	ChunkSize int
}

// Split returns the non-empty chunks of text in order.
func (s Splitter) Split(text string) []string {
	size := s.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if t := strings.TrimSpace(cur.String()); t != "" {
			chunks = append(chunks, t)
		}
		cur.Reset()
		curLen = 0
	}

	iter := sentences.FromString(text)
	for iter.Next() {
		sentence := iter.Value()
		n := utf8.RuneCountInString(sentence)

		if curLen > 0 && curLen+n > size {
			flush()
		}
		if n > size {
			chunks = append(chunks, cutRunes(sentence, size)...)
			continue
		}

		cur.WriteString(sentence)
		curLen += n
	}
	flush()

	return chunks
}

func cutRunes(s string, size int) []string {
	var pieces []string
	runes := []rune(s)

	for start := 0; start < len(runes); start += size {
		piece := strings.TrimSpace(string(runes[start:min(start+size, len(runes))]))
		if piece != "" {
			pieces = append(pieces, piece)
		}
	}

	return pieces
}
