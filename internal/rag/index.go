package rag

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/hal9000y/gmail-agent/internal/llm"
	"github.com/hal9000y/gmail-agent/internal/message"
)

const (
	// DefaultTopK is how many chunks back one answer.
	DefaultTopK = 4

	embedBatchSize = 32
)

// ErrEmptyCorpus is returned when there is nothing to index.
var ErrEmptyCorpus = errors.New("no text to index")

// Document is one decoded message ready for indexing.
type Document struct {
	Text     string
	Metadata message.Metadata
}

// Chunk is a piece of a Document.
type Chunk struct {
	Text   string
	Source message.Metadata
}

// Source identifies a message an answer drew from.
type Source struct {
	MessageID string `json:"message_id" jsonschema:"message ID"`
	Subject   string `json:"subject" jsonschema:"email subject"`
	From      string `json:"from" jsonschema:"sender"`
	Date      string `json:"date" jsonschema:"Date header"`
}

// Answer is the model's reply to one question.
type Answer struct {
	Question string   `json:"question" jsonschema:"the question that was asked"`
	Answer   string   `json:"answer" jsonschema:"the answer drawn from the matching emails"`
	Sources  []Source `json:"sources" jsonschema:"messages the answer is based on"`
}

type embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type chatter interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// Searcher answers questions from an index.
type Searcher interface {
	Query(ctx context.Context, question string) (Answer, error)
}

// Indexer builds per-request indexes.
type Indexer struct {
	embed    embedder
	chat     chatter
	splitter Splitter
	topK     int
}

// NewIndexer creates an Indexer. Non-positive sizes fall back to defaults.
func NewIndexer(embed embedder, chat chatter, chunkSize, topK int) *Indexer {
	if topK <= 0 {
		topK = DefaultTopK
	}

	return &Indexer{
		embed:    embed,
		chat:     chat,
		splitter: Splitter{ChunkSize: chunkSize},
		topK:     topK,
	}
}

// Build splits and embeds docs.
func (ix *Indexer) Build(ctx context.Context, docs []Document) (Searcher, error) {
	var chunks []Chunk
	for _, d := range docs {
		for _, text := range ix.splitter.Split(d.Text) {
			chunks = append(chunks, Chunk{Text: text, Source: d.Metadata})
		}
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyCorpus
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		batch := chunks[start:min(start+embedBatchSize, len(chunks))]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		v, err := ix.embed.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed.Embed failed: %w", err)
		}
		if len(v) != len(texts) {
			return nil, fmt.Errorf("embed.Embed returned %d vectors for %d chunks", len(v), len(texts))
		}
		vectors = append(vectors, v...)
	}

	return &Index{
		chunks:  chunks,
		vectors: vectors,
		embed:   ix.embed,
		chat:    ix.chat,
		topK:    ix.topK,
	}, nil
}

// Index is an in-memory vector index over one request's chunks. It is safe
// for concurrent queries.
type Index struct {
	chunks  []Chunk
	vectors [][]float32
	embed   embedder
	chat    chatter
	topK    int
}

// Len reports the number of indexed chunks.
func (idx *Index) Len() int {
	return len(idx.chunks)
}

// Query answers question from the topK closest chunks.
func (idx *Index) Query(ctx context.Context, question string) (Answer, error) {
	qv, err := idx.embed.Embed(ctx, []string{question})
	if err != nil {
		return Answer{}, fmt.Errorf("embed.Embed failed: %w", err)
	}
	if len(qv) != 1 {
		return Answer{}, fmt.Errorf("embed.Embed returned %d vectors for one question", len(qv))
	}

	hits := idx.nearest(qv[0])

	text, err := idx.chat.Chat(ctx, []llm.Message{
		llm.System(answerPrompt),
		llm.User(contextPrompt(question, hits)),
	})
	if err != nil {
		return Answer{}, fmt.Errorf("chat.Chat failed: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Answer{}, errors.New("model returned an empty answer")
	}

	return Answer{
		Question: question,
		Answer:   text,
		Sources:  sourcesOf(hits),
	}, nil
}

func (idx *Index) nearest(q []float32) []Chunk {
	type scored struct {
		i     int
		score float64
	}

	scores := make([]scored, len(idx.vectors))
	for i, v := range idx.vectors {
		scores[i] = scored{i: i, score: cosine(q, v)}
	}
	slices.SortStableFunc(scores, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	hits := make([]Chunk, 0, min(idx.topK, len(scores)))
	for _, s := range scores[:min(idx.topK, len(scores))] {
		hits = append(hits, idx.chunks[s.i])
	}

	return hits
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func sourcesOf(hits []Chunk) []Source {
	sources := make([]Source, 0, len(hits))
	seen := make(map[string]bool, len(hits))

	for _, h := range hits {
		if seen[h.Source.ID] {
			continue
		}
		seen[h.Source.ID] = true

		sources = append(sources, Source{
			MessageID: h.Source.ID,
			Subject:   h.Source.Subject,
			From:      message.JoinAddressList(h.Source.From),
			Date:      h.Source.Date,
		})
	}

	return sources
}

func contextPrompt(question string, hits []Chunk) string {
	var sb strings.Builder

	sb.WriteString("Email excerpts:\n")
	for i, h := range hits {
		fmt.Fprintf(&sb, "\n[%d] From: %s | Subject: %s | Date: %s\n%s\n",
			i+1, message.JoinAddressList(h.Source.From), h.Source.Subject, h.Source.Date, h.Text)
	}
	fmt.Fprintf(&sb, "\nQuestion: %s", question)

	return sb.String()
}

const answerPrompt = `Answer the question using only the email excerpts provided.
Quote concrete details (senders, dates, amounts) when they are present.
If the excerpts do not contain the answer, say so in one sentence.`
