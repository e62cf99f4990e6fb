package rag_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hal9000y/gmail-agent/internal/llm"
	"github.com/hal9000y/gmail-agent/internal/message"
	"github.com/hal9000y/gmail-agent/internal/rag"
)

var vocabulary = []string{"invoice", "flight", "meeting", "payment"}

// keywordEmbedder maps text to keyword counts over a fixed vocabulary.
type keywordEmbedder struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (e *keywordEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	e.mu.Lock()
	e.batches = append(e.batches, inputs)
	e.mu.Unlock()

	if e.err != nil {
		return nil, e.err
	}

	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		v := make([]float32, len(vocabulary))
		lower := strings.ToLower(in)
		for j, w := range vocabulary {
			v[j] = float32(strings.Count(lower, w))
		}
		out[i] = v
	}

	return out, nil
}

type chatMock struct {
	ChatFunc func(ctx context.Context, msgs []llm.Message) (string, error)
}

func (m *chatMock) Chat(ctx context.Context, msgs []llm.Message) (string, error) {
	return m.ChatFunc(ctx, msgs)
}

func corpus() []rag.Document {
	return []rag.Document{
		{
			Text: "Your flight to Lisbon departs at 9:40. The flight gate is B12.",
			Metadata: message.Metadata{
				ID:      "m1",
				Subject: "Flight confirmation",
				From:    []message.Address{{Name: "Airline", Email: "noreply@air.example"}},
				Date:    "Mon, 1 Sep 2025 08:00:00 +0000",
			},
		},
		{
			Text: "Invoice 42 is attached. Payment is due on Friday.",
			Metadata: message.Metadata{
				ID:      "m2",
				Subject: "Invoice 42",
				From:    []message.Address{{Email: "billing@acme.example"}},
				Date:    "Tue, 2 Sep 2025 09:00:00 +0000",
			},
		},
	}
}

func TestIndexQuery(t *testing.T) {
	var prompt string
	chat := &chatMock{ChatFunc: func(_ context.Context, msgs []llm.Message) (string, error) {
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].Role)
		prompt = msgs[1].Content
		return "  Invoice 42 is due on Friday.\n", nil
	}}

	ix := rag.NewIndexer(&keywordEmbedder{}, chat, 0, 1)
	searcher, err := ix.Build(context.Background(), corpus())
	require.NoError(t, err)

	answer, err := searcher.Query(context.Background(), "When is the invoice payment due?")
	require.NoError(t, err)

	assert.Equal(t, rag.Answer{
		Question: "When is the invoice payment due?",
		Answer:   "Invoice 42 is due on Friday.",
		Sources: []rag.Source{{
			MessageID: "m2",
			Subject:   "Invoice 42",
			From:      "billing@acme.example",
			Date:      "Tue, 2 Sep 2025 09:00:00 +0000",
		}},
	}, answer)

	assert.Contains(t, prompt, "Invoice 42 is attached.")
	assert.NotContains(t, prompt, "Lisbon")
	assert.Contains(t, prompt, "Question: When is the invoice payment due?")
}

func TestIndexSourcesDeduplicated(t *testing.T) {
	chat := &chatMock{ChatFunc: func(context.Context, []llm.Message) (string, error) { return "ok", nil }}

	ix := rag.NewIndexer(&keywordEmbedder{}, chat, 40, 10)
	searcher, err := ix.Build(context.Background(), corpus())
	require.NoError(t, err)

	idx, ok := searcher.(*rag.Index)
	require.True(t, ok)
	assert.Equal(t, 4, idx.Len())

	answer, err := searcher.Query(context.Background(), "flight")
	require.NoError(t, err)

	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "m1", answer.Sources[0].MessageID)
	assert.Equal(t, "m2", answer.Sources[1].MessageID)
}

func TestIndexerBuildBatches(t *testing.T) {
	docs := make([]rag.Document, 70)
	for i := range docs {
		docs[i] = rag.Document{Text: "A meeting note.", Metadata: message.Metadata{ID: "m"}}
	}

	emb := &keywordEmbedder{}
	_, err := rag.NewIndexer(emb, nil, 0, 0).Build(context.Background(), docs)
	require.NoError(t, err)

	require.Len(t, emb.batches, 3)
	assert.Len(t, emb.batches[0], 32)
	assert.Len(t, emb.batches[1], 32)
	assert.Len(t, emb.batches[2], 6)
}

func TestIndexerBuildErrors(t *testing.T) {
	t.Run("empty corpus", func(t *testing.T) {
		_, err := rag.NewIndexer(&keywordEmbedder{}, nil, 0, 0).Build(context.Background(), []rag.Document{{Text: " "}})
		assert.ErrorIs(t, err, rag.ErrEmptyCorpus)
	})

	t.Run("embedding failure", func(t *testing.T) {
		boom := errors.New("ollama down")
		_, err := rag.NewIndexer(&keywordEmbedder{err: boom}, nil, 0, 0).Build(context.Background(), corpus())
		assert.ErrorIs(t, err, boom)
	})
}

func TestIndexQueryErrors(t *testing.T) {
	cases := []struct {
		name string
		chat func(context.Context, []llm.Message) (string, error)
	}{
		{
			name: "chat failure",
			chat: func(context.Context, []llm.Message) (string, error) { return "", errors.New("timeout") },
		},
		{
			name: "blank answer",
			chat: func(context.Context, []llm.Message) (string, error) { return " \n ", nil },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			searcher, err := rag.NewIndexer(&keywordEmbedder{}, &chatMock{ChatFunc: tc.chat}, 0, 0).Build(context.Background(), corpus())
			require.NoError(t, err)

			_, err = searcher.Query(context.Background(), "invoice")
			assert.Error(t, err)
		})
	}
}
