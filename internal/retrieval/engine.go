// Package retrieval answers a loosely worded mailbox request by fanning it
// out into several searches and questions and joining the results.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-agent/internal/message"
	"github.com/hal9000y/gmail-agent/internal/pager"
	"github.com/hal9000y/gmail-agent/internal/rag"
	"github.com/hal9000y/gmail-agent/internal/variant"
)

const (
	DefaultMaxResults   = 20
	DefaultPageSize     = 20
	DefaultConcurrency  = 8
	DefaultQueryTimeout = 60 * time.Second
)

var errEmptyBody = errors.New("message body is empty")

type generator interface {
	Generate(ctx context.Context, request string) (variant.Queries, variant.Questions, error)
}

type mailbox interface {
	ListMessages(ctx context.Context, Q, pageToken string, maxResults int64) (*gmail.ListMessagesResponse, error)
	GetMessage(ctx context.Context, msgID string) (*gmail.Message, error)
}

type decoder interface {
	DecodeMessage(msg *gmail.Message) message.Decoded
}

type indexer interface {
	Build(ctx context.Context, docs []rag.Document) (rag.Searcher, error)
}

// Config bounds one Run.
type Config struct {
	MaxResults   int
	PageSize     int
	Concurrency  int
	QueryTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}

	return c
}

// Result is what one request produced. Answers keep question order and only
// hold questions that were answered.
type Result struct {
	Query     string
	Queries   variant.Queries
	Questions variant.Questions
	Documents int
	Answers   []rag.Answer
}

type Engine struct {
	gen  generator
	mail mailbox
	dec  decoder
	idx  indexer
	cfg  Config
}

func NewEngine(gen generator, mail mailbox, dec decoder, idx indexer, cfg Config) *Engine {
	return &Engine{
		gen:  gen,
		mail: mail,
		dec:  dec,
		idx:  idx,
		cfg:  cfg.withDefaults(),
	}
}

// Run executes the whole pipeline for request. Generation, search and
// indexing failures are returned; single messages and single questions that
// fail are logged and left out of the result.
func (e *Engine) Run(ctx context.Context, request string) (*Result, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return nil, errors.New("request is empty")
	}

	queries, questions, err := e.gen.Generate(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("gen.Generate failed: %w", err)
	}

	res := &Result{
		Query:     queries.Merged(),
		Queries:   queries,
		Questions: questions,
		Answers:   []rag.Answer{},
	}

	msgs, err := pager.Search(ctx, e.mail, res.Query, e.cfg.MaxResults, e.cfg.PageSize)
	if err != nil {
		return nil, fmt.Errorf("pager.Search failed: %w", err)
	}

	docs := e.load(ctx, msgs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Documents = len(docs)
	if len(docs) == 0 {
		log.Printf("retrieval: no readable messages for %q", res.Query)
		return res, nil
	}

	searcher, err := e.idx.Build(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("idx.Build failed: %w", err)
	}

	res.Answers = e.answer(ctx, searcher, questions)

	return res, nil
}

// outcome is the tagged result of one fan-out item.
type outcome[T any] struct {
	val T
	err error
}

func (e *Engine) load(ctx context.Context, msgs []*gmail.Message) []rag.Document {
	outcomes := make([]outcome[rag.Document], len(msgs))

	var eg errgroup.Group
	eg.SetLimit(e.cfg.Concurrency)

	for i, m := range msgs {
		eg.Go(func() error {
			outcomes[i] = e.loadOne(ctx, m.Id)
			return nil
		})
	}
	_ = eg.Wait()

	docs := make([]rag.Document, 0, len(outcomes))
	for i, o := range outcomes {
		if o.err != nil {
			log.Printf("retrieval: skipping message %s: %v", msgs[i].Id, o.err)
			continue
		}
		docs = append(docs, o.val)
	}

	return docs
}

func (e *Engine) loadOne(ctx context.Context, id string) outcome[rag.Document] {
	msg, err := e.mail.GetMessage(ctx, id)
	if err != nil {
		return outcome[rag.Document]{err: fmt.Errorf("mail.GetMessage failed: %w", err)}
	}

	decoded := e.dec.DecodeMessage(msg)
	if decoded.Body == "" {
		return outcome[rag.Document]{err: errEmptyBody}
	}

	return outcome[rag.Document]{val: rag.Document{Text: decoded.Body, Metadata: decoded.Metadata}}
}

func (e *Engine) answer(ctx context.Context, searcher rag.Searcher, questions variant.Questions) []rag.Answer {
	slots := make([]outcome[rag.Answer], len(questions))

	var wg sync.WaitGroup
	for i, q := range questions {
		wg.Go(func() {
			qctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
			defer cancel()

			a, err := searcher.Query(qctx, q)
			slots[i] = outcome[rag.Answer]{val: a, err: err}
		})
	}
	wg.Wait()

	answers := make([]rag.Answer, 0, len(slots))
	for i, s := range slots {
		if s.err != nil {
			log.Printf("retrieval: question %q failed: %v", questions[i], s.err)
			continue
		}
		answers = append(answers, s.val)
	}

	return answers
}
