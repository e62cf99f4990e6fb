// Package variant turns one loosely worded mailbox request into three Gmail
// search queries and three follow-up questions.
package variant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"golang.org/x/sync/errgroup"

	"github.com/hal9000y/gmail-agent/internal/llm"
)

// QuestionCount is how many questions every request expands into.
const QuestionCount = 3

// ErrGeneration marks a failed or unusable generation. It is fatal to the
// request that triggered it.
var ErrGeneration = errors.New("variant generation failed")

// Queries are three Gmail search expressions of decreasing precision.
type Queries struct {
	Strict   string `json:"strict" jsonschema:"precise Gmail query using exact operators"`
	Expanded string `json:"expanded" jsonschema:"Gmail query widened with synonyms and related senders"`
	Loose    string `json:"loose" jsonschema:"broad Gmail query that favors recall"`
}

// Merged ORs the three queries into one provider query.
func (q Queries) Merged() string {
	return fmt.Sprintf("(%s) OR (%s) OR (%s)", q.Expanded, q.Strict, q.Loose)
}

// Validate checks that no query is blank.
func (q Queries) Validate() error {
	fields := []struct{ name, value string }{
		{"strict", q.Strict},
		{"expanded", q.Expanded},
		{"loose", q.Loose},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("generated %s query is empty", f.name)
		}
	}

	return nil
}

// Questions are the semantically diversified rewrites of the request.
type Questions []string

// Validate checks there are exactly QuestionCount non-blank questions.
func (q Questions) Validate() error {
	if len(q) != QuestionCount {
		return fmt.Errorf("expected %d questions, got %d", QuestionCount, len(q))
	}
	for i, s := range q {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("question %d is empty", i+1)
		}
	}

	return nil
}

type questionsResponse struct {
	Questions []string `json:"questions" jsonschema:"three differently phrased questions"`
}

type structurer interface {
	Structured(ctx context.Context, messages []llm.Message, schema *jsonschema.Schema, out any) error
}

// Generator produces query and question variants with a language model.
type Generator struct {
	llm            structurer
	now            func() time.Time
	querySchema    *jsonschema.Schema
	questionSchema *jsonschema.Schema
}

// NewGenerator creates a Generator. now defaults to time.Now.
func NewGenerator(model structurer, now func() time.Time) (*Generator, error) {
	if now == nil {
		now = time.Now
	}

	qs, err := jsonschema.For[Queries](nil)
	if err != nil {
		return nil, fmt.Errorf("jsonschema.For queries failed: %w", err)
	}
	for _, p := range qs.Properties {
		p.MinLength = jsonschema.Ptr(1)
	}

	ques, err := jsonschema.For[questionsResponse](nil)
	if err != nil {
		return nil, fmt.Errorf("jsonschema.For questions failed: %w", err)
	}
	items := ques.Properties["questions"]
	items.MinItems = jsonschema.Ptr(QuestionCount)
	items.MaxItems = jsonschema.Ptr(QuestionCount)
	if items.Items != nil {
		items.Items.MinLength = jsonschema.Ptr(1)
	}

	return &Generator{
		llm:            model,
		now:            now,
		querySchema:    qs,
		questionSchema: ques,
	}, nil
}

// Generate runs query and question generation concurrently. Either failure
// cancels the other and fails the call with ErrGeneration.
func (g *Generator) Generate(ctx context.Context, request string) (Queries, Questions, error) {
	now := g.now()

	var (
		queries   Queries
		questions Questions
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		queries, err = g.queries(egCtx, request, now)
		return err
	})
	eg.Go(func() error {
		var err error
		questions, err = g.questions(egCtx, request, now)
		return err
	})

	if err := eg.Wait(); err != nil {
		return Queries{}, nil, err
	}

	return queries, questions, nil
}

func (g *Generator) queries(ctx context.Context, request string, now time.Time) (Queries, error) {
	var q Queries
	msgs := []llm.Message{llm.System(queryPrompt), llm.User(userPrompt(request, now))}

	if err := g.llm.Structured(ctx, msgs, g.querySchema, &q); err != nil {
		return Queries{}, fmt.Errorf("%w: queries: %w", ErrGeneration, err)
	}
	q = Queries{
		Strict:   strings.TrimSpace(q.Strict),
		Expanded: strings.TrimSpace(q.Expanded),
		Loose:    strings.TrimSpace(q.Loose),
	}
	if err := q.Validate(); err != nil {
		return Queries{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	return q, nil
}

func (g *Generator) questions(ctx context.Context, request string, now time.Time) (Questions, error) {
	var res questionsResponse
	msgs := []llm.Message{llm.System(questionPrompt), llm.User(userPrompt(request, now))}

	if err := g.llm.Structured(ctx, msgs, g.questionSchema, &res); err != nil {
		return nil, fmt.Errorf("%w: questions: %w", ErrGeneration, err)
	}

	qs := make(Questions, 0, len(res.Questions))
	for _, q := range res.Questions {
		qs = append(qs, strings.TrimSpace(q))
	}
	if err := qs.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	return qs, nil
}

func userPrompt(request string, now time.Time) string {
	return fmt.Sprintf("Current time: %s (today is %s).\nRequest: %s",
		now.Format(time.RFC1123), now.Format("2006/01/02"), request)
}

const queryPrompt = `You write Gmail search queries. Given a request, answer with JSON holding three queries:
- "strict": exact operators only (from:, to:, subject:, has:attachment, label:, after:, before:, newer_than:, quoted phrases).
- "expanded": the strict intent plus synonyms, alternate spellings and related senders joined with OR or {}.
- "loose": a few broad keywords that would still match the mail if the other two miss.
Use dates in YYYY/MM/DD form relative to the current time. Never leave a query empty.`

const questionPrompt = `You rewrite a mailbox request as three questions to ask against the matching emails.
Make them differ in angle: one literal, one about specifics such as amounts, dates or people, one about context or follow-up.
Answer with JSON: {"questions": [three strings]}.`
