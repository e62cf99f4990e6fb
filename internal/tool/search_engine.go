package tool

import (
	"context"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hal9000y/gmail-agent/internal/rag"
	"github.com/hal9000y/gmail-agent/internal/retrieval"
)

type SearchEngineRequest struct {
	Request string `json:"request" jsonschema:"what to find in the mailbox, in plain words"`
}

// SearchEngineResponse carries answers or, when the run failed, Error.
type SearchEngineResponse struct {
	Query   string       `json:"query,omitempty" jsonschema:"the Gmail query that was searched"`
	Answers []rag.Answer `json:"answers" jsonschema:"one answer per question that could be answered"`
	Error   string       `json:"error,omitempty" jsonschema:"why the search failed"`
}

type searchEngine interface {
	Run(ctx context.Context, request string) (*retrieval.Result, error)
}

func NewSearchEngine(engine searchEngine) *SearchEngine {
	return &SearchEngine{engine: engine}
}

// SearchEngine answers a free-form request from the mailbox.
type SearchEngine struct {
	engine searchEngine
}

// Search never fails at the protocol level; failures are reported in the
// response body.
func (t *SearchEngine) Search(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchEngineRequest,
) (*mcp.CallToolResult, SearchEngineResponse, error) {
	res, err := t.engine.Run(ctx, input.Request)
	if err != nil {
		log.Printf("Search engine failed for %q: %v", input.Request, err)
		return nil, SearchEngineResponse{Answers: []rag.Answer{}, Error: retrieval.Describe(err)}, nil
	}

	answers := res.Answers
	if answers == nil {
		answers = []rag.Answer{}
	}

	return nil, SearchEngineResponse{
		Query:   res.Query,
		Answers: answers,
	}, nil
}
