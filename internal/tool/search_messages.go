package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"
)

const (
	defaultPageSize  = 10
	maxPageSize      = 50
	metadataFetchers = 5
)

// SearchMessagesRequest is one page of a Gmail search.
type SearchMessagesRequest struct {
	Query      string `json:"query" jsonschema:"the Gmail search query"`
	MaxResults int64  `json:"max_results,omitempty" jsonschema:"max results per page"`
	PageToken  string `json:"page_token,omitempty" jsonschema:"token for pagination"`
}

type SearchMessagesResponse struct {
	Messages      []MessageSummary `json:"messages" jsonschema:"array of message summaries"`
	NextPageToken string           `json:"next_page_token,omitempty" jsonschema:"token for next page"`
	TotalResults  int              `json:"total_results" jsonschema:"number of messages returned"`
}

type searchMessagesSvc interface {
	ListMessages(ctx context.Context, Q, pageToken string, maxResults int64) (*gmail.ListMessagesResponse, error)
	GetMessageMetadata(ctx context.Context, msgID string) (*gmail.Message, error)
}

func NewSearchMessages(svc searchMessagesSvc) *SearchMessages {
	return &SearchMessages{
		svc: svc,
	}
}

// SearchMessages lists one page of results with their headers.
type SearchMessages struct {
	svc searchMessagesSvc
}

func (t *SearchMessages) SearchMessages(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchMessagesRequest,
) (*mcp.CallToolResult, SearchMessagesResponse, error) {
	result, err := t.svc.ListMessages(ctx, input.Query, input.PageToken, normalizeMaxResults(input.MaxResults))
	if err != nil {
		return nil, SearchMessagesResponse{}, fmt.Errorf("svc.ListMessages failed: %w", err)
	}

	messages := make([]MessageSummary, len(result.Messages))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(metadataFetchers)
	for i, m := range result.Messages {
		eg.Go(func() error {
			msg, err := t.svc.GetMessageMetadata(egCtx, m.Id)
			if err != nil {
				return fmt.Errorf("get message %s failed: %w", m.Id, err)
			}
			messages[i] = extractMessageSummary(msg)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, SearchMessagesResponse{}, err
	}

	return nil, SearchMessagesResponse{
		Messages:      messages,
		NextPageToken: result.NextPageToken,
		TotalResults:  len(messages),
	}, nil
}

func normalizeMaxResults(maxResults int64) int64 {
	if maxResults <= 0 {
		return defaultPageSize
	}

	return min(maxResults, maxPageSize)
}
