// Package pager walks Gmail search result pages up to a result budget.
package pager

import (
	"context"
	"fmt"

	"google.golang.org/api/gmail/v1"
)

// MaxPageSize is the largest page Gmail serves.
const MaxPageSize = 500

type lister interface {
	ListMessages(ctx context.Context, Q, pageToken string, maxResults int64) (*gmail.ListMessagesResponse, error)
}

// Search collects message references for query until maxResults are gathered,
// the provider stops returning a next-page token or a page comes back empty. Provider failures abort
// the walk; nothing is retried.
func Search(ctx context.Context, svc lister, query string, maxResults, pageSize int) ([]*gmail.Message, error) {
	if maxResults <= 0 {
		return []*gmail.Message{}, nil
	}
	if pageSize <= 0 || pageSize > maxResults {
		pageSize = maxResults
	}
	pageSize = min(pageSize, MaxPageSize)

	messages := make([]*gmail.Message, 0, maxResults)
	pageToken := ""

	for page := 1; len(messages) < maxResults; page++ {
		want := min(pageSize, maxResults-len(messages))

		res, err := svc.ListMessages(ctx, query, pageToken, int64(want))
		if err != nil {
			return nil, fmt.Errorf("page %d: svc.ListMessages failed: %w", page, err)
		}

		messages = append(messages, res.Messages...)

		// an empty page ends the walk even when a token came with it
		if res.NextPageToken == "" || len(res.Messages) == 0 {
			break
		}
		pageToken = res.NextPageToken
	}

	if len(messages) > maxResults {
		messages = messages[:maxResults]
	}

	return messages, nil
}
