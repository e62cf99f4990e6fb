package tool

import (
	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-agent/internal/message"
)

// MessageSummary contains essential message metadata.
type MessageSummary struct {
	ID        string            `json:"id" jsonschema:"message ID"`
	ThreadID  string            `json:"thread_id" jsonschema:"thread ID"`
	Timestamp string            `json:"timestamp" jsonschema:"message timestamp"`
	From      []message.Address `json:"from" jsonschema:"sender information"`
	To        []message.Address `json:"to,omitempty" jsonschema:"recipients"`
	CC        []message.Address `json:"cc,omitempty" jsonschema:"CC recipients"`
	Subject   string            `json:"subject" jsonschema:"email subject"`
	Snippet   string            `json:"snippet" jsonschema:"message preview"`
	Labels    []string          `json:"labels,omitempty" jsonschema:"label IDs"`
}

func summaryOf(md message.Metadata) MessageSummary {
	return MessageSummary{
		ID:        md.ID,
		ThreadID:  md.ThreadID,
		Timestamp: md.Date,
		From:      md.From,
		To:        md.To,
		CC:        md.Cc,
		Subject:   md.Subject,
		Snippet:   md.Snippet,
		Labels:    md.Labels,
	}
}

func extractMessageSummary(msg *gmail.Message) MessageSummary {
	return summaryOf(message.ParseMetadata(msg))
}
